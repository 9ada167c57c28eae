package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// RequiredString validates that a string is not empty after trimming whitespace.
func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

func MaxLenString(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= max },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", max)},
	}
}

// NoWhitespace validates that a string contains no whitespace characters.
func NoWhitespace(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.IndexFunc(value, unicode.IsSpace) < 0
		},
		Error: ValidationError{Field: field, Message: "must not contain whitespace characters"},
	}
}

// RequiredJSON validates that raw holds a JSON value other than null.
func RequiredJSON(field string, raw json.RawMessage) Rule {
	return Rule{
		Check: func() bool {
			trimmed := bytes.TrimSpace(raw)
			return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && json.Valid(trimmed)
		},
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}
