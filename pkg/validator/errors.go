package validator

import "errors"

// ErrValidationFailed is matched by every ValidationErrors value
var ErrValidationFailed = errors.New("validation failed")
