package requesttask

import "errors"

var (
	ErrInvalidURL     = errors.New("invalid request url")
	ErrNilRequest     = errors.New("request cannot be nil")
	ErrUnknownKind    = errors.New("unknown payload kind")
	ErrMalformedWire  = errors.New("malformed serialized request")
	ErrPayloadDecode  = errors.New("failed to decode request payload")
	ErrRequestCapture = errors.New("failed to serialize request")
)
