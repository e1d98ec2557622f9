package eventstore

import "errors"

// Sentinel kinds for event log errors.
var (
	ErrMalformed = errors.New("malformed event log")
	ErrNotExist  = errors.New("event log does not exist")
)
