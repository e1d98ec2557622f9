package app

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrNoEventStore = errors.New("event store is required")
	ErrNoSource     = errors.New("no event source configured and no saved event log")
	ErrNoResolver   = errors.New("resolver is not configured")
	ErrNoPublisher  = errors.New("publisher is not configured")
)
