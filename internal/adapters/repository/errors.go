package repository

import "errors"

// Sentinel kinds for rank store errors.
var (
	ErrNotFound      = errors.New("track not found")
	ErrInvalidLimit  = errors.New("invalid rank limit")
	ErrInvalidWeight = errors.New("weight must be positive")
)
