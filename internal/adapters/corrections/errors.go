package corrections

import "errors"

// Sentinel kinds for correction cache errors.
var (
	ErrMalformed = errors.New("malformed correction cache")
)
