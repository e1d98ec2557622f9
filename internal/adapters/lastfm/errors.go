package lastfm

import "errors"

// Sentinel kinds for Last.fm errors.
var (
	ErrAPI           = errors.New("last.fm api error")
	ErrMissingAPIKey = errors.New("last.fm api key is required")
	ErrMissingUser   = errors.New("last.fm username is required")
	ErrDecode        = errors.New("last.fm response could not be decoded")
)
