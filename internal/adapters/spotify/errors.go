package spotify

import "errors"

// Sentinel kinds for Spotify errors.
var (
	ErrMissingCredentials = errors.New("spotify client id and secret are required")
	ErrAuthFailed         = errors.New("spotify authorization failed")
	ErrTokenCache         = errors.New("spotify token cache unreadable")
)
