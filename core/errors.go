package core

import "errors"

// Sentinel errors shared across packages. The HTTP layer maps these to
// status codes with errors.Is, so wrap rather than replace them.
var (
	// ErrInvalidToken means the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrGoogleNotLinked means the user has no Google OAuth token on
	// file with the identity provider.
	ErrGoogleNotLinked = errors.New("google account not linked or access token unavailable")

	// ErrUpstream means a call to an external API failed.
	ErrUpstream = errors.New("upstream api error")

	// ErrNotCached means no live cache entry exists for the user.
	ErrNotCached = errors.New("no cached contacts")
)
