package auth

import "errors"

// Missing, malformed and unknown keys all map to UNAUTHENTICATED so the
// response never confirms a key exists. Revoked keys map to
// PERMISSION_DENIED; storage failures to UNAVAILABLE.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrStorage          = errors.New("key storage unavailable")
)
