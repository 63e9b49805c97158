package checkin

import "errors"

var (
	// ErrMalformedToken means the token is not a version-4 UUID; storage was not consulted.
	ErrMalformedToken = errors.New("malformed check-in token")
	// ErrTokenNotFound means no registration in the organization holds the token.
	ErrTokenNotFound = errors.New("check-in token not found")
	// ErrTokenRevoked means the registration was cancelled or its token can no longer be used.
	ErrTokenRevoked = errors.New("check-in token revoked")
	// ErrCheckerRequired means no staff or device identity was given.
	ErrCheckerRequired = errors.New("checked-in-by identity required")
	// ErrCheckInConflict is returned by a Store when the token was no longer active at apply time.
	ErrCheckInConflict = errors.New("check-in token not active")
)

// IsInvalidCode reports whether err should be shown to a scanner as "invalid code".
func IsInvalidCode(err error) bool {
	return errors.Is(err, ErrMalformedToken) || errors.Is(err, ErrTokenNotFound)
}
