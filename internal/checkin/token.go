// Package checkin issues check-in tokens and applies the check-in transition.
package checkin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// CheckInPath is the path segment of the scan target embedded in issued emails and QR artifacts.
const CheckInPath = "/check-in/"

var tokenPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// TokenGenerator issues check-in tokens and renders check-in URLs.
type TokenGenerator struct {
	baseURL string
}

// NewTokenGenerator creates a generator whose URLs default to baseURL.
// baseURL is expected to be resolved and validated at startup (see config.Validate).
func NewTokenGenerator(baseURL string) *TokenGenerator {
	return &TokenGenerator{baseURL: baseURL}
}

// Generate returns a new random version-4 UUID token. registrationID only
// identifies the caller's entity in errors; it does not influence the value.
func (g *TokenGenerator) Generate(registrationID string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate check-in token for %q: %w", registrationID, err)
	}
	return id.String(), nil
}

// IsValidTokenFormat reports whether token is a version-4 UUID string, case-insensitively.
func IsValidTokenFormat(token string) bool {
	return tokenPattern.MatchString(token)
}

// CheckInURL joins baseURL (or the generator's default when empty) with the check-in path and token.
// The token is not validated.
func (g *TokenGenerator) CheckInURL(token, baseURL string) string {
	if baseURL == "" {
		baseURL = g.baseURL
	}
	return strings.TrimSuffix(baseURL, "/") + CheckInPath + token
}
