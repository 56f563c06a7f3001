package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BackendToken is what the console can learn from a backend access token
// without holding the backend's signing key.
type BackendToken struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now. Tokens
// without an exp claim never expire.
func (t BackendToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// InspectBackendToken reads the claims of a backend token. The signature is
// not verified; the backend does that on every call.
func InspectBackendToken(raw string) (BackendToken, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return BackendToken{}, fmt.Errorf("parse backend token: %w", err)
	}

	out := BackendToken{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
