package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the payload fields of a store-issued access token.
// Ver is the per-user token version; a full revoke bumps it server-side so
// every token carrying an older version fails validation immediately.
type Claims struct {
	jwt.RegisteredClaims
	Ver     int  `json:"ver"`
	OneTime bool `json:"one_time,omitempty"`
}

// ParseClaims reads token claims without verifying the signature. Only the
// server can vouch for a token; local parsing is used for expiry-aware
// refresh scheduling and diagnostics, never for trust decisions.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresWithin reports whether the token expires before now+leeway.
// Tokens without an exp claim never report as expiring.
func (c *Claims) ExpiresWithin(leeway time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(leeway).After(c.ExpiresAt.Time)
}
