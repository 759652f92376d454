package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are access-token claims. Additive changes only, resource services
// parse these.
type Claims struct {
	jwt.RegisteredClaims

	// Email address of the authenticated account.
	Email string `json:"email,omitempty"`

	// Name mirrors the subject id, kept for callers that read the
	// legacy name claim instead of sub.
	Name string `json:"name,omitempty"`

	// DisplayName is "Firstname Lastname" for UI consumption.
	DisplayName string `json:"display_name,omitempty"`

	// Roles the account holds, deduplicated. One value per role name.
	Roles []string `json:"role,omitempty"`
}

// NewAccessClaims builds minimally-correct claims for an issued token.
// The jti is a fresh UUID per call so downstream replay detection can key
// on it; it is never reused.
func NewAccessClaims(
	subject string,
	email string,
	displayName string,
	roles []string,
	issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Email:       email,
		Name:        subject,
		DisplayName: displayName,
		Roles:       dedupe(roles),
	}
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
