package domain

import "time"

// IssuedToken is the self-contained result of token issuance. Immutable once
// created; there is no backing store and no revocation path beyond expiry.
type IssuedToken struct {
	Token     string
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
