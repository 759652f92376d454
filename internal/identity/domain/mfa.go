package domain

import "time"

// MFASession is the single-use challenge minted when a password check
// succeeds on a two-factor account. The sign-in completes only after the
// second factor verifies against this session.
type MFASession struct {
	Token     string
	AccountID string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MFAEnrollment is handed back from TOTP enrollment so the client can render
// the provisioning QR code.
type MFAEnrollment struct {
	Secret  string
	URL     string
	Issuer  string
	Account string
}
