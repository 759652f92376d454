package domain

import (
	"strings"
	"time"
)

// Account is the directory's view of a user. The sign-in engine reads a
// snapshot and writes back only the lockout counter pair; everything else is
// owned by the account management flows.
type Account struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Roles     []string

	FailedAttemptCount uint
	LockoutUntil       *time.Time

	Disabled bool

	MFAEnabled *time.Time // when TOTP was activated (nil = off)
	MFASecret  *string    // base32 TOTP secret (nil until enrolled)

	// RowVersion guards lockout writes: the directory only applies an
	// update when the caller's version still matches the row.
	RowVersion int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is "Firstname Lastname", trimmed when either part is empty.
func (a Account) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// TwoFactorEnabled reports whether the account has completed TOTP
// activation, i.e. has at least one enabled second-factor provider.
func (a Account) TwoFactorEnabled() bool {
	return a.MFAEnabled != nil && a.MFASecret != nil && *a.MFASecret != ""
}

// LockedOut reports whether a lockout window is active at the given instant.
func (a Account) LockedOut(now time.Time) bool {
	return a.LockoutUntil != nil && a.LockoutUntil.After(now)
}
