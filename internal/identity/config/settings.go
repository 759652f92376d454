// Package config carries the validated settings the sign-in and issuance
// paths consume. Settings are immutable value snapshots; a hot reload swaps
// in a whole new snapshot instead of mutating shared state, so a call in
// flight never observes a half-validated configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/authlane/identity/pkg/cryptox"
)

// ErrInvalid marks configuration validation failures. Fatal at startup,
// process-halting on hot reload.
var ErrInvalid = errors.New("config: invalid settings")

// Bounds enforced by Validate.
const (
	MinJwtKeyLength  = 6
	MinJwtExpireDays = 1
	MaxJwtExpireDays = 30
)

// Settings is one immutable configuration snapshot.
type Settings struct {
	JwtKey        string
	JwtIssuer     string
	JwtExpireDays int

	MaxFailedAccessAttempts uint
	LockoutDuration         time.Duration

	PasswordScheme string
}

// Validate checks every field against its contract. It reports the first
// violation; callers treat any error as fatal.
func (s Settings) Validate() error {
	if len(s.JwtKey) < MinJwtKeyLength {
		return fmt.Errorf("%w: JwtKey must be at least %d characters", ErrInvalid, MinJwtKeyLength)
	}

	u, err := url.Parse(s.JwtIssuer)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: JwtIssuer must be a well-formed URL, got %q", ErrInvalid, s.JwtIssuer)
	}

	if s.JwtExpireDays < MinJwtExpireDays || s.JwtExpireDays > MaxJwtExpireDays {
		return fmt.Errorf("%w: JwtExpireDays must be in [%d, %d], got %d",
			ErrInvalid, MinJwtExpireDays, MaxJwtExpireDays, s.JwtExpireDays)
	}

	if s.MaxFailedAccessAttempts < 1 {
		return fmt.Errorf("%w: MaxFailedAccessAttempts must be at least 1", ErrInvalid)
	}

	if s.LockoutDuration <= 0 {
		return fmt.Errorf("%w: LockoutDuration must be positive", ErrInvalid)
	}

	if _, err := cryptox.NewHasher(s.PasswordScheme); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return nil
}

// TokenTTL converts the whole-day expiry setting into a duration.
func (s Settings) TokenTTL() time.Duration {
	return time.Duration(s.JwtExpireDays) * 24 * time.Hour
}
