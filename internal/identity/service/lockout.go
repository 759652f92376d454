package service

import (
	"time"

	"github.com/authlane/identity/internal/identity/domain"
)

// VerifyOutcome is the password verification result fed into the lockout
// tracker.
type VerifyOutcome int

const (
	VerifyFailed VerifyOutcome = iota
	VerifySucceeded
)

// LockoutPolicy is the threshold pair from the active settings snapshot.
type LockoutPolicy struct {
	MaxFailedAccessAttempts uint
	LockoutDuration         time.Duration
}

// LockoutUpdate is the counter pair to persist after an attempt, plus
// whether this attempt tripped the lockout.
type LockoutUpdate struct {
	FailedAttemptCount uint
	LockoutUntil       *time.Time
	LockedOut          bool
}

// ApplyLockout encodes the increment/reset/trigger rules over an account's
// failure counters. Pure: no I/O, no clock reads, so it can be tested
// against arbitrary starting counters and thresholds.
func ApplyLockout(a domain.Account, outcome VerifyOutcome, now time.Time, p LockoutPolicy) LockoutUpdate {
	if outcome == VerifySucceeded {
		return LockoutUpdate{FailedAttemptCount: 0, LockoutUntil: nil}
	}

	count := a.FailedAttemptCount + 1
	if count >= p.MaxFailedAccessAttempts {
		until := now.Add(p.LockoutDuration)
		return LockoutUpdate{
			FailedAttemptCount: count,
			LockoutUntil:       &until,
			LockedOut:          true,
		}
	}

	return LockoutUpdate{FailedAttemptCount: count}
}
