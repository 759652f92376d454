package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authlane/identity/internal/identity/config"
	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/cryptox"
	"github.com/authlane/identity/pkg/idx"
	"github.com/authlane/identity/pkg/slogx"

	"github.com/pquerna/otp/totp"
)

const (
	// mfaSessionTTL bounds how long a password success keeps a pending
	// second-factor challenge alive.
	mfaSessionTTL = 5 * time.Minute

	// maxMFAAttempts is the per-session second-factor guess budget.
	maxMFAAttempts = 5

	// maxLockoutWriteRetries bounds the compare-and-set retry loop when
	// concurrent attempts race on the same account's counters.
	maxLockoutWriteRetries = 3
)

// ErrTooManyMFAAttempts reports an exhausted second-factor guess budget. The
// session is consumed and the client has to start over with a password.
var ErrTooManyMFAAttempts = errors.New("service: too many second-factor attempts")

// SignInService orchestrates password sign-in: identifier resolution, account
// gating, credential verification, lockout accounting and the second-factor
// handoff. Outcomes are values (domain.SignInResult); errors are reserved for
// infrastructure failures.
type SignInService struct {
	Store  store.Store
	Hasher cryptox.Hasher
	Config *config.Provider

	// Now is the clock; tests pin it. Nil means time.Now.
	Now func() time.Time
}

// SignInRequest is one password sign-in attempt.
type SignInRequest struct {
	// Identifier is either a username or, when it contains '@', an email.
	Identifier string

	// Password is the plaintext to verify.
	Password string

	// LockoutOnFailure counts this attempt against the lockout threshold.
	LockoutOnFailure bool
}

func (s *SignInService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PasswordSignIn runs one attempt through the full decision ladder:
// resolve, disabled gate, lockout gate, verify, two-factor gate. Unknown
// identifiers burn a verification against an empty credential so the
// response cost does not reveal whether the account exists.
func (s *SignInService) PasswordSignIn(ctx context.Context, req SignInRequest) (domain.SignInResult, error) {
	log := slogx.FromContext(ctx)
	now := s.now()

	cfg := s.Config.Snapshot()
	policy := LockoutPolicy{
		MaxFailedAccessAttempts: cfg.MaxFailedAccessAttempts,
		LockoutDuration:         cfg.LockoutDuration,
	}

	acct, err := s.resolve(ctx, req.Identifier)
	if errors.Is(err, store.ErrNotFound) {
		// Burn the same work as a real verification before failing.
		s.Hasher.Verify(req.Password, cryptox.Credential{})
		return domain.SignInResult{Status: domain.SignInFailed}, nil
	}
	if err != nil {
		return domain.SignInResult{}, fmt.Errorf("signin: resolve identifier: %w", err)
	}

	if acct.Disabled {
		log.Info("sign-in rejected, account disabled", "account_id", acct.ID)
		return domain.SignInResult{Status: domain.SignInNotAllowed}, nil
	}

	if acct.LockedOut(now) {
		log.Info("sign-in rejected, lockout active", "account_id", acct.ID)
		return domain.SignInResult{Status: domain.SignInLockedOut}, nil
	}

	cred, err := s.Store.Accounts().GetCredential(ctx, acct.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.SignInResult{}, fmt.Errorf("signin: load credential: %w", err)
	}

	if !s.Hasher.Verify(req.Password, cred) {
		if !req.LockoutOnFailure {
			return domain.SignInResult{Status: domain.SignInFailed}, nil
		}

		upd, err := s.persistLockout(ctx, acct, VerifyFailed, now, policy)
		if err != nil {
			return domain.SignInResult{}, err
		}
		if upd.LockedOut {
			log.Info("lockout triggered",
				"account_id", acct.ID,
				"failed_attempts", upd.FailedAttemptCount,
			)
			return domain.SignInResult{Status: domain.SignInLockedOut}, nil
		}
		return domain.SignInResult{Status: domain.SignInFailed}, nil
	}

	if acct.TwoFactorEnabled() {
		// The counter reset is deferred until the second factor clears;
		// a correct password alone does not finish the sign-in.
		token, err := s.mintMFASession(ctx, acct.ID, now)
		if err != nil {
			return domain.SignInResult{}, err
		}
		return domain.SignInResult{
			Status:   domain.SignInRequiresTwoFactor,
			Account:  acct,
			MFAToken: token,
		}, nil
	}

	if err := s.resetLockout(ctx, acct, now, policy); err != nil {
		return domain.SignInResult{}, err
	}

	return domain.SignInResult{Status: domain.SignInSuccess, Account: acct}, nil
}

// CompleteTwoFactor finishes a pending two-factor sign-in by validating a
// TOTP code against the challenge session minted by PasswordSignIn. Success
// consumes the session and performs the deferred lockout reset.
func (s *SignInService) CompleteTwoFactor(ctx context.Context, mfaToken, code string) (domain.SignInResult, error) {
	log := slogx.FromContext(ctx)
	now := s.now()

	session, err := s.Store.MFASessions().Get(ctx, mfaToken)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SignInResult{Status: domain.SignInFailed}, nil
	}
	if err != nil {
		return domain.SignInResult{}, fmt.Errorf("signin: load mfa session: %w", err)
	}

	if session.Attempts >= maxMFAAttempts {
		_ = s.Store.MFASessions().Delete(ctx, mfaToken)
		return domain.SignInResult{}, ErrTooManyMFAAttempts
	}

	acct, err := s.Store.Accounts().GetByID(ctx, session.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		_ = s.Store.MFASessions().Delete(ctx, mfaToken)
		return domain.SignInResult{Status: domain.SignInFailed}, nil
	}
	if err != nil {
		return domain.SignInResult{}, fmt.Errorf("signin: load account: %w", err)
	}

	if acct.Disabled {
		_ = s.Store.MFASessions().Delete(ctx, mfaToken)
		return domain.SignInResult{Status: domain.SignInNotAllowed}, nil
	}

	if !acct.TwoFactorEnabled() || !totp.Validate(code, *acct.MFASecret) {
		updated, err := s.Store.MFASessions().IncrementAttempts(ctx, mfaToken)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.SignInResult{}, fmt.Errorf("signin: record mfa attempt: %w", err)
		}
		if updated.Attempts >= maxMFAAttempts {
			_ = s.Store.MFASessions().Delete(ctx, mfaToken)
			return domain.SignInResult{}, ErrTooManyMFAAttempts
		}
		return domain.SignInResult{Status: domain.SignInFailed}, nil
	}

	if err := s.Store.MFASessions().Delete(ctx, mfaToken); err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.SignInResult{}, fmt.Errorf("signin: consume mfa session: %w", err)
	}

	cfg := s.Config.Snapshot()
	policy := LockoutPolicy{
		MaxFailedAccessAttempts: cfg.MaxFailedAccessAttempts,
		LockoutDuration:         cfg.LockoutDuration,
	}
	if err := s.resetLockout(ctx, acct, now, policy); err != nil {
		return domain.SignInResult{}, err
	}

	log.Info("two-factor sign-in completed", "account_id", acct.ID)
	return domain.SignInResult{Status: domain.SignInSuccess, Account: acct}, nil
}

// resolve maps a raw identifier onto exactly one lookup. An identifier
// containing '@' is only ever tried as an email; everything else only as a
// username. There is no fallback between the two.
func (s *SignInService) resolve(ctx context.Context, identifier string) (domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return domain.Account{}, store.ErrNotFound
	}
	if strings.Contains(identifier, "@") {
		return s.Store.Accounts().GetByEmail(ctx, identifier)
	}
	return s.Store.Accounts().GetByUsername(ctx, identifier)
}

// persistLockout applies the tracker and writes the counter pair under a
// row-version guard. A lost race re-reads and re-applies, bounded; when the
// races keep losing against a row that is already locked, the attempt
// resolves as locked rather than clobbering the other writer.
func (s *SignInService) persistLockout(
	ctx context.Context,
	acct domain.Account,
	outcome VerifyOutcome,
	now time.Time,
	policy LockoutPolicy,
) (LockoutUpdate, error) {
	current := acct

	for attempt := 0; ; attempt++ {
		upd := ApplyLockout(current, outcome, now, policy)

		err := s.Store.Accounts().UpdateLockoutFields(
			ctx, current.ID, upd.FailedAttemptCount, upd.LockoutUntil, current.RowVersion)
		if err == nil {
			return upd, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return LockoutUpdate{}, fmt.Errorf("signin: write lockout fields: %w", err)
		}
		if attempt >= maxLockoutWriteRetries {
			return LockoutUpdate{}, fmt.Errorf("signin: write lockout fields: %w", err)
		}

		current, err = s.Store.Accounts().GetByID(ctx, current.ID)
		if err != nil {
			return LockoutUpdate{}, fmt.Errorf("signin: re-read account after conflict: %w", err)
		}

		// A concurrent failure already tripped the lockout; keep it.
		if outcome == VerifyFailed && current.LockedOut(now) {
			return LockoutUpdate{
				FailedAttemptCount: current.FailedAttemptCount,
				LockoutUntil:       current.LockoutUntil,
				LockedOut:          true,
			}, nil
		}
	}
}

// resetLockout clears the counter pair after a completed sign-in. Skipped
// when there is nothing to clear, so the common path does no write.
func (s *SignInService) resetLockout(ctx context.Context, acct domain.Account, now time.Time, policy LockoutPolicy) error {
	if acct.FailedAttemptCount == 0 && acct.LockoutUntil == nil {
		return nil
	}
	_, err := s.persistLockout(ctx, acct, VerifySucceeded, now, policy)
	return err
}

func (s *SignInService) mintMFASession(ctx context.Context, accountID string, now time.Time) (string, error) {
	session := domain.MFASession{
		Token:     idx.New().String(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(mfaSessionTTL),
	}
	if err := s.Store.MFASessions().Create(ctx, session); err != nil {
		return "", fmt.Errorf("signin: mint mfa session: %w", err)
	}
	return session.Token, nil
}
