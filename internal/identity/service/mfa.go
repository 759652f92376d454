package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/slogx"

	"github.com/pquerna/otp/totp"
)

var (
	// ErrMFAAlreadyEnabled reports enrollment on an account that already
	// activated a second factor.
	ErrMFAAlreadyEnabled = errors.New("service: two-factor already enabled")

	// ErrMFANotEnrolled reports activation without a prior enrollment.
	ErrMFANotEnrolled = errors.New("service: no pending two-factor enrollment")

	// ErrInvalidTOTPCode reports a code that failed TOTP validation.
	ErrInvalidTOTPCode = errors.New("service: invalid two-factor code")
)

// MFAService manages TOTP enrollment and activation. Enrollment stores the
// secret but leaves the account single-factor until a first code proves the
// authenticator was provisioned.
type MFAService struct {
	Store store.Store

	// Issuer is the name shown in authenticator apps.
	Issuer string
}

// EnrollTOTP generates a fresh TOTP secret for the account and returns the
// provisioning material. Re-enrolling before activation replaces the pending
// secret.
func (s *MFAService) EnrollTOTP(ctx context.Context, accountID string) (domain.MFAEnrollment, error) {
	acct, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("mfa: load account: %w", err)
	}
	if acct.TwoFactorEnabled() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: acct.Username,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("mfa: generate totp key: %w", err)
	}

	if err := s.Store.Accounts().UpdateMFASecret(ctx, acct.ID, key.Secret()); err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("mfa: store secret: %w", err)
	}

	slogx.FromContext(ctx).Info("totp enrollment started", "account_id", acct.ID)
	return domain.MFAEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: acct.Username,
	}, nil
}

// ActivateTOTP verifies a first code against the pending secret and flips
// the account to two-factor.
func (s *MFAService) ActivateTOTP(ctx context.Context, accountID, code string) error {
	acct, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("mfa: load account: %w", err)
	}
	if acct.TwoFactorEnabled() {
		return ErrMFAAlreadyEnabled
	}
	if acct.MFASecret == nil || *acct.MFASecret == "" {
		return ErrMFANotEnrolled
	}
	if !totp.Validate(code, *acct.MFASecret) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Accounts().EnableMFA(ctx, acct.ID); err != nil {
		return fmt.Errorf("mfa: enable: %w", err)
	}

	slogx.FromContext(ctx).Info("totp activated", "account_id", acct.ID)
	return nil
}

// DisableTOTP turns a second factor off and wipes the stored secret.
func (s *MFAService) DisableTOTP(ctx context.Context, accountID string) error {
	if err := s.Store.Accounts().DisableMFA(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mfa: disable: %w", err)
	}
	slogx.FromContext(ctx).Info("totp disabled", "account_id", accountID)
	return nil
}
