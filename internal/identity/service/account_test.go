package service

import (
	"context"
	"testing"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/cryptox"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func newAccountService(t *testing.T) (*AccountService, store.Store) {
	t.Helper()

	st := newTestStore(t)
	return &AccountService{Store: st, Hasher: cryptox.TwoStageHasher{}}, st
}

func TestAccountCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newAccountService(t)

	acct, generated, err := svc.Create(ctx, CreateAccountRequest{
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Password:  "pw-12345678",
	})
	require.NoError(t, err)
	require.Empty(t, generated, "explicit password must not be echoed")
	require.NotEmpty(t, acct.ID)
	require.Equal(t, []string{domain.RoleUser}, acct.Roles)

	cred, err := st.Accounts().GetCredential(ctx, acct.ID)
	require.NoError(t, err)
	require.True(t, cryptox.TwoStageHasher{}.Verify("pw-12345678", cred))
}

func TestAccountCreateGeneratesPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newAccountService(t)

	acct, generated, err := svc.Create(ctx, CreateAccountRequest{
		Username: "jdoe", Email: "jdoe@example.com",
	})
	require.NoError(t, err)
	require.Len(t, generated, 12)

	cred, err := st.Accounts().GetCredential(ctx, acct.ID)
	require.NoError(t, err)
	require.True(t, cryptox.TwoStageHasher{}.Verify(generated, cred))
}

func TestAccountCreateValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newAccountService(t)

	t.Run("missing username", func(t *testing.T) {
		_, _, err := svc.Create(ctx, CreateAccountRequest{Email: "a@b.c"})
		require.ErrorIs(t, err, ErrInvalidAccount)
	})

	t.Run("username with at sign", func(t *testing.T) {
		_, _, err := svc.Create(ctx, CreateAccountRequest{Username: "j@doe", Email: "a@b.c"})
		require.ErrorIs(t, err, ErrInvalidAccount)
	})

	t.Run("email without at sign", func(t *testing.T) {
		_, _, err := svc.Create(ctx, CreateAccountRequest{Username: "jdoe", Email: "nope"})
		require.ErrorIs(t, err, ErrInvalidAccount)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, _, err := svc.Create(ctx, CreateAccountRequest{
			Username: "jdoe", Email: "a@b.c", Roles: []string{"WIZARD"},
		})
		require.ErrorIs(t, err, ErrUnknownRole)
	})
}

func TestAccountCreateDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newAccountService(t)

	_, _, err := svc.Create(ctx, CreateAccountRequest{Username: "jdoe", Email: "jdoe@example.com"})
	require.NoError(t, err)

	_, _, err = svc.Create(ctx, CreateAccountRequest{Username: "jdoe", Email: "other@example.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, _, err = svc.Create(ctx, CreateAccountRequest{Username: "other", Email: "jdoe@example.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestAccountCreateWithSeededRoles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newAccountService(t)

	acct, _, err := svc.Create(ctx, CreateAccountRequest{
		Username: "root", Email: "root@example.com",
		Roles: []string{domain.RoleAdmin, domain.RoleUser},
	})
	require.NoError(t, err)
	require.Equal(t, []string{domain.RoleAdmin, domain.RoleUser}, acct.Roles)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newAccountService(t)

	acct, _, err := svc.Create(ctx, CreateAccountRequest{
		Username: "jdoe", Email: "jdoe@example.com", Password: "old-password",
	})
	require.NoError(t, err)

	before, err := st.Accounts().GetCredential(ctx, acct.ID)
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, acct.ID, "not-it", "new-password")
		require.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("rotates the whole credential", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(ctx, acct.ID, "old-password", "new-password"))

		after, err := st.Accounts().GetCredential(ctx, acct.ID)
		require.NoError(t, err)

		require.True(t, cryptox.TwoStageHasher{}.Verify("new-password", after))
		require.False(t, cryptox.TwoStageHasher{}.Verify("old-password", after))

		// Fresh salts, not just a new hash.
		require.NotEqual(t, before.PublicSalt, after.PublicSalt)
		require.NotEqual(t, before.PrivateSalt, after.PrivateSalt)
	})
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newAccountService(t)

	acct, _, err := svc.Create(ctx, CreateAccountRequest{
		Username: "jdoe", Email: "jdoe@example.com",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, acct.ID, UpdateProfileRequest{
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", updated.Email)
	require.Equal(t, "Jane Doe", updated.DisplayName())
}

func TestAccountDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newAccountService(t)

	acct, _, err := svc.Create(ctx, CreateAccountRequest{Username: "jdoe", Email: "jdoe@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, acct.ID))

	_, err = st.Accounts().GetByID(ctx, acct.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMFAEnrollAndActivate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	accounts := &AccountService{Store: st, Hasher: cryptox.TwoStageHasher{}}
	mfa := &MFAService{Store: st, Issuer: "https://identity.example.com"}

	acct, _, err := accounts.Create(ctx, CreateAccountRequest{
		Username: "jdoe", Email: "jdoe@example.com",
	})
	require.NoError(t, err)

	enrollment, err := mfa.EnrollTOTP(ctx, acct.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.URL, "otpauth://totp/")

	// Enrollment alone does not enable the second factor.
	stored, err := st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.False(t, stored.TwoFactorEnabled())

	t.Run("bad code rejected", func(t *testing.T) {
		require.ErrorIs(t, mfa.ActivateTOTP(ctx, acct.ID, "000000"), ErrInvalidTOTPCode)
	})

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, mfa.ActivateTOTP(ctx, acct.ID, code))

	stored, err = st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.True(t, stored.TwoFactorEnabled())

	t.Run("re-enroll while enabled rejected", func(t *testing.T) {
		_, err := mfa.EnrollTOTP(ctx, acct.ID)
		require.ErrorIs(t, err, ErrMFAAlreadyEnabled)
	})

	t.Run("disable clears secret", func(t *testing.T) {
		require.NoError(t, mfa.DisableTOTP(ctx, acct.ID))
		stored, err := st.Accounts().GetByID(ctx, acct.ID)
		require.NoError(t, err)
		require.False(t, stored.TwoFactorEnabled())
		require.Nil(t, stored.MFASecret)
	})
}

func TestMFAActivateWithoutEnrollment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	accounts := &AccountService{Store: st, Hasher: cryptox.TwoStageHasher{}}
	mfa := &MFAService{Store: st, Issuer: "test"}

	acct, _, err := accounts.Create(ctx, CreateAccountRequest{
		Username: "jdoe", Email: "jdoe@example.com",
	})
	require.NoError(t, err)

	require.ErrorIs(t, mfa.ActivateTOTP(ctx, acct.ID, "123456"), ErrMFANotEnrolled)
}
