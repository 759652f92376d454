package service

import (
	"context"
	"testing"
	"time"

	"github.com/authlane/identity/internal/identity/config"
	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/internal/identity/store/drivers/sqlite"
	"github.com/authlane/identity/pkg/cryptox"
	"github.com/authlane/identity/pkg/idx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestProvider(t *testing.T) *config.Provider {
	t.Helper()

	p, err := config.NewProvider(config.Settings{
		JwtKey:                  "test-signing-key",
		JwtIssuer:               "https://identity.example.com",
		JwtExpireDays:           7,
		MaxFailedAccessAttempts: 3,
		LockoutDuration:         5 * time.Minute,
	})
	require.NoError(t, err)
	return p
}

func newSignInService(t *testing.T) (*SignInService, store.Store) {
	t.Helper()

	st := newTestStore(t)
	svc := &SignInService{
		Store:  st,
		Hasher: cryptox.TwoStageHasher{},
		Config: newTestProvider(t),
	}
	return svc, st
}

func seedAccount(t *testing.T, st store.Store, a domain.Account, password string) domain.Account {
	t.Helper()

	if a.ID == "" {
		a.ID = idx.New().String()
	}
	if len(a.Roles) == 0 {
		a.Roles = []string{domain.RoleUser}
	}

	cred, err := cryptox.TwoStageHasher{}.Generate(password)
	require.NoError(t, err)
	require.NoError(t, st.Accounts().Create(context.Background(), a, cred))

	stored, err := st.Accounts().GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	return stored
}

func TestPasswordSignInSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "correct-password")

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "correct-password", LockoutOnFailure: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInSuccess, result.Status)
	require.Equal(t, acct.ID, result.Account.ID)
	require.Empty(t, result.MFAToken)
}

func TestPasswordSignInResolvesEmailIdentifiers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")

	t.Run("email identifier hits email lookup", func(t *testing.T) {
		result, err := svc.PasswordSignIn(ctx, SignInRequest{
			Identifier: "jdoe@example.com", Password: "pw-12345678",
		})
		require.NoError(t, err)
		require.Equal(t, domain.SignInSuccess, result.Status)
	})

	t.Run("username identifier never matches an email", func(t *testing.T) {
		// No account has username "jdoe@example.com"; the '@' routes the
		// lookup to email only, and vice versa there is no fallback.
		result, err := svc.PasswordSignIn(ctx, SignInRequest{
			Identifier: "jdoe@nowhere.example", Password: "pw-12345678",
		})
		require.NoError(t, err)
		require.Equal(t, domain.SignInFailed, result.Status)
	})
}

func TestPasswordSignInUnknownAccountFailsWithoutError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newSignInService(t)

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "ghost", Password: "whatever", LockoutOnFailure: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInFailed, result.Status)
	require.Empty(t, result.Account.ID)
}

func TestPasswordSignInDisabledAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com", Disabled: true}, "pw-12345678")

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "pw-12345678",
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInNotAllowed, result.Status)
}

func TestPasswordSignInLockoutProgression(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")

	// Two failures stay plain failures with the threshold at three.
	for i := 0; i < 2; i++ {
		result, err := svc.PasswordSignIn(ctx, SignInRequest{
			Identifier: "jdoe", Password: "wrong", LockoutOnFailure: true,
		})
		require.NoError(t, err)
		require.Equal(t, domain.SignInFailed, result.Status)
	}

	// The third failure trips the lockout.
	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "wrong", LockoutOnFailure: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInLockedOut, result.Status)

	stored, err := st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, uint(3), stored.FailedAttemptCount)
	require.NotNil(t, stored.LockoutUntil)

	// The correct password does not break through an active lockout.
	result, err = svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "pw-12345678", LockoutOnFailure: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInLockedOut, result.Status)
}

func TestPasswordSignInSuccessResetsCounters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")

	for i := 0; i < 2; i++ {
		_, err := svc.PasswordSignIn(ctx, SignInRequest{
			Identifier: "jdoe", Password: "wrong", LockoutOnFailure: true,
		})
		require.NoError(t, err)
	}

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "pw-12345678", LockoutOnFailure: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInSuccess, result.Status)

	stored, err := st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, uint(0), stored.FailedAttemptCount)
	require.Nil(t, stored.LockoutUntil)
}

func TestPasswordSignInExpiredLockoutAllowsRetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")

	// Pretend the lockout window ended a minute ago.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, st.Accounts().UpdateLockoutFields(ctx, acct.ID, 3, &past, acct.RowVersion))

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "pw-12345678", LockoutOnFailure: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInSuccess, result.Status)

	stored, err := st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, uint(0), stored.FailedAttemptCount)
	require.Nil(t, stored.LockoutUntil)
}

func TestPasswordSignInWithoutLockoutOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")

	for i := 0; i < 5; i++ {
		result, err := svc.PasswordSignIn(ctx, SignInRequest{
			Identifier: "jdoe", Password: "wrong", LockoutOnFailure: false,
		})
		require.NoError(t, err)
		require.Equal(t, domain.SignInFailed, result.Status)
	}

	stored, err := st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, uint(0), stored.FailedAttemptCount)
}

func enrollTOTP(t *testing.T, st store.Store, accountID string) string {
	t.Helper()
	ctx := context.Background()

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "jdoe"})
	require.NoError(t, err)
	require.NoError(t, st.Accounts().UpdateMFASecret(ctx, accountID, key.Secret()))
	require.NoError(t, st.Accounts().EnableMFA(ctx, accountID))
	return key.Secret()
}

func TestPasswordSignInTwoFactorFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")
	secret := enrollTOTP(t, st, acct.ID)

	// Leave a failure on the counter so the deferred reset is observable.
	_, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "wrong", LockoutOnFailure: true,
	})
	require.NoError(t, err)

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "pw-12345678", LockoutOnFailure: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInRequiresTwoFactor, result.Status)
	require.NotEmpty(t, result.MFAToken)
	require.Equal(t, acct.ID, result.Account.ID)

	// The password alone must not reset the counter.
	stored, err := st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, uint(1), stored.FailedAttemptCount)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	final, err := svc.CompleteTwoFactor(ctx, result.MFAToken, code)
	require.NoError(t, err)
	require.Equal(t, domain.SignInSuccess, final.Status)
	require.Equal(t, acct.ID, final.Account.ID)

	// Completion performs the deferred reset and consumes the session.
	stored, err = st.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, uint(0), stored.FailedAttemptCount)

	_, err = st.MFASessions().Get(ctx, result.MFAToken)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCompleteTwoFactorRejectsBadCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")
	enrollTOTP(t, st, acct.ID)

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "pw-12345678",
	})
	require.NoError(t, err)
	require.Equal(t, domain.SignInRequiresTwoFactor, result.Status)

	final, err := svc.CompleteTwoFactor(ctx, result.MFAToken, "000000")
	require.NoError(t, err)
	require.Equal(t, domain.SignInFailed, final.Status)
}

func TestCompleteTwoFactorBudget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	acct := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")
	enrollTOTP(t, st, acct.ID)

	result, err := svc.PasswordSignIn(ctx, SignInRequest{
		Identifier: "jdoe", Password: "pw-12345678",
	})
	require.NoError(t, err)

	var lastErr error
	for i := 0; i < maxMFAAttempts+1; i++ {
		_, lastErr = svc.CompleteTwoFactor(ctx, result.MFAToken, "000000")
		if lastErr != nil {
			break
		}
	}
	require.ErrorIs(t, lastErr, ErrTooManyMFAAttempts)

	// The consumed session no longer completes, even with a good token.
	final, err := svc.CompleteTwoFactor(ctx, result.MFAToken, "000000")
	require.NoError(t, err)
	require.Equal(t, domain.SignInFailed, final.Status)
}

func TestCompleteTwoFactorUnknownToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _ := newSignInService(t)

	result, err := svc.CompleteTwoFactor(ctx, "no-such-token", "123456")
	require.NoError(t, err)
	require.Equal(t, domain.SignInFailed, result.Status)
}

func TestPersistLockoutRetriesVersionConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	stale := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")
	policy := LockoutPolicy{MaxFailedAccessAttempts: 3, LockoutDuration: 5 * time.Minute}

	// A concurrent attempt bumps the row version behind the snapshot's
	// back; the stale write must re-read and land on top of it.
	require.NoError(t, st.Accounts().UpdateLockoutFields(ctx, stale.ID, 1, nil, stale.RowVersion))

	upd, err := svc.persistLockout(ctx, stale, VerifyFailed, time.Now(), policy)
	require.NoError(t, err)
	require.Equal(t, uint(2), upd.FailedAttemptCount)
	require.False(t, upd.LockedOut)

	stored, err := st.Accounts().GetByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, uint(2), stored.FailedAttemptCount)
}

func TestPersistLockoutKeepsConcurrentLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, st := newSignInService(t)
	stale := seedAccount(t, st, domain.Account{Username: "jdoe", Email: "jdoe@example.com"}, "pw-12345678")
	policy := LockoutPolicy{MaxFailedAccessAttempts: 3, LockoutDuration: 5 * time.Minute}

	// Another attempt already tripped the lockout; the losing writer must
	// resolve as locked instead of clobbering it.
	until := time.Now().Add(5 * time.Minute)
	require.NoError(t, st.Accounts().UpdateLockoutFields(ctx, stale.ID, 3, &until, stale.RowVersion))

	upd, err := svc.persistLockout(ctx, stale, VerifyFailed, time.Now(), policy)
	require.NoError(t, err)
	require.True(t, upd.LockedOut)

	stored, err := st.Accounts().GetByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, uint(3), stored.FailedAttemptCount)
	require.NotNil(t, stored.LockoutUntil)
}
