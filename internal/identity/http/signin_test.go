package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/authlane/identity/internal/identity/config"
	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/service"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/internal/identity/store/drivers/sqlite"
	"github.com/authlane/identity/pkg/cryptox"
	"github.com/authlane/identity/pkg/httpx"
	"github.com/authlane/identity/pkg/idx"
	"github.com/authlane/identity/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newSignInHandler(t *testing.T) (*SignInHandler, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	provider, err := config.NewProvider(config.Settings{
		JwtKey:                  "test-signing-key",
		JwtIssuer:               "https://identity.example.com",
		JwtExpireDays:           7,
		MaxFailedAccessAttempts: 2,
		LockoutDuration:         5 * time.Minute,
	})
	require.NoError(t, err)

	return &SignInHandler{
		SignInService: &service.SignInService{
			Store:  st,
			Hasher: cryptox.TwoStageHasher{},
			Config: provider,
		},
		TokenService: &service.TokenService{Config: provider},
	}, st
}

func seedHandlerAccount(t *testing.T, st store.Store, password string) domain.Account {
	t.Helper()

	a := domain.Account{
		ID:       idx.New().String(),
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Roles:    []string{domain.RoleUser},
	}
	cred, err := cryptox.TwoStageHasher{}.Generate(password)
	require.NoError(t, err)
	require.NoError(t, st.Accounts().Create(context.Background(), a, cred))
	return a
}

func postSignIn(t *testing.T, h *SignInHandler, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.HandlePassword(rec, req)
	return rec
}

func TestHandlePasswordIssuesToken(t *testing.T) {
	t.Parallel()

	h, st := newSignInHandler(t)
	acct := seedHandlerAccount(t, st, "pw-12345678")

	rec := postSignIn(t, h, SignInRequest{Username: "jdoe", Password: "pw-12345678"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp SignInResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, acct.ID, resp.UserID)
	require.True(t, resp.ExpirationDate.After(time.Now().Add(6*24*time.Hour)))

	claims, err := jwtx.NewVerifierHS256([]byte("test-signing-key"), "https://identity.example.com").
		Verify(resp.JwtToken)
	require.NoError(t, err)
	require.Equal(t, acct.ID, claims.Subject)
	require.Equal(t, "jdoe@example.com", claims.Email)
}

func TestHandlePasswordWrongCredentials(t *testing.T) {
	t.Parallel()

	h, st := newSignInHandler(t)
	seedHandlerAccount(t, st, "pw-12345678")

	for _, body := range []SignInRequest{
		{Username: "jdoe", Password: "wrong"},
		{Username: "nobody", Password: "whatever"},
	} {
		rec := postSignIn(t, h, body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		// The envelope is identical for bad password and unknown user.
		var resp httpx.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "invalid_credentials", resp.Error)
	}
}

func TestHandlePasswordLockout(t *testing.T) {
	t.Parallel()

	h, st := newSignInHandler(t)
	seedHandlerAccount(t, st, "pw-12345678")

	// Threshold is two in this handler fixture.
	rec := postSignIn(t, h, SignInRequest{Username: "jdoe", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postSignIn(t, h, SignInRequest{Username: "jdoe", Password: "wrong"})
	require.Equal(t, http.StatusLocked, rec.Code)

	// Correct password while locked still reports the lockout.
	rec = postSignIn(t, h, SignInRequest{Username: "jdoe", Password: "pw-12345678"})
	require.Equal(t, http.StatusLocked, rec.Code)

	var resp httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "locked_out", resp.Error)
}

func TestHandlePasswordDisabledAccount(t *testing.T) {
	t.Parallel()

	h, st := newSignInHandler(t)

	a := domain.Account{
		ID:       idx.New().String(),
		Username: "gone",
		Email:    "gone@example.com",
		Roles:    []string{domain.RoleUser},
		Disabled: true,
	}
	cred, err := cryptox.TwoStageHasher{}.Generate("pw-12345678")
	require.NoError(t, err)
	require.NoError(t, st.Accounts().Create(context.Background(), a, cred))

	rec := postSignIn(t, h, SignInRequest{Username: "gone", Password: "pw-12345678"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlePasswordMalformedBody(t *testing.T) {
	t.Parallel()

	h, _ := newSignInHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.HandlePassword(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTwoFactorChallenge(t *testing.T) {
	t.Parallel()

	h, st := newSignInHandler(t)
	acct := seedHandlerAccount(t, st, "pw-12345678")

	ctx := context.Background()
	require.NoError(t, st.Accounts().UpdateMFASecret(ctx, acct.ID, "JBSWY3DPEHPK3PXP"))
	require.NoError(t, st.Accounts().EnableMFA(ctx, acct.ID))

	rec := postSignIn(t, h, SignInRequest{Username: "jdoe", Password: "pw-12345678"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var challenge TwoFactorChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &challenge))
	require.NotEmpty(t, challenge.MFAToken)

	// A wrong code on the challenge endpoint is a plain 401.
	raw, err := json.Marshal(TwoFactorRequest{MFAToken: challenge.MFAToken, Code: "000000"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin/mfa", bytes.NewReader(raw))
	mfaRec := httptest.NewRecorder()
	h.HandleTwoFactor(mfaRec, req)
	require.Equal(t, http.StatusUnauthorized, mfaRec.Code)
}
