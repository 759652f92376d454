package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://identity.example.com"

func testKey() []byte { return []byte("0123456789abcdef") }

func TestSignVerifyRoundtrip(t *testing.T) {
	t.Parallel()

	now := time.Now()
	claims := NewAccessClaims(
		"01J5MA0000000000000000A001",
		"jdoe@example.com",
		"Jane Doe",
		[]string{"USER", "ADMIN", "USER"},
		testIssuer,
		time.Hour,
		now,
	)

	signer := NewSignerHS256(testKey())
	raw, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	verifier := NewVerifierHS256(testKey(), testIssuer)
	got, err := verifier.Verify(raw)
	require.NoError(t, err)

	require.Equal(t, "01J5MA0000000000000000A001", got.Subject)
	require.Equal(t, "01J5MA0000000000000000A001", got.Name)
	require.Equal(t, "jdoe@example.com", got.Email)
	require.Equal(t, "Jane Doe", got.DisplayName)
	require.Equal(t, testIssuer, got.Issuer)
	require.NotEmpty(t, got.ID, "jti must be set")

	// Roles deduplicated, order preserved.
	require.Equal(t, []string{"USER", "ADMIN"}, got.Roles)
}

func TestJTIIsUniquePerToken(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := NewAccessClaims("sub", "", "", nil, testIssuer, time.Hour, now)
	b := NewAccessClaims("sub", "", "", nil, testIssuer, time.Hour, now)
	require.NotEqual(t, a.ID, b.ID)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()

	claims := NewAccessClaims("sub", "", "", nil, testIssuer, time.Hour, time.Now())
	raw, err := NewSignerHS256(testKey()).Sign(claims)
	require.NoError(t, err)

	_, err = NewVerifierHS256([]byte("another-key-entirely"), testIssuer).Verify(raw)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	claims := NewAccessClaims("sub", "", "", nil, "https://other.example.com", time.Hour, time.Now())
	raw, err := NewSignerHS256(testKey()).Sign(claims)
	require.NoError(t, err)

	_, err = NewVerifierHS256(testKey(), testIssuer).Verify(raw)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-2 * time.Hour)
	claims := NewAccessClaims("sub", "", "", nil, testIssuer, time.Hour, past)
	raw, err := NewSignerHS256(testKey()).Sign(claims)
	require.NoError(t, err)

	_, err = NewVerifierHS256(testKey(), testIssuer).Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := NewVerifierHS256(testKey(), testIssuer).Verify("not-a-token")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyRejectsAlgorithmSubstitution(t *testing.T) {
	t.Parallel()

	// A token declaring alg=none must never pass HMAC verification.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "attacker",
		"iss": testIssuer,
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewVerifierHS256(testKey(), testIssuer).Verify(raw)
	require.Error(t, err)
}

func TestSignerRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewSignerHS256(nil).Sign(Claims{})
	require.ErrorIs(t, err, ErrNoKey)
}

func TestHasRole(t *testing.T) {
	t.Parallel()

	c := NewAccessClaims("sub", "", "", []string{"ADMIN"}, testIssuer, time.Hour, time.Now())
	require.True(t, c.HasRole("ADMIN"))
	require.False(t, c.HasRole("USER"))
}
