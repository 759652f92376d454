package service

import (
	"context"
	"fmt"
	"time"

	"github.com/authlane/identity/internal/identity/config"
	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/pkg/jwtx"
	"github.com/authlane/identity/pkg/slogx"
)

// TokenService issues signed access tokens for authenticated accounts. Every
// issuance reads one settings snapshot, so key or TTL changes apply cleanly
// at the next call and never mid-issuance.
type TokenService struct {
	Config *config.Provider

	// Now is the clock; tests pin it. Nil means time.Now.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssueToken signs an HS256 access token for the account. Claims carry the
// account id as both sub and name, the email, the display name and the
// deduplicated role set; jti is a fresh UUID per token.
func (s *TokenService) IssueToken(ctx context.Context, acct domain.Account) (domain.IssuedToken, error) {
	cfg := s.Config.Snapshot()
	now := s.now()
	ttl := cfg.TokenTTL()

	claims := jwtx.NewAccessClaims(
		acct.ID,
		acct.Email,
		acct.DisplayName(),
		acct.Roles,
		cfg.JwtIssuer,
		ttl,
		now,
	)

	signer := jwtx.NewSignerHS256([]byte(cfg.JwtKey))
	signed, err := signer.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("token: sign: %w", err)
	}

	slogx.FromContext(ctx).Debug("access token issued",
		"account_id", acct.ID,
		"jti", claims.ID,
		"expires_at", now.Add(ttl),
	)

	return domain.IssuedToken{
		Token:     signed,
		SubjectID: acct.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}
