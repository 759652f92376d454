package sqlite

import (
	"context"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
)

type mfaSessionsRepo struct {
	db dbtx
}

func (r *mfaSessionsRepo) Create(ctx context.Context, s domain.MFASession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_sessions (token, account_id, attempts, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.Token, s.AccountID, s.Attempts, s.CreatedAt.Unix(), s.ExpiresAt.Unix())
	return err
}

func (r *mfaSessionsRepo) Get(ctx context.Context, token string) (domain.MFASession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, account_id, attempts, created_at, expires_at
		FROM mfa_sessions WHERE token = ? AND expires_at > ?`,
		token, time.Now().Unix())

	var (
		s         domain.MFASession
		createdAt int64
		expiresAt int64
	)
	if err := row.Scan(&s.Token, &s.AccountID, &s.Attempts, &createdAt, &expiresAt); err != nil {
		return domain.MFASession{}, mapNotFound(err)
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return s, nil
}

func (r *mfaSessionsRepo) IncrementAttempts(ctx context.Context, token string) (domain.MFASession, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mfa_sessions SET attempts = attempts + 1 WHERE token = ?`, token)
	if err != nil {
		return domain.MFASession{}, err
	}
	if err := requireRow(res); err != nil {
		return domain.MFASession{}, err
	}
	return r.Get(ctx, token)
}

func (r *mfaSessionsRepo) Delete(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_sessions WHERE token = ?`, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *mfaSessionsRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_sessions WHERE expires_at <= ?`, time.Now().Unix())
	return err
}
