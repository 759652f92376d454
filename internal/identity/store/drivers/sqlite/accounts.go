package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"strings"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/cryptox"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, username, email, first_name, last_name, roles,
	failed_attempt_count, lockout_until, disabled, mfa_enabled, mfa_secret,
	row_version, created_at, updated_at`

func (r *accountsRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getAccount(ctx, "id", id)
}

func (r *accountsRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	return r.getAccount(ctx, "username", username)
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getAccount(ctx, "email", email)
}

func (r *accountsRepo) getAccount(ctx context.Context, column, value string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ?`, value)

	var (
		a            domain.Account
		roles        string
		lockoutUntil sql.NullInt64
		disabled     int64
		mfaEnabled   sql.NullInt64
		mfaSecret    sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &roles,
		&a.FailedAttemptCount, &lockoutUntil, &disabled, &mfaEnabled, &mfaSecret,
		&a.RowVersion, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Roles = splitRoles(roles)
	a.Disabled = disabled != 0
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if lockoutUntil.Valid {
		t := time.Unix(lockoutUntil.Int64, 0).UTC()
		a.LockoutUntil = &t
	}
	if mfaEnabled.Valid {
		t := time.Unix(mfaEnabled.Int64, 0).UTC()
		a.MFAEnabled = &t
	}
	if mfaSecret.Valid && mfaSecret.String != "" {
		s := mfaSecret.String
		a.MFASecret = &s
	}

	return a, nil
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account, cred cryptox.Credential) error {
	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, username, email, first_name, last_name, roles,
			password_hash, password_public_salt, password_private_salt,
			failed_attempt_count, disabled, row_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 0, ?, ?)`,
		a.ID, a.Username, a.Email, a.FirstName, a.LastName, joinRoles(a.Roles),
		encodeB64(cred.Hash), encodeB64(cred.PublicSalt), encodeB64(cred.PrivateSalt),
		boolToInt(a.Disabled), now, now,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *accountsRepo) UpdateProfile(ctx context.Context, id, email, firstName, lastName string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET email = ?, first_name = ?, last_name = ?, updated_at = ?
		WHERE id = ?`,
		email, firstName, lastName, time.Now().Unix(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) GetCredential(ctx context.Context, id string) (cryptox.Credential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT password_hash, password_public_salt, password_private_salt
		FROM accounts WHERE id = ?`, id)

	var hash, publicSalt, privateSalt string
	if err := row.Scan(&hash, &publicSalt, &privateSalt); err != nil {
		return cryptox.Credential{}, mapNotFound(err)
	}

	// A row with malformed or missing parts decodes to an incomplete
	// credential, which verification treats as absent.
	return cryptox.Credential{
		Hash:        decodeB64(hash),
		PublicSalt:  decodeB64(publicSalt),
		PrivateSalt: decodeB64(privateSalt),
	}, nil
}

func (r *accountsRepo) UpdateCredential(ctx context.Context, id string, cred cryptox.Credential) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			password_hash = ?, password_public_salt = ?, password_private_salt = ?,
			updated_at = ?
		WHERE id = ?`,
		encodeB64(cred.Hash), encodeB64(cred.PublicSalt), encodeB64(cred.PrivateSalt),
		time.Now().Unix(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateLockoutFields writes the counter pair guarded by the row version.
// Both fields move in one UPDATE: either the whole pair lands or nothing
// does, and a concurrent writer surfaces as ErrVersionConflict.
func (r *accountsRepo) UpdateLockoutFields(ctx context.Context, id string, failedCount uint, lockoutUntil *time.Time, expectedVersion int64) error {
	var until sql.NullInt64
	if lockoutUntil != nil {
		until = sql.NullInt64{Int64: lockoutUntil.Unix(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			failed_attempt_count = ?, lockout_until = ?,
			row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ?`,
		failedCount, until, time.Now().Unix(), id, expectedVersion,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Distinguish a stale version from a vanished row.
	var exists int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM accounts WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrVersionConflict
}

func (r *accountsRepo) UpdateMFASecret(ctx context.Context, id, secret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		secret, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) EnableMFA(ctx context.Context, id string) error {
	now := time.Now().Unix()
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_enabled = ?, updated_at = ? WHERE id = ?`,
		now, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) DisableMFA(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_enabled = NULL, mfa_secret = NULL, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM accounts`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encodeB64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeB64(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

func joinRoles(roles []string) string {
	return strings.Join(roles, " ")
}

func splitRoles(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
