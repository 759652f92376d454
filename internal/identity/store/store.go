package store

import (
	"context"
	"errors"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/pkg/cryptox"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrVersionConflict reports a lost compare-and-set race on an
	// account row; the caller re-reads and re-applies its update.
	ErrVersionConflict = errors.New("store: row version conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Accounts() Accounts
	Roles() Roles
	MFASessions() MFASessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetByID returns an account snapshot by id.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByUsername resolves the canonical sign-in identifier.
	GetByUsername(ctx context.Context, username string) (domain.Account, error)

	// GetByEmail resolves identifiers containing '@'.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// Create inserts a new account together with its freshly generated
	// credential (id is provided by the app via ULID).
	Create(ctx context.Context, a domain.Account, cred cryptox.Credential) error

	// UpdateProfile mutates the mutable profile fields and bumps updated_at.
	UpdateProfile(ctx context.Context, id, email, firstName, lastName string) error

	// Delete removes the account row.
	Delete(ctx context.Context, id string) error

	// GetCredential returns the stored credential triple. A row with any
	// part missing decodes to an incomplete credential, which verifies
	// false downstream.
	GetCredential(ctx context.Context, id string) (cryptox.Credential, error)

	// UpdateCredential replaces the whole triple. Salts are never reused
	// or mutated in place; a password change is a full regeneration.
	UpdateCredential(ctx context.Context, id string, cred cryptox.Credential) error

	// UpdateLockoutFields writes the counter pair in one guarded UPDATE.
	// The write applies only while the row version still equals
	// expectedVersion; otherwise ErrVersionConflict is returned and
	// nothing is written. The pair is all-or-nothing.
	UpdateLockoutFields(ctx context.Context, id string, failedCount uint, lockoutUntil *time.Time, expectedVersion int64) error

	// UpdateMFASecret stores the TOTP secret without enabling MFA.
	UpdateMFASecret(ctx context.Context, id, secret string) error

	// EnableMFA marks second-factor activation (sets mfa_enabled).
	EnableMFA(ctx context.Context, id string) error

	// DisableMFA clears both mfa_enabled and mfa_secret.
	DisableMFA(ctx context.Context, id string) error

	// IsEmpty returns true if there are no accounts.
	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	// Create inserts a new role (id is ULID).
	Create(ctx context.Context, r domain.Role) error

	// GetByName fetches a role by its unique name.
	GetByName(ctx context.Context, name string) (domain.Role, error)

	// Exists is the assignment-time check used when accounts are created.
	Exists(ctx context.Context, name string) (bool, error)

	// ListAll returns all roles in the system.
	ListAll(ctx context.Context) ([]domain.Role, error)

	// Delete removes a role.
	Delete(ctx context.Context, id string) error

	// IsEmpty returns true if there are no roles.
	IsEmpty(ctx context.Context) (bool, error)
}

type MFASessions interface {
	// Create stores a new second-factor challenge session.
	Create(ctx context.Context, s domain.MFASession) error

	// Get retrieves a session by token, only while not expired.
	Get(ctx context.Context, token string) (domain.MFASession, error)

	// IncrementAttempts bumps the failed attempt counter and returns the
	// updated session.
	IncrementAttempts(ctx context.Context, token string) (domain.MFASession, error)

	// Delete removes a session by token.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes all expired sessions (housekeeping).
	DeleteExpired(ctx context.Context) error
}
