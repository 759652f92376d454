package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/cryptox"
	"github.com/authlane/identity/pkg/idx"
	"github.com/authlane/identity/pkg/slogx"
)

var (
	// ErrUnknownRole reports an account create/update naming a role that
	// does not exist in the directory.
	ErrUnknownRole = errors.New("service: unknown role")

	// ErrInvalidAccount reports a create request failing field validation.
	ErrInvalidAccount = errors.New("service: invalid account")

	// ErrWrongPassword reports a password change where the current password
	// did not verify.
	ErrWrongPassword = errors.New("service: wrong password")
)

// AccountService owns the account lifecycle: registration, profile reads and
// updates, password changes and deletion. Sign-in never goes through here.
type AccountService struct {
	Store  store.Store
	Hasher cryptox.Hasher
}

// CreateAccountRequest carries the fields for a new registration. When
// Password is empty a random one is generated and returned to the caller
// exactly once.
type CreateAccountRequest struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Roles     []string
}

// Create registers a new account. Every requested role must already exist;
// when none are requested the account gets the USER role. Returns the stored
// account and, when the password was generated, its plaintext.
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (domain.Account, string, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" {
		return domain.Account{}, "", fmt.Errorf("%w: username is required", ErrInvalidAccount)
	}
	if strings.Contains(req.Username, "@") {
		// '@' routes identifiers to email lookup, so a username carrying
		// one could never be signed in with.
		return domain.Account{}, "", fmt.Errorf("%w: username must not contain '@'", ErrInvalidAccount)
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return domain.Account{}, "", fmt.Errorf("%w: email must contain '@'", ErrInvalidAccount)
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}
	for _, role := range roles {
		ok, err := s.Store.Roles().Exists(ctx, role)
		if err != nil {
			return domain.Account{}, "", fmt.Errorf("account: check role %q: %w", role, err)
		}
		if !ok {
			return domain.Account{}, "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
	}

	generated := ""
	password := req.Password
	if password == "" {
		p, err := cryptox.GeneratePassword()
		if err != nil {
			return domain.Account{}, "", fmt.Errorf("account: generate password: %w", err)
		}
		password, generated = p, p
	}

	cred, err := s.Hasher.Generate(password)
	if err != nil {
		return domain.Account{}, "", fmt.Errorf("account: hash password: %w", err)
	}

	now := time.Now().UTC()
	acct := domain.Account{
		ID:        idx.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Store.Accounts().Create(ctx, acct, cred); err != nil {
		return domain.Account{}, "", fmt.Errorf("account: create: %w", err)
	}

	slogx.FromContext(ctx).Info("account created",
		"account_id", acct.ID,
		"username", acct.Username,
	)
	return acct, generated, nil
}

// GetByID fetches one account snapshot.
func (s *AccountService) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return s.Store.Accounts().GetByID(ctx, id)
}

// GetByUsername fetches one account snapshot by username.
func (s *AccountService) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	return s.Store.Accounts().GetByUsername(ctx, strings.TrimSpace(username))
}

// UpdateProfileRequest carries the mutable profile fields.
type UpdateProfileRequest struct {
	Email     string
	FirstName string
	LastName  string
}

// UpdateProfile replaces the profile fields of an existing account.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (domain.Account, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return domain.Account{}, fmt.Errorf("%w: email must contain '@'", ErrInvalidAccount)
	}

	err := s.Store.Accounts().UpdateProfile(ctx, id, req.Email,
		strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName))
	if err != nil {
		return domain.Account{}, fmt.Errorf("account: update profile: %w", err)
	}
	return s.Store.Accounts().GetByID(ctx, id)
}

// ChangePassword verifies the current password and replaces the whole
// credential triple. Salts are regenerated, never reused.
func (s *AccountService) ChangePassword(ctx context.Context, id, current, next string) error {
	cred, err := s.Store.Accounts().GetCredential(ctx, id)
	if err != nil {
		return fmt.Errorf("account: load credential: %w", err)
	}
	if !s.Hasher.Verify(current, cred) {
		return ErrWrongPassword
	}

	fresh, err := s.Hasher.Generate(next)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	if err := s.Store.Accounts().UpdateCredential(ctx, id, fresh); err != nil {
		return fmt.Errorf("account: update credential: %w", err)
	}

	slogx.FromContext(ctx).Info("password changed", "account_id", id)
	return nil
}

// Delete removes an account.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.Store.Accounts().Delete(ctx, id); err != nil {
		return fmt.Errorf("account: delete: %w", err)
	}
	slogx.FromContext(ctx).Info("account deleted", "account_id", id)
	return nil
}
