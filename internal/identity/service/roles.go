package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/idx"
	"github.com/authlane/identity/pkg/slogx"
)

// ErrInvalidRole reports a role create request failing validation.
var ErrInvalidRole = errors.New("service: invalid role")

// RoleService manages the role directory backing account role assignment.
type RoleService struct {
	Store store.Store
}

// Create adds a new role. Names are stored uppercase so assignment and claim
// comparison stay case-stable.
func (s *RoleService) Create(ctx context.Context, name string) (domain.Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return domain.Role{}, fmt.Errorf("%w: name is required", ErrInvalidRole)
	}

	role := domain.Role{
		ID:        idx.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.Roles().Create(ctx, role); err != nil {
		return domain.Role{}, fmt.Errorf("role: create: %w", err)
	}

	slogx.FromContext(ctx).Info("role created", "role", name)
	return role, nil
}

// List returns every role in the directory.
func (s *RoleService) List(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListAll(ctx)
}

// Delete removes a role by name.
func (s *RoleService) Delete(ctx context.Context, name string) error {
	role, err := s.Store.Roles().GetByName(ctx, strings.ToUpper(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("role: resolve %q: %w", name, err)
	}
	if err := s.Store.Roles().Delete(ctx, role.ID); err != nil {
		return fmt.Errorf("role: delete: %w", err)
	}
	slogx.FromContext(ctx).Info("role deleted", "role", role.Name)
	return nil
}
