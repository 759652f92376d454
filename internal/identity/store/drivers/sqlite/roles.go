package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/authlane/identity/internal/identity/domain"
	"github.com/authlane/identity/internal/identity/store"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) Create(ctx context.Context, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?)`,
		role.ID, role.Name, time.Now().Unix())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *rolesRepo) GetByName(ctx context.Context, name string) (domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM roles WHERE name = ?`, name)

	var (
		role      domain.Role
		createdAt int64
	)
	if err := row.Scan(&role.ID, &role.Name, &createdAt); err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.CreatedAt = time.Unix(createdAt, 0).UTC()
	return role, nil
}

func (r *rolesRepo) Exists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM roles WHERE name = ?`, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var (
			role      domain.Role
			createdAt int64
		)
		if err := rows.Scan(&role.ID, &role.Name, &createdAt); err != nil {
			return nil, err
		}
		role.CreatedAt = time.Unix(createdAt, 0).UTC()
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *rolesRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *rolesRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM roles`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
