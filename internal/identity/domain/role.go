package domain

import "time"

type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Built-in roles seeded by the schema migrations.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)
