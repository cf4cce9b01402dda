package domain

import "time"

// Role names a capability bundle. The shipped policy instantiates admin, agent and user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// User is an identity that can act on tickets.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the already-authenticated caller of a command.
type Actor struct {
	ID   string
	Role Role
}
