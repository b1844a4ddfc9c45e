package models

import (
	"time"
)

// User is the subset of an admin account needed to check credentials
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string // "admin" or "editor"
	Status       string // "active", "suspended", "disabled"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account may sign in
func (u *User) IsActive() bool {
	return u.Status == "active"
}
