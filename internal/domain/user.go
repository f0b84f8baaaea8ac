package domain

import (
	"strings"
	"time"
)

// User is the domain model for identity accounts.
type User struct {
	ID                string
	Username          string
	Email             string
	FirstName         string
	LastName          string
	PasswordHash      string
	Active            bool
	Staff             bool
	EmailConfirmed    bool
	ConfirmationToken string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullName joins first and last name, tolerating either being empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Registration carries the fields submitted when creating an account.
type Registration struct {
	Username  string
	FirstName string
	LastName  string
	Password  string
	Email     string
	Roles     []string
}
