package domain

import "time"

// Role groups claim grants shared by its members.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
