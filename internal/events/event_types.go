package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserLoggedIn   EventType = "user_logged_in"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload. The confirmation token rides along so an
// external mailer can deliver it when confirmation is still pending.
type UserRegisteredPayload struct {
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	Roles             []string `json:"roles,omitempty"`
	EmailConfirmed    bool     `json:"email_confirmed"`
	ConfirmationToken string   `json:"confirmation_token,omitempty"`
}

// UserLoggedInPayload payload.
type UserLoggedInPayload struct {
	Username string `json:"username"`
}
