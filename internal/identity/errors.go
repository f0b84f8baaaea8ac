package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors the workflow maps onto its outcome taxonomy.
var (
	ErrUserNotFound             = errors.New("user not found")
	ErrPasswordMismatch         = errors.New("password mismatch")
	ErrLockedOut                = errors.New("account locked out")
	ErrInvalidConfirmationToken = errors.New("invalid confirmation token")
)

// FieldError describes a single rejected field during user creation.
type FieldError struct {
	Field       string
	Code        string
	Description string
}

// CreateError aggregates the per-field reasons a user record was rejected.
// The details are for logging only; callers surface a generic failure.
type CreateError struct {
	Fields []FieldError
}

func (e *CreateError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Code))
	}
	return "user not created: " + strings.Join(parts, ", ")
}
