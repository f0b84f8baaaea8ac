package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/security-service/internal/config"
	"github.com/spec-kit/security-service/internal/domain"
	"github.com/spec-kit/security-service/internal/repository"
)

// Manager is the user store: account lookup, password verification with
// lockout tracking, account creation under the password policy, email
// confirmation and role/claim enumeration. The auth workflow only depends
// on this narrow operation set.
type Manager struct {
	users   repository.UserRepository
	roles   repository.RoleRepository
	lockout LockoutPolicy
	cfg     config.IdentityConfig
	logger  *zap.Logger
}

// NewManager builds the user store over its repositories and lockout policy.
func NewManager(users repository.UserRepository, roles repository.RoleRepository, lockout LockoutPolicy, cfg config.IdentityConfig, logger *zap.Logger) *Manager {
	return &Manager{users: users, roles: roles, lockout: lockout, cfg: cfg, logger: logger}
}

// FindByUsername looks up an account by username.
func (m *Manager) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// FindByEmail looks up an account by email address.
func (m *Manager) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CheckPassword verifies the password and maintains the lockout counter:
// a locked account fails without touching the hash, a mismatch records a
// failed attempt, a match resets the counter.
func (m *Manager) CheckPassword(ctx context.Context, user *domain.User, password string) error {
	locked, err := m.lockout.IsLocked(ctx, user.ID)
	if err != nil {
		return err
	}
	if locked {
		m.logger.Warn("sign-in attempt on locked account", zap.String("username", user.Username))
		return ErrLockedOut
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		if recErr := m.lockout.RecordFailure(ctx, user.ID); recErr != nil {
			return recErr
		}
		return ErrPasswordMismatch
	}

	if err := m.lockout.Reset(ctx, user.ID); err != nil {
		return err
	}
	return nil
}

// CreateUser validates the password policy and username/email uniqueness,
// hashes the password and persists the record. Rejections come back as a
// *CreateError carrying per-field detail.
func (m *Manager) CreateUser(ctx context.Context, user *domain.User, password string) error {
	var fields []FieldError

	if len(password) < m.cfg.MinPasswordLength {
		fields = append(fields, FieldError{
			Field:       "password",
			Code:        "PasswordTooShort",
			Description: fmt.Sprintf("passwords must be at least %d characters", m.cfg.MinPasswordLength),
		})
	}
	if user.Username == "" {
		fields = append(fields, FieldError{Field: "username", Code: "UsernameRequired", Description: "username must not be empty"})
	} else if _, err := m.FindByUsername(ctx, user.Username); err == nil {
		fields = append(fields, FieldError{Field: "username", Code: "DuplicateUsername", Description: "username is already taken"})
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if user.Email != "" {
		if _, err := m.FindByEmail(ctx, user.Email); err == nil {
			fields = append(fields, FieldError{Field: "email", Code: "DuplicateEmail", Description: "email is already registered"})
		} else if !errors.Is(err, ErrUserNotFound) {
			return err
		}
	}
	if len(fields) > 0 {
		return &CreateError{Fields: fields}
	}

	hash, err := HashPassword(password, m.cfg.BcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return m.users.Create(ctx, user)
}

// GenerateEmailConfirmationToken stores a fresh confirmation token on the
// account and returns it for delivery.
func (m *Manager) GenerateEmailConfirmationToken(ctx context.Context, user *domain.User) (string, error) {
	token := uuid.NewString()
	if err := m.users.SetConfirmationToken(ctx, user.ID, token); err != nil {
		return "", err
	}
	user.ConfirmationToken = token
	return token, nil
}

// ConfirmEmail marks the account confirmed when the presented token matches
// the stored one.
func (m *Manager) ConfirmEmail(ctx context.Context, user *domain.User, token string) error {
	if token == "" || token != user.ConfirmationToken {
		return ErrInvalidConfirmationToken
	}
	if err := m.users.ConfirmEmail(ctx, user.ID); err != nil {
		return err
	}
	user.EmailConfirmed = true
	user.ConfirmationToken = ""
	return nil
}

// AddToRoles assigns the named roles to the user. Unknown role names are
// logged and skipped rather than failing the whole assignment.
func (m *Manager) AddToRoles(ctx context.Context, user *domain.User, roleNames []string) error {
	for _, name := range roleNames {
		role, err := m.roles.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				m.logger.Warn("skipping unknown role", zap.String("role", name), zap.String("username", user.Username))
				continue
			}
			return err
		}
		if err := m.users.AssignRole(ctx, user.ID, role.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetRoles returns the user's role names in assignment order.
func (m *Manager) GetRoles(ctx context.Context, user *domain.User) ([]string, error) {
	return m.roles.ListForUser(ctx, user.ID)
}

// GetUserClaims returns the claims granted directly to the user.
func (m *Manager) GetUserClaims(ctx context.Context, user *domain.User) ([]domain.Claim, error) {
	return m.users.ListClaims(ctx, user.ID)
}

// GetRoleClaims returns the claims granted through the named role. A role
// that cannot be resolved contributes an empty set, never an error.
func (m *Manager) GetRoleClaims(ctx context.Context, roleName string) ([]domain.Claim, error) {
	role, err := m.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m.roles.ListClaims(ctx, role.ID)
}
