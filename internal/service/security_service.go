package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/security-service/internal/auth"
	"github.com/spec-kit/security-service/internal/domain"
	"github.com/spec-kit/security-service/internal/events"
	"github.com/spec-kit/security-service/internal/identity"
	"github.com/spec-kit/security-service/pkg/util"
)

// Outcome codes for expected login/registration failures.
const (
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeUserInactive            = "USER_INACTIVE"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeUserNotCreated          = "USER_NOT_CREATED"
	CodeEmailConfirmationFailed = "EMAIL_CONFIRMATION_FAILED"
)

// UserStore is the narrow operation set the workflow needs from the
// identity layer. *identity.Manager is the production implementation.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	CheckPassword(ctx context.Context, user *domain.User, password string) error
	CreateUser(ctx context.Context, user *domain.User, password string) error
	GenerateEmailConfirmationToken(ctx context.Context, user *domain.User) (string, error)
	ConfirmEmail(ctx context.Context, user *domain.User, token string) error
	AddToRoles(ctx context.Context, user *domain.User, roles []string) error
	GetRoles(ctx context.Context, user *domain.User) ([]string, error)
	GetUserClaims(ctx context.Context, user *domain.User) ([]domain.Claim, error)
	GetRoleClaims(ctx context.Context, roleName string) ([]domain.Claim, error)
}

// SecurityService orchestrates login, registration and token decoding.
// Expected failures come back as typed domain errors; store faults outside
// the taxonomy propagate unchanged for the transport to turn into a 5xx.
type SecurityService struct {
	store      UserStore
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewSecurityService builds the service.
func NewSecurityService(store UserStore, tokens *auth.TokenManager, dispatcher events.Dispatcher, logger *zap.Logger) *SecurityService {
	return &SecurityService{store: store, tokens: tokens, dispatcher: dispatcher, logger: logger}
}

// Login authenticates by username, falling back to email lookup, and
// returns a signed token for the account.
func (s *SecurityService) Login(ctx context.Context, username, password string) (string, error) {
	s.logger.Info("login attempt", zap.String("username", username))

	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, identity.ErrUserNotFound) {
		s.logger.Warn("username not registered, trying email", zap.String("username", username))
		user, err = s.store.FindByEmail(ctx, username)
	}
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			s.logger.Warn("login rejected, user not found", zap.String("username", username))
			return "", util.NewAuthFailure(CodeUserNotFound, "user not found")
		}
		return "", err
	}

	if !user.Active {
		s.logger.Warn("login rejected, user not active", zap.String("username", user.Username))
		return "", util.NewAuthFailure(CodeUserInactive, "user is not active")
	}

	if err := s.store.CheckPassword(ctx, user, password); err != nil {
		if errors.Is(err, identity.ErrPasswordMismatch) || errors.Is(err, identity.ErrLockedOut) {
			return "", util.NewAuthFailure(CodeInvalidCredentials, "invalid credentials")
		}
		return "", err
	}

	principal, err := s.loadPrincipal(ctx, user)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(auth.BuildClaims(principal))
	if err != nil {
		return "", err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID, events.UserLoggedInPayload{Username: user.Username})
	s.logger.Info("user logged in", zap.String("username", user.Username))
	return token, nil
}

// Register creates an account under the store's password policy. When email
// confirmation is required the workflow stops after generating the token;
// otherwise it confirms immediately and assigns the requested roles.
func (s *SecurityService) Register(ctx context.Context, model domain.Registration, isAdmin, emailConfirmationRequired bool) error {
	s.logger.Info("registration attempt", zap.String("email", model.Email))

	user := &domain.User{
		Username:  model.Username,
		Email:     model.Email,
		FirstName: model.FirstName,
		LastName:  model.LastName,
		Active:    true,
		Staff:     isAdmin,
	}

	if err := s.store.CreateUser(ctx, user, model.Password); err != nil {
		var createErr *identity.CreateError
		if errors.As(err, &createErr) {
			for _, fe := range createErr.Fields {
				s.logger.Error("user creation rejected",
					zap.String("field", fe.Field),
					zap.String("code", fe.Code),
					zap.String("description", fe.Description),
				)
			}
			return util.NewAuthFailure(CodeUserNotCreated, "user not created")
		}
		return err
	}

	token, err := s.store.GenerateEmailConfirmationToken(ctx, user)
	if err != nil {
		return err
	}

	if emailConfirmationRequired {
		s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
			Username:          user.Username,
			Email:             user.Email,
			ConfirmationToken: token,
		})
		return nil
	}

	if err := s.store.ConfirmEmail(ctx, user, token); err != nil {
		// The record exists at this point; callers need to distinguish
		// this from "nothing happened".
		failure := util.NewAuthFailure(CodeEmailConfirmationFailed, "User created but email confirmation failed")
		failure.Err = err
		return failure
	}

	if err := s.store.AddToRoles(ctx, user, model.Roles); err != nil {
		return err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Username:       user.Username,
		Email:          user.Email,
		Roles:          model.Roles,
		EmailConfirmed: true,
	})
	s.logger.Info("user registered", zap.String("username", user.Username))
	return nil
}

// DecodeToken verifies the bearer token and returns its claims.
func (s *SecurityService) DecodeToken(tokenStr string) (*auth.DecodedToken, error) {
	return s.tokens.Decode(tokenStr)
}

func (s *SecurityService) loadPrincipal(ctx context.Context, user *domain.User) (*auth.Principal, error) {
	roles, err := s.store.GetRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	direct, err := s.store.GetUserClaims(ctx, user)
	if err != nil {
		return nil, err
	}

	roleClaims := make(map[string][]domain.Claim, len(roles))
	for _, role := range roles {
		claims, err := s.store.GetRoleClaims(ctx, role)
		if err != nil {
			return nil, err
		}
		if len(claims) > 0 {
			roleClaims[role] = claims
		}
	}

	return &auth.Principal{
		UserID:     user.ID,
		Username:   user.Username,
		FullName:   user.FullName(),
		Staff:      user.Staff,
		Active:     user.Active,
		Roles:      roles,
		Claims:     direct,
		RoleClaims: roleClaims,
	}, nil
}

func (s *SecurityService) publish(ctx context.Context, eventType events.EventType, userID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
