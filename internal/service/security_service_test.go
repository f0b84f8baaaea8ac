package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/security-service/internal/auth"
	"github.com/spec-kit/security-service/internal/config"
	"github.com/spec-kit/security-service/internal/domain"
	"github.com/spec-kit/security-service/internal/events"
	"github.com/spec-kit/security-service/internal/identity"
	"github.com/spec-kit/security-service/internal/service"
	"github.com/spec-kit/security-service/pkg/util"
)

type fakeStore struct {
	user        *domain.User
	emailOnly   bool // user findable by email, not username
	password    string
	lookupErr   error
	createErr   error
	confirmErr  error
	genTokenErr error

	createdUser    *domain.User
	generatedToken string
	confirmedWith  string
	assignedRoles  []string

	roles      []string
	userClaims []domain.Claim
	roleClaims map[string][]domain.Claim
}

func (f *fakeStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.user != nil && !f.emailOnly && f.user.Username == username {
		return f.user, nil
	}
	return nil, identity.ErrUserNotFound
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, identity.ErrUserNotFound
}

func (f *fakeStore) CheckPassword(_ context.Context, _ *domain.User, password string) error {
	if password != f.password {
		return identity.ErrPasswordMismatch
	}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, user *domain.User, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = "u-1"
	f.createdUser = user
	return nil
}

func (f *fakeStore) GenerateEmailConfirmationToken(_ context.Context, user *domain.User) (string, error) {
	if f.genTokenErr != nil {
		return "", f.genTokenErr
	}
	f.generatedToken = "confirm-123"
	user.ConfirmationToken = f.generatedToken
	return f.generatedToken, nil
}

func (f *fakeStore) ConfirmEmail(_ context.Context, user *domain.User, token string) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmedWith = token
	user.EmailConfirmed = true
	return nil
}

func (f *fakeStore) AddToRoles(_ context.Context, _ *domain.User, roles []string) error {
	f.assignedRoles = roles
	return nil
}

func (f *fakeStore) GetRoles(_ context.Context, _ *domain.User) ([]string, error) {
	return f.roles, nil
}

func (f *fakeStore) GetUserClaims(_ context.Context, _ *domain.User) ([]domain.Claim, error) {
	return f.userClaims, nil
}

func (f *fakeStore) GetRoleClaims(_ context.Context, roleName string) ([]domain.Claim, error) {
	return f.roleClaims[roleName], nil
}

type recordingDispatcher struct {
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func testJwtConfig() *config.JwtConfig {
	return &config.JwtConfig{
		SecretKey:        "test-secret",
		ValidateIssuer:   true,
		ValidateAudience: true,
		ValidateLifetime: true,
		ValidIssuer:      "security-service",
		ValidAudience:    "security-clients",
		LifetimeMinutes:  60,
	}
}

func activeUser() *domain.User {
	return &domain.User{
		ID:        "u-1",
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		FirstName: "John",
		LastName:  "Doe",
		Active:    true,
		Staff:     true,
	}
}

func newService(store *fakeStore) (*service.SecurityService, *recordingDispatcher) {
	dispatcher := &recordingDispatcher{}
	tokens := auth.NewTokenManager(testJwtConfig())
	return service.NewSecurityService(store, tokens, dispatcher, zap.NewNop()), dispatcher
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return util.ToDomainError(err).Code
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns a decodable token", func(t *testing.T) {
		store := &fakeStore{
			user:     activeUser(),
			password: "correct-horse",
			roles:    []string{"admin"},
			userClaims: []domain.Claim{
				{Key: "Department", Value: "ops"},
			},
			roleClaims: map[string][]domain.Claim{
				"admin": {{Key: "Permission", Value: "users.manage"}},
			},
		}
		svc, dispatcher := newService(store)

		token, err := svc.Login(ctx, "jdoe", "correct-horse")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		decoded, err := svc.DecodeToken(token)
		require.NoError(t, err)
		assert.Equal(t, "jdoe", decoded.Username)
		assert.Equal(t, "John Doe", decoded.FullName)
		assert.True(t, decoded.IsStaff)

		keys := map[string][]string{}
		for _, claim := range decoded.Claims {
			keys[claim.Key] = append(keys[claim.Key], claim.Value)
		}
		assert.Equal(t, []string{"ops"}, keys["Department"])
		assert.Equal(t, []string{"users.manage"}, keys["Permission"])
		assert.Len(t, keys["jti"], 1)

		require.Len(t, dispatcher.published, 1)
		assert.Equal(t, events.EventUserLoggedIn, dispatcher.published[0].Type)
	})

	t.Run("fresh jti per login", func(t *testing.T) {
		store := &fakeStore{user: activeUser(), password: "correct-horse"}
		svc, _ := newService(store)

		jtis := map[string]bool{}
		for i := 0; i < 2; i++ {
			token, err := svc.Login(ctx, "jdoe", "correct-horse")
			require.NoError(t, err)
			decoded, err := svc.DecodeToken(token)
			require.NoError(t, err)
			for _, claim := range decoded.Claims {
				if claim.Key == "jti" {
					jtis[claim.Value] = true
				}
			}
		}
		assert.Len(t, jtis, 2)
	})

	t.Run("falls back to email lookup", func(t *testing.T) {
		store := &fakeStore{user: activeUser(), emailOnly: true, password: "correct-horse"}
		svc, _ := newService(store)

		token, err := svc.Login(ctx, "jdoe@example.com", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newService(&fakeStore{})

		_, err := svc.Login(ctx, "nobody", "whatever")
		assert.Equal(t, service.CodeUserNotFound, errorCode(t, err))
	})

	t.Run("inactive user", func(t *testing.T) {
		user := activeUser()
		user.Active = false
		svc, _ := newService(&fakeStore{user: user, password: "correct-horse"})

		_, err := svc.Login(ctx, "jdoe", "correct-horse")
		assert.Equal(t, service.CodeUserInactive, errorCode(t, err))
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _ := newService(&fakeStore{user: activeUser(), password: "correct-horse"})

		_, err := svc.Login(ctx, "jdoe", "wrong")
		assert.Equal(t, service.CodeInvalidCredentials, errorCode(t, err))
	})

	t.Run("store fault propagates unchanged", func(t *testing.T) {
		boom := errors.New("connection refused")
		svc, _ := newService(&fakeStore{lookupErr: boom})

		_, err := svc.Login(ctx, "jdoe", "correct-horse")
		assert.ErrorIs(t, err, boom)
		assert.False(t, util.IsAuthFailure(err))
	})
}

func registration() domain.Registration {
	return domain.Registration{
		Username:  "newbie",
		FirstName: "New",
		LastName:  "Person",
		Password:  "long-enough",
		Email:     "newbie@example.com",
		Roles:     []string{"user"},
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate confirmation assigns roles", func(t *testing.T) {
		store := &fakeStore{}
		svc, dispatcher := newService(store)

		require.NoError(t, svc.Register(ctx, registration(), false, false))

		require.NotNil(t, store.createdUser)
		assert.True(t, store.createdUser.Active)
		assert.False(t, store.createdUser.Staff)
		assert.True(t, store.createdUser.EmailConfirmed)
		assert.Equal(t, store.generatedToken, store.confirmedWith)
		assert.Equal(t, []string{"user"}, store.assignedRoles)

		require.Len(t, dispatcher.published, 1)
		assert.Equal(t, events.EventUserRegistered, dispatcher.published[0].Type)
	})

	t.Run("admin flag marks the account staff", func(t *testing.T) {
		store := &fakeStore{}
		svc, _ := newService(store)

		require.NoError(t, svc.Register(ctx, registration(), true, false))
		assert.True(t, store.createdUser.Staff)
	})

	t.Run("pending confirmation stops before roles", func(t *testing.T) {
		store := &fakeStore{}
		svc, dispatcher := newService(store)

		require.NoError(t, svc.Register(ctx, registration(), false, true))

		require.NotNil(t, store.createdUser)
		assert.False(t, store.createdUser.EmailConfirmed)
		assert.Empty(t, store.confirmedWith)
		assert.Nil(t, store.assignedRoles)
		assert.NotEmpty(t, store.generatedToken)

		require.Len(t, dispatcher.published, 1)
		payload, ok := dispatcher.published[0].Payload.(events.UserRegisteredPayload)
		require.True(t, ok)
		assert.Equal(t, store.generatedToken, payload.ConfirmationToken)
	})

	t.Run("creation rejection logs fields and fails generically", func(t *testing.T) {
		store := &fakeStore{createErr: &identity.CreateError{Fields: []identity.FieldError{
			{Field: "password", Code: "PasswordTooShort", Description: "too short"},
		}}}
		svc, _ := newService(store)

		err := svc.Register(ctx, registration(), false, false)
		assert.Equal(t, service.CodeUserNotCreated, errorCode(t, err))
	})

	t.Run("confirmation failure after creation", func(t *testing.T) {
		store := &fakeStore{confirmErr: identity.ErrInvalidConfirmationToken}
		svc, _ := newService(store)

		err := svc.Register(ctx, registration(), false, false)
		assert.Equal(t, service.CodeEmailConfirmationFailed, errorCode(t, err))
		assert.Equal(t, "User created but email confirmation failed", util.ToDomainError(err).Message)
		assert.Nil(t, store.assignedRoles)
	})

	t.Run("store fault propagates unchanged", func(t *testing.T) {
		boom := errors.New("connection refused")
		store := &fakeStore{genTokenErr: boom}
		svc, _ := newService(store)

		err := svc.Register(ctx, registration(), false, false)
		assert.ErrorIs(t, err, boom)
		assert.False(t, util.IsAuthFailure(err))
	})
}

func TestDecodeToken_Invalid(t *testing.T) {
	svc, _ := newService(&fakeStore{})

	_, err := svc.DecodeToken("garbage")
	assert.Equal(t, auth.CodeInvalidToken, errorCode(t, err))
}
