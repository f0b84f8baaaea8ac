package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/security-service/internal/api/http"
	"github.com/spec-kit/security-service/internal/api/http/handlers"
	"github.com/spec-kit/security-service/internal/auth"
	"github.com/spec-kit/security-service/internal/config"
	"github.com/spec-kit/security-service/internal/domain"
	"github.com/spec-kit/security-service/internal/events"
	"github.com/spec-kit/security-service/internal/identity"
	"github.com/spec-kit/security-service/internal/observability"
	"github.com/spec-kit/security-service/internal/service"
)

// fakeStore backs the workflow with a single in-memory account.
type fakeStore struct {
	user     *domain.User
	password string
	created  *domain.User
}

func (f *fakeStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	if f.user != nil && f.user.Username == username {
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
	user.ID = "u-new"
	f.created = user
	return nil
}

func (f *fakeStore) GenerateEmailConfirmationToken(_ context.Context, user *domain.User) (string, error) {
	user.ConfirmationToken = "confirm-1"
	return "confirm-1", nil
}

func (f *fakeStore) ConfirmEmail(_ context.Context, user *domain.User, _ string) error {
	user.EmailConfirmed = true
	return nil
}

func (f *fakeStore) AddToRoles(context.Context, *domain.User, []string) error { return nil }

func (f *fakeStore) GetRoles(context.Context, *domain.User) ([]string, error) { return nil, nil }

func (f *fakeStore) GetUserClaims(context.Context, *domain.User) ([]domain.Claim, error) {
	return nil, nil
}

func (f *fakeStore) GetRoleClaims(context.Context, string) ([]domain.Claim, error) {
	return nil, nil
}

func newTestApp(store *fakeStore) *fiber.App {
	jwtCfg := &config.JwtConfig{
		SecretKey:        "test-secret",
		ValidateIssuer:   true,
		ValidateAudience: true,
		ValidateLifetime: true,
		ValidIssuer:      "security-service",
		ValidAudience:    "security-clients",
		LifetimeMinutes:  60,
	}
	tokens := auth.NewTokenManager(jwtCfg)
	svc := service.NewSecurityService(store, tokens, events.NewInMemoryDispatcher(), zap.NewNop())

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Security:       handlers.NewSecurityHandler(svc),
		AuthMiddleware: auth.NewMiddleware(tokens),
	})
	return app
}

func storeWithUser() *fakeStore {
	return &fakeStore{
		user: &domain.User{
			ID:        "u-1",
			Username:  "jdoe",
			Email:     "jdoe@example.com",
			FirstName: "John",
			LastName:  "Doe",
			Active:    true,
		},
		password: "correct-horse",
	}
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func loginToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := postJSON(t, app, "/api/security/login", fiber.Map{"username": "jdoe", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Jwt string `json:"jwt"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Jwt)
	return body.Jwt
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("valid credentials return a jwt", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		token := loginToken(t, app)
		assert.NotEmpty(t, token)
	})

	t.Run("bad credentials return 401 with empty body", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		resp := postJSON(t, app, "/api/security/login", fiber.Map{"username": "jdoe", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("unknown user returns 401", func(t *testing.T) {
		app := newTestApp(&fakeStore{})
		resp := postJSON(t, app, "/api/security/login", fiber.Map{"username": "ghost", "password": "whatever"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		resp := postJSON(t, app, "/api/security/login", fiber.Map{"username": "jdoe"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRegisterEndpoint(t *testing.T) {
	app := newTestApp(&fakeStore{})
	resp := postJSON(t, app, "/api/security/register", fiber.Map{
		"username":  "newbie",
		"firstName": "New",
		"lastName":  "Person",
		"password":  "long-enough",
		"email":     "newbie@example.com",
		"roles":     []string{"user"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Result struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Result.Success)
	assert.Equal(t, "User created", body.Result.Message)
}

func TestDecodeEndpoint(t *testing.T) {
	t.Run("valid bearer token decodes", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		token := loginToken(t, app)

		req := httptest.NewRequest(http.MethodPost, "/api/security/user", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Result struct {
				Username string `json:"username"`
				FullName string `json:"fullName"`
				IsStaff  bool   `json:"isStaff"`
			} `json:"result"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "jdoe", body.Result.Username)
		assert.Equal(t, "John Doe", body.Result.FullName)
		assert.False(t, body.Result.IsStaff)
	})

	t.Run("missing header returns 401", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		req := httptest.NewRequest(http.MethodPost, "/api/security/user", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("tampered token returns 401", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		req := httptest.NewRequest(http.MethodPost, "/api/security/user", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestMeEndpoint(t *testing.T) {
	t.Run("requires bearer token", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		req := httptest.NewRequest(http.MethodGet, "/api/security/me", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("returns the verified token content", func(t *testing.T) {
		app := newTestApp(storeWithUser())
		token := loginToken(t, app)

		req := httptest.NewRequest(http.MethodGet, "/api/security/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
