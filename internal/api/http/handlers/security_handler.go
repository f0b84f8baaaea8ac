package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/security-service/internal/api/dto"
	"github.com/spec-kit/security-service/internal/auth"
	"github.com/spec-kit/security-service/internal/domain"
	"github.com/spec-kit/security-service/internal/service"
	"github.com/spec-kit/security-service/pkg/util"
)

// SecurityHandler exposes the login/register/token endpoints.
type SecurityHandler struct {
	security *service.SecurityService
}

// NewSecurityHandler constructs handler.
func NewSecurityHandler(security *service.SecurityService) *SecurityHandler {
	return &SecurityHandler{security: security}
}

// Login handles POST /api/security/login.
func (h *SecurityHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "username and password required")
	}

	token, err := h.security.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		if util.IsAuthFailure(err) {
			return unauthorized(c)
		}
		return err
	}

	return c.JSON(fiber.Map{"jwt": token})
}

// Register handles POST /api/security/register.
func (h *SecurityHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "username and password required")
	}

	model := domain.Registration{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Email:     req.Email,
		Roles:     req.Roles,
	}

	if err := h.security.Register(c.Context(), model, false, false); err != nil {
		if util.IsAuthFailure(err) {
			return unauthorized(c)
		}
		return err
	}

	return c.JSON(fiber.Map{"result": dto.ResultResponse{Success: true, Message: "User created"}})
}

// DecodeToken handles POST /api/security/user: it strips the Bearer prefix
// from the Authorization header and returns the verified token content.
func (h *SecurityHandler) DecodeToken(c *fiber.Ctx) error {
	token := strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))
	if token == "" {
		return unauthorized(c)
	}

	decoded, err := h.security.DecodeToken(token)
	if err != nil {
		if util.IsAuthFailure(err) {
			return unauthorized(c)
		}
		return err
	}

	return c.JSON(fiber.Map{"result": decoded})
}

// Me handles GET /api/security/me for requests already authenticated by the
// bearer middleware.
func (h *SecurityHandler) Me(c *fiber.Ctx) error {
	decoded, ok := auth.TokenFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"result": decoded})
}

// unauthorized responds 401 with an empty body; failure kinds are not
// distinguished to the caller.
func unauthorized(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).SendString("")
}
