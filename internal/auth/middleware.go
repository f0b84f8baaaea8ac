package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/security-service/pkg/util"
)

const decodedTokenKey = "auth_decoded_token"

// Middleware validates bearer tokens before protected handlers run.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware around the verifier.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}

	decoded, err := m.tokens.Decode(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	c.Locals(decodedTokenKey, decoded)
	return c.Next()
}

// TokenFromContext retrieves the verified token for the current request.
func TokenFromContext(c *fiber.Ctx) (*DecodedToken, bool) {
	val := c.Locals(decodedTokenKey)
	if val == nil {
		return nil, false
	}
	decoded, ok := val.(*DecodedToken)
	return decoded, ok
}
