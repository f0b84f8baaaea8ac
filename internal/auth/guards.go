package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// PermissionClaim is the claim key carrying permission mnemonics.
const PermissionClaim = "Permission"

// RequireStaff ensures the verified token belongs to a staff account.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		decoded, ok := TokenFromContext(c)
		if !ok || !decoded.IsStaff {
			return fiber.NewError(http.StatusForbidden, "staff account required")
		}
		return c.Next()
	}
}

// RequirePermission ensures the token carries the given permission mnemonic.
func RequirePermission(mnemonic string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decoded, ok := TokenFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		for _, claim := range decoded.Claims {
			if claim.Key == PermissionClaim && claim.Value == mnemonic {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "missing permission")
	}
}
