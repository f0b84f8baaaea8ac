package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/security-service/internal/api/http/handlers"
	"github.com/spec-kit/security-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Security       *handlers.SecurityHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}

	security := app.Group("/api/security")
	security.Post("/login", cfg.Security.Login)
	security.Post("/register", cfg.Security.Register)
	security.Post("/user", cfg.Security.DecodeToken)

	protected := security.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/me", cfg.Security.Me)
}
