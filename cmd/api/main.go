package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/security-service/internal/api/http"
	"github.com/spec-kit/security-service/internal/api/http/handlers"
	"github.com/spec-kit/security-service/internal/auth"
	"github.com/spec-kit/security-service/internal/config"
	"github.com/spec-kit/security-service/internal/events"
	"github.com/spec-kit/security-service/internal/identity"
	"github.com/spec-kit/security-service/internal/observability"
	"github.com/spec-kit/security-service/internal/persistence"
	"github.com/spec-kit/security-service/internal/repository"
	"github.com/spec-kit/security-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Jwt == nil {
		logger.Warn("JWT_SECRET_KEY not configured; token endpoints will reject requests")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewUserRepository(pg.Pool)
	roleRepo := repository.NewRoleRepository(pg.Pool)
	lockout := identity.NewRedisLockout(redis.Client, cfg.Identity.MaxFailedAttempts, cfg.Identity.LockoutWindow())
	users := identity.NewManager(userRepo, roleRepo, lockout, cfg.Identity, logger)

	dispatcher := events.NewInMemoryDispatcher()
	registerAuditSubscribers(dispatcher, logger)

	tokens := auth.NewTokenManager(cfg.Jwt)
	securityService := service.NewSecurityService(users, tokens, dispatcher, logger)
	authMiddleware := auth.NewMiddleware(tokens)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Security:       handlers.NewSecurityHandler(securityService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func registerAuditSubscribers(dispatcher events.Dispatcher, logger *zap.Logger) {
	dispatcher.Subscribe(events.EventUserRegistered, func(_ context.Context, e events.Event) error {
		logger.Info("audit: user registered", zap.String("user_id", e.UserID), zap.Any("payload", e.Payload))
		return nil
	})
	dispatcher.Subscribe(events.EventUserLoggedIn, func(_ context.Context, e events.Event) error {
		logger.Info("audit: user logged in", zap.String("user_id", e.UserID))
		return nil
	})
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
