package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Identity IdentityConfig
	Jwt      *JwtConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// IdentityConfig tunes the user store: password policy, hashing and lockout.
type IdentityConfig struct {
	BcryptCost        int
	MinPasswordLength int
	MaxFailedAttempts int
	LockoutMinutes    int
}

// JwtConfig defines token signing and validation parameters. It is loaded
// once at startup and shared read-only; a nil JwtConfig means the section
// was absent and token operations must refuse to run.
type JwtConfig struct {
	SecretKey        string
	ValidateIssuer   bool
	ValidateAudience bool
	ValidateLifetime bool
	ValidIssuer      string
	ValidAudience    string
	LifetimeMinutes  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "security-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Identity: IdentityConfig{
			BcryptCost:        getEnvAsInt("IDENTITY_BCRYPT_COST", 12),
			MinPasswordLength: getEnvAsInt("IDENTITY_MIN_PASSWORD_LENGTH", 8),
			MaxFailedAttempts: getEnvAsInt("IDENTITY_MAX_FAILED_ATTEMPTS", 5),
			LockoutMinutes:    getEnvAsInt("IDENTITY_LOCKOUT_MINUTES", 10),
		},
		Jwt: loadJwt(),
	}

	return cfg, nil
}

// loadJwt returns nil when no secret is configured. Token issuance and
// verification reject a nil config at first use instead of failing startup,
// so the rest of the service (health probes included) can still run.
func loadJwt() *JwtConfig {
	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		return nil
	}
	return &JwtConfig{
		SecretKey:        secret,
		ValidateIssuer:   getEnvAsBool("JWT_VALIDATE_ISSUER", true),
		ValidateAudience: getEnvAsBool("JWT_VALIDATE_AUDIENCE", true),
		ValidateLifetime: getEnvAsBool("JWT_VALIDATE_LIFETIME", true),
		ValidIssuer:      os.Getenv("JWT_VALID_ISSUER"),
		ValidAudience:    os.Getenv("JWT_VALID_AUDIENCE"),
		LifetimeMinutes:  getEnvAsInt("JWT_LIFETIME_MINUTES", 60),
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockoutWindow returns the lockout duration applied after repeated failures.
func (i IdentityConfig) LockoutWindow() time.Duration {
	return time.Duration(i.LockoutMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
