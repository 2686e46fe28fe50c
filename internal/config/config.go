package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Mailer   MailerConfig
	Push     PushConfig
	Assets   AssetsConfig
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

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	SessionTTLDays          int
	ConfirmationTTLHours    int
	PasswordResetTTLMinutes int
	BcryptCost              int
}

// MailerConfig points at the HTTP mail function used for outbound mail.
type MailerConfig struct {
	FunctionURL string
	From        string
	BaseURL     string
}

// PushConfig tunes the push notification channel.
type PushConfig struct {
	RateLimitMax       int
	RateLimitWindowSec int
	DeliveryTimeoutSec int
}

// AssetsConfig describes the offline asset cache.
type AssetsConfig struct {
	Version        string
	Manifest       []string
	UpstreamURL    string
	APIPrefix      string
	ReloadDelayMs  int
	InstallOnStart bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "party-admin-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("AUTH_JWT_SECRET", "dev-secret"),
			SessionTTLDays:          getEnvAsInt("AUTH_SESSION_TTL_DAYS", 7),
			ConfirmationTTLHours:    getEnvAsInt("AUTH_CONFIRMATION_TTL_HOURS", 24),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 60),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Mailer: MailerConfig{
			FunctionURL: os.Getenv("MAIL_FUNCTION_URL"),
			From:        getEnv("MAIL_FROM", "noreply@example.com"),
			BaseURL:     getEnv("MAIL_BASE_URL", "http://localhost:8080"),
		},
		Push: PushConfig{
			RateLimitMax:       getEnvAsInt("PUSH_RATE_LIMIT_MAX", 30),
			RateLimitWindowSec: getEnvAsInt("PUSH_RATE_LIMIT_WINDOW_SECONDS", 60),
			DeliveryTimeoutSec: getEnvAsInt("PUSH_DELIVERY_TIMEOUT_SECONDS", 10),
		},
		Assets: AssetsConfig{
			Version:        getEnv("ASSETS_VERSION", "v1.0.0"),
			Manifest:       getEnvAsList("ASSETS_MANIFEST", defaultManifest),
			UpstreamURL:    getEnv("ASSETS_UPSTREAM_URL", ""),
			APIPrefix:      getEnv("ASSETS_API_PREFIX", "/api/"),
			ReloadDelayMs:  getEnvAsInt("ASSETS_RELOAD_DELAY_MS", 1500),
			InstallOnStart: getEnvAsBool("ASSETS_INSTALL_ON_START", false),
		},
	}

	return cfg, nil
}

var defaultManifest = []string{
	"/",
	"/login.html",
	"/dashboard.html",
	"/js/auth.js",
	"/js/api.js",
	"/manifest.json",
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

// SessionTTL returns the lifetime of issued session tokens.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.SessionTTLDays) * 24 * time.Hour
}

// ConfirmationTTL returns how long confirmation tokens stay valid.
func (a AuthConfig) ConfirmationTTL() time.Duration {
	if a.ConfirmationTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(a.ConfirmationTTLHours) * time.Hour
}

// ResetTTL returns the password reset token lifetime.
func (a AuthConfig) ResetTTL() time.Duration {
	if a.PasswordResetTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.PasswordResetTTLMinutes) * time.Minute
}

// RateLimitWindow returns the push rate limit window.
func (p PushConfig) RateLimitWindow() time.Duration {
	if p.RateLimitWindowSec <= 0 {
		return time.Minute
	}
	return time.Duration(p.RateLimitWindowSec) * time.Second
}

// DeliveryTimeout bounds a single push delivery attempt.
func (p PushConfig) DeliveryTimeout() time.Duration {
	if p.DeliveryTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.DeliveryTimeoutSec) * time.Second
}

// ReloadDelay returns the delay before notified clients reload.
func (a AssetsConfig) ReloadDelay() time.Duration {
	return time.Duration(a.ReloadDelayMs) * time.Millisecond
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
