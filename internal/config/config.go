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
	Triage   TriageConfig
	Model    ModelConfig
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

// PostgresConfig holds DB connection values. An empty DSN switches the
// service to in-memory stores.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the redacted-view cache.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	ViewCacheTTLSec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters. The bootstrap pair seeds an
// admin account on first start so the console is reachable.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	BootstrapAdminUser    string
	BootstrapAdminPass    string
}

// TriageConfig holds the routing policy. Thresholds are deployment policy,
// not law: both bands and the auto-resolvable category list come from the
// environment.
type TriageConfig struct {
	AutoThreshold         float64
	ReviewThreshold       float64
	AutoResolveCategories []string
}

// ModelConfig configures the external suggestion model.
type ModelConfig struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	MaxTokens      int
	TimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	autoThreshold, err := getEnvAsFloat("TRIAGE_AUTO_THRESHOLD", 0.85)
	if err != nil {
		return nil, err
	}
	reviewThreshold, err := getEnvAsFloat("TRIAGE_REVIEW_THRESHOLD", 0.60)
	if err != nil {
		return nil, err
	}
	if autoThreshold < 0 || autoThreshold > 1 || reviewThreshold < 0 || reviewThreshold > 1 {
		return nil, fmt.Errorf("triage thresholds must be within [0,1]")
	}
	if reviewThreshold > autoThreshold {
		return nil, fmt.Errorf("TRIAGE_REVIEW_THRESHOLD must not exceed TRIAGE_AUTO_THRESHOLD")
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "triage-service"),
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
			Addr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			ViewCacheTTLSec: getEnvAsInt("REDIS_VIEW_CACHE_TTL_SECONDS", 300),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminUser:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_USER"),
			BootstrapAdminPass:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASS"),
		},
		Triage: TriageConfig{
			AutoThreshold:         autoThreshold,
			ReviewThreshold:       reviewThreshold,
			AutoResolveCategories: splitList(getEnv("TRIAGE_AUTO_RESOLVE", "FAQ,General Question")),
		},
		Model: ModelConfig{
			Provider:       getEnv("MODEL_PROVIDER", "openai"),
			APIKey:         os.Getenv("MODEL_API_KEY"),
			Model:          getEnv("MODEL_NAME", "gpt-4o-mini"),
			BaseURL:        os.Getenv("MODEL_BASE_URL"),
			MaxTokens:      getEnvAsInt("MODEL_MAX_TOKENS", 1024),
			TimeoutSeconds: getEnvAsInt("MODEL_TIMEOUT_SECONDS", 20),
		},
	}

	return cfg, nil
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

// Timeout returns the model invocation deadline.
func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// ViewCacheTTL returns the redacted-view cache lifetime.
func (r RedisConfig) ViewCacheTTL() time.Duration {
	if r.ViewCacheTTLSec <= 0 {
		return 0
	}
	return time.Duration(r.ViewCacheTTLSec) * time.Second
}

// AutoResolvable reports whether the category may be closed without a human
// when confidence clears the auto threshold.
func (t TriageConfig) AutoResolvable(category string) bool {
	for _, c := range t.AutoResolveCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
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

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
