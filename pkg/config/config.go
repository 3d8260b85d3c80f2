package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Auth configuration
	Auth AuthConfig

	// Moderation configuration
	Moderation ModerationConfig

	// Storage configuration
	Storage StorageConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token and login settings
type AuthConfig struct {
	// SigningKey is the symmetric key tokens are signed with. Required.
	SigningKey string
	// TokenTTL is how long issued tokens stay valid
	TokenTTL time.Duration
	// BcryptCost is the password hashing cost (0 uses the library default)
	BcryptCost int
	// PolicyFile optionally overrides the built-in rule table
	PolicyFile string
	// LoginAttemptsPerMinute throttles credential-presenting endpoints per IP
	LoginAttemptsPerMinute int
}

// ModerationConfig holds the warning/ban lifecycle settings
type ModerationConfig struct {
	// BanThreshold is the warning count at which a member is banned
	BanThreshold int
	// BanDuration is how long a threshold ban lasts
	BanDuration time.Duration
	// SweepSchedule is the cron expression for the expired-ban sweep
	SweepSchedule string
}

// StorageConfig selects and configures the backing stores
type StorageConfig struct {
	// Type is "memory", "postgres", or "sqlite3"
	Type string
	// PostgresURL is the DSN for postgres storage
	PostgresURL string
	// SQLitePath is the database file for sqlite3 storage
	SQLitePath string
	// MaxOpenConns bounds the database pool
	MaxOpenConns int
	// MaxIdleConns bounds idle pooled connections
	MaxIdleConns int

	// RedisURL enables the redis-backed token revocation list when set
	RedisURL string
	// RedisPassword authenticates the redis connection
	RedisPassword string
	// RedisDB selects the redis database
	RedisDB int
	// RevocationCacheSize bounds the in-process revocation LRU
	RevocationCacheSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Moderation:    loadModerationConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PARLEY_HOST", "0.0.0.0"),
		Port:            getEnv("PARLEY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PARLEY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PARLEY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PARLEY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PARLEY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PARLEY_HEALTH_PORT", "9090"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SigningKey:             getEnv("PARLEY_SIGNING_KEY", ""),
		TokenTTL:               getEnvDuration("PARLEY_TOKEN_TTL", 24*time.Hour),
		BcryptCost:             getEnvInt("PARLEY_BCRYPT_COST", 0),
		PolicyFile:             getEnv("PARLEY_POLICY_FILE", ""),
		LoginAttemptsPerMinute: getEnvInt("PARLEY_LOGIN_ATTEMPTS_PER_MINUTE", 10),
	}
}

func loadModerationConfig() ModerationConfig {
	return ModerationConfig{
		BanThreshold:  getEnvInt("PARLEY_BAN_THRESHOLD", 3),
		BanDuration:   getEnvDuration("PARLEY_BAN_DURATION", 30*24*time.Hour),
		SweepSchedule: getEnv("PARLEY_BAN_SWEEP_SCHEDULE", "@every 5m"),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Type:                getEnv("PARLEY_STORAGE_TYPE", "memory"),
		PostgresURL:         getEnv("PARLEY_POSTGRES_URL", ""),
		SQLitePath:          getEnv("PARLEY_SQLITE_PATH", ""),
		MaxOpenConns:        getEnvInt("PARLEY_DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:        getEnvInt("PARLEY_DB_MAX_IDLE_CONNS", 5),
		RedisURL:            getEnv("PARLEY_REDIS_URL", ""),
		RedisPassword:       getEnv("PARLEY_REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("PARLEY_REDIS_DB", 0),
		RevocationCacheSize: getEnvInt("PARLEY_REVOCATION_CACHE_SIZE", 4096),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PARLEY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PARLEY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PARLEY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PARLEY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PARLEY_OTEL_SERVICE_NAME", "parley"),
		OTelServiceVersion: getEnv("PARLEY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PARLEY_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Auth.SigningKey == "" {
		return fmt.Errorf("PARLEY_SIGNING_KEY is required")
	}
	if len(c.Auth.SigningKey) < 32 {
		return fmt.Errorf("signing key must be at least 32 bytes, got %d", len(c.Auth.SigningKey))
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Moderation.BanThreshold < 1 {
		return fmt.Errorf("ban threshold must be at least 1")
	}
	if c.Moderation.BanDuration <= 0 {
		return fmt.Errorf("ban duration must be positive")
	}

	switch c.Storage.Type {
	case "memory":
		// No further settings needed.
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case "sqlite3":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite3 storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite3)", c.Storage.Type)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
