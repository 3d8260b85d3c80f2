package config

import (
	"os"
	"testing"
	"time"

	"github.com/parleyhq/parley/pkg/observability"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "90s")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("TEST_DURATION_UNSET", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() default = %v, want 1m", got)
	}

	os.Setenv("TEST_DURATION_BAD", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_BAD")
	if got := getEnvDuration("TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() with bad value = %v, want default", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	os.Setenv("PARLEY_SIGNING_KEY", testSigningKey)
	defer os.Unsetenv("PARLEY_SIGNING_KEY")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Moderation.BanThreshold != 3 {
		t.Errorf("Moderation.BanThreshold = %d, want 3", cfg.Moderation.BanThreshold)
	}
	if cfg.Moderation.BanDuration != 30*24*time.Hour {
		t.Errorf("Moderation.BanDuration = %v, want 720h", cfg.Moderation.BanDuration)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Observability.LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	env := map[string]string{
		"PARLEY_SIGNING_KEY":   testSigningKey,
		"PARLEY_TOKEN_TTL":     "2h",
		"PARLEY_BAN_THRESHOLD": "5",
		"PARLEY_STORAGE_TYPE":  "sqlite3",
		"PARLEY_SQLITE_PATH":   "/tmp/parley.db",
		"PARLEY_LOG_LEVEL":     "debug",
	}
	for k, v := range env {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range env {
			os.Unsetenv(k)
		}
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 2h", cfg.Auth.TokenTTL)
	}
	if cfg.Moderation.BanThreshold != 5 {
		t.Errorf("Moderation.BanThreshold = %d, want 5", cfg.Moderation.BanThreshold)
	}
	if cfg.Storage.Type != "sqlite3" || cfg.Storage.SQLitePath != "/tmp/parley.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Observability.LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Auth:   AuthConfig{SigningKey: testSigningKey, TokenTTL: time.Hour},
			Moderation: ModerationConfig{
				BanThreshold: 3,
				BanDuration:  time.Hour,
			},
			Storage: StorageConfig{Type: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing signing key", func(c *Config) { c.Auth.SigningKey = "" }, true},
		{"short signing key", func(c *Config) { c.Auth.SigningKey = "short" }, true},
		{"zero token TTL", func(c *Config) { c.Auth.TokenTTL = 0 }, true},
		{"zero ban threshold", func(c *Config) { c.Moderation.BanThreshold = 0 }, true},
		{"ports collide", func(c *Config) { c.Server.HealthPort = "8080" }, true},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "oracle" }, true},
		{"postgres without URL", func(c *Config) { c.Storage.Type = "postgres" }, true},
		{"sqlite3 without path", func(c *Config) { c.Storage.Type = "sqlite3" }, true},
		{"postgres with URL", func(c *Config) {
			c.Storage.Type = "postgres"
			c.Storage.PostgresURL = "postgres://localhost/parley"
		}, false},
		{"otel enabled without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"ERROR", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
