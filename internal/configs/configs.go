/*
Package configs loads the application's configuration.

Values are layered with koanf: built-in defaults, then an optional YAML file
(CONFIG_PATH or ./config.yaml), then environment variables, which win.
*/
package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable that points at a YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// DevelopmentJWTSecret is used only when ENVIRONMENT=development and no secret is set.
const DevelopmentJWTSecret = "groupnav_insecure_development_secret"

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string `koanf:"environment"`
	Port        int    `koanf:"port"`
	LogLevel    string `koanf:"log_level"`

	// Security Settings
	AllowedOrigins []string `koanf:"allowed_origins"`
	JWTSecret      string   `koanf:"jwt_secret"`

	// Database Settings. Either a SQLite path (optionally sqlite:// or file:) or a postgres:// URL.
	DatabaseDSN string `koanf:"database_url"`

	// S3 Storage Settings. Avatar uploads are disabled unless all four are set.
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`

	Presence  PresenceConfig  `koanf:"presence"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// PresenceConfig tunes the live presence subsystem.
type PresenceConfig struct {
	// SendBuffer is the per-connection outbound queue length. A connection whose
	// queue is full when a broadcast arrives is disconnected.
	SendBuffer int `koanf:"send_buffer"`

	// PersistTimeout bounds a single location write to the profile store.
	PersistTimeout time.Duration `koanf:"persist_timeout"`

	// BreakerFailures is the number of consecutive persistence failures that opens the breaker.
	BreakerFailures uint32 `koanf:"breaker_failures"`

	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// RateLimitConfig controls the per-IP limits on authentication and socket upgrades.
type RateLimitConfig struct {
	AuthRequests int           `koanf:"auth_requests"`
	AuthWindow   time.Duration `koanf:"auth_window"`
	SocketRate   float64       `koanf:"socket_rate"`
	SocketBurst  int           `koanf:"socket_burst"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// StorageEnabled reports whether every S3 setting is present.
func (c *AppConfig) StorageEnabled() bool {
	return c.S3BucketName != "" && c.S3Endpoint != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Environment:    "development",
		Port:           8080,
		AllowedOrigins: []string{},
		DatabaseDSN:    "instance/groupnav.db",
		Presence: PresenceConfig{
			SendBuffer:      64,
			PersistTimeout:  2 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			AuthRequests: 10,
			AuthWindow:   time.Minute,
			SocketRate:   0.5,
			SocketBurst:  5,
		},
	}
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	"environment":              "environment",
	"port":                     "port",
	"log_level":                "log_level",
	"allowed_origins":          "allowed_origins",
	"jwt_secret":               "jwt_secret",
	"database_url":             "database_url",
	"s3_bucket_name":           "s3_bucket_name",
	"s3_endpoint":              "s3_endpoint",
	"s3_access_key_id":         "s3_access_key_id",
	"s3_secret_access_key":     "s3_secret_access_key",
	"presence_send_buffer":     "presence.send_buffer",
	"persist_timeout":          "presence.persist_timeout",
	"persist_breaker_failures": "presence.breaker_failures",
	"persist_breaker_cooldown": "presence.breaker_cooldown",
	"rate_limit_auth_requests": "rate_limit.auth_requests",
	"rate_limit_auth_window":   "rate_limit.auth_window",
	"rate_limit_socket_rate":   "rate_limit.socket_rate",
	"rate_limit_socket_burst":  "rate_limit.socket_burst",
}

// envTransform returns the koanf path for a known variable and "" for everything else,
// which makes the env provider skip it.
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

// LoadConfig builds and validates the AppConfig.
func LoadConfig() (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitOrigins(k); err != nil {
		return nil, err
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitOrigins turns a comma-separated ALLOWED_ORIGINS value into a list.
func splitOrigins(k *koanf.Koanf) error {
	raw, ok := k.Get("allowed_origins").(string)
	if !ok {
		return nil
	}

	origins := []string{}
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	if err := k.Set("allowed_origins", origins); err != nil {
		return fmt.Errorf("failed to set allowed_origins: %w", err)
	}
	return nil
}

// Validate fills environment-dependent defaults and rejects unusable settings.
func (c *AppConfig) Validate() error {
	if c.Environment == "" {
		c.Environment = "development"
	}

	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the allowed range (%d-%d)", c.Port, 1024, 65535)
	}

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET environment variable is required in %s environment", c.Environment)
		}
		c.JWTSecret = DevelopmentJWTSecret
	}

	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}

	if c.Presence.SendBuffer <= 0 {
		return fmt.Errorf("presence send buffer must be positive, got %d", c.Presence.SendBuffer)
	}
	if c.Presence.PersistTimeout <= 0 {
		return fmt.Errorf("persist timeout must be positive, got %s", c.Presence.PersistTimeout)
	}
	if c.Presence.BreakerFailures == 0 {
		return fmt.Errorf("persist breaker failures must be at least 1")
	}

	if c.RateLimit.AuthRequests <= 0 || c.RateLimit.AuthWindow <= 0 {
		return fmt.Errorf("auth rate limit must be positive")
	}
	if c.RateLimit.SocketRate <= 0 || c.RateLimit.SocketBurst <= 0 {
		return fmt.Errorf("socket rate limit must be positive")
	}

	return nil
}
