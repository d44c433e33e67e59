// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage backends.
const (
	StorageBackendFS = "fs"
	StorageBackendS3 = "s3"
)

// ErrInvalidConfig is returned when parsed values are inconsistent.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled    bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitIntakeEnabled bool `env:"RATE_LIMIT_INTAKE_ENABLED" envDefault:"true"`
	RateLimitIntakeRPS     int  `env:"RATE_LIMIT_INTAKE_RPS" envDefault:"20"`
	RateLimitIntakeBurst   int  `env:"RATE_LIMIT_INTAKE_BURST" envDefault:"40"`
	// Key the intake limiter on X-Forwarded-For. Only safe behind a proxy
	// that overwrites the header.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"true"`

	// CORS for the management API.
	// Comma-separated list of allowed origins (e.g., "https://app.example.com").
	// The /functions/v1 routes always allow every origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 25MiB, base64 documents are large)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"26214400"`

	// Object storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"fs"`
	StorageBucket  string `env:"STORAGE_BUCKET" envDefault:"print-files"`
	StorageFSRoot  string `env:"STORAGE_FS_ROOT" envDefault:"./data"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3UseSSL       bool   `env:"S3_USE_SSL" envDefault:"true"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`

	// Argon2id PHC hash of the operator token accepted by the reset route.
	// Empty disables the check.
	ResetTokenHash string `env:"RESET_TOKEN_HASH"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageBackendFS:
		if c.StorageFSRoot == "" {
			return fmt.Errorf("%w: STORAGE_FS_ROOT is required for fs storage", ErrInvalidConfig)
		}
	case StorageBackendS3:
		if c.S3Endpoint == "" {
			return fmt.Errorf("%w: S3_ENDPOINT is required for s3 storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_BACKEND %q", ErrInvalidConfig, c.StorageBackend)
	}

	if c.StorageBucket == "" {
		return fmt.Errorf("%w: STORAGE_BUCKET must not be empty", ErrInvalidConfig)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("%w: MAX_REQUEST_BODY_SIZE must be positive", ErrInvalidConfig)
	}
	if c.RateLimitIntakeEnabled && (c.RateLimitIntakeRPS <= 0 || c.RateLimitIntakeBurst <= 0) {
		return fmt.Errorf("%w: intake rate limit needs positive RPS and burst", ErrInvalidConfig)
	}

	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or inconsistent.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
