// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	StoreBackend   string   `env:"STORE_BACKEND" envDefault:"memory"` // "memory" or "sqlite"
	DBPath         string   `env:"DB_PATH" envDefault:"./data/evening.db"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	MaxRequestBodyBytes int64 `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`
	StreamBuffer        int   `env:"STREAM_BUFFER" envDefault:"16"`

	Timeout   TimeoutConfig
	Telemetry TelemetryConfig

	// GRPCHealthAddr enables the gRPC health service when non-empty, e.g. ":9090".
	GRPCHealthAddr string `env:"GRPC_HEALTH_ADDR"`
}

// TimeoutConfig groups server timeouts.
type TimeoutConfig struct {
	Shutdown    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	HealthCheck time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"5s"`
	Read        time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	Idle        time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"evening-ritual"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when STORE_BACKEND=sqlite")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or sqlite, got %q", c.StoreBackend)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("STREAM_BUFFER must be > 0")
	}
	if c.Timeout.Shutdown <= 0 || c.Timeout.HealthCheck <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT and HEALTH_CHECK_TIMEOUT must be > 0")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
}

// TracingEnabled reports whether spans should be exported.
func (c *Config) TracingEnabled() bool {
	return c.Telemetry.Enabled && c.Telemetry.Endpoint != ""
}
