package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Script    ScriptConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ScriptConfig holds script engine timeouts. The outer timeout must stay
// strictly above the inner one so script timeouts are reported as such
// before the orchestrator gives up.
type ScriptConfig struct {
	Timeout      time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"30s"`
	OuterTimeout time.Duration `envconfig:"SCRIPT_OUTER_TIMEOUT" default:"35s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Script: ScriptConfig{
			Timeout:      30 * time.Second,
			OuterTimeout: 35 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Script.Timeout <= 0 {
		return fmt.Errorf("script timeout must be positive, got %s", c.Script.Timeout)
	}
	if c.Script.OuterTimeout <= c.Script.Timeout {
		return fmt.Errorf("outer script timeout (%s) must be greater than the inner timeout (%s)",
			c.Script.OuterTimeout, c.Script.Timeout)
	}
	return nil
}
