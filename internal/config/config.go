// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	APIBaseURL  string
	ContextID   string
	HTTPTimeout time.Duration
	CacheTTL    time.Duration
	LogLevel    string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL:  getEnv("FLOWSYNC_API_URL", "http://localhost:8000"),
		ContextID:   getEnv("FLOWSYNC_CONTEXT_ID", ""),
		HTTPTimeout: getEnvDuration("FLOWSYNC_HTTP_TIMEOUT", 10*time.Second),
		CacheTTL:    getEnvDuration("FLOWSYNC_CACHE_TTL", 5*time.Minute),
		LogLevel:    getEnv("FLOWSYNC_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are usable.
// ContextID may be empty; the client generates one at startup.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("FLOWSYNC_API_URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(c.APIBaseURL); err != nil {
		return fmt.Errorf("FLOWSYNC_API_URL is not a valid URL: %w", err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("FLOWSYNC_HTTP_TIMEOUT must be > 0")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("FLOWSYNC_CACHE_TTL must be > 0")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level for the configured log level string.
func (c *Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("FLOWSYNC_LOG_LEVEL must be one of debug, info, warn, error")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
