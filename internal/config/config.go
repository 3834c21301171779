// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// RedisURL is the Redis address for the page cache. Empty disables
	// caching entirely.
	RedisURL string

	// CacheTTL is how long successful fetches stay cached.
	CacheTTL time.Duration

	// PerItemTimeout bounds each individual fetch.
	PerItemTimeout time.Duration

	// BatchTimeout bounds a whole batch run.
	BatchTimeout time.Duration

	// MaxConcurrency caps fetches in flight per batch.
	MaxConcurrency int

	// MaxBatchSize caps how many URLs one batch request may carry.
	MaxBatchSize int

	// HostRateLimit is the per-host outbound request rate (req/s).
	HostRateLimit float64

	// HostRateBurst is the per-host burst allowance.
	HostRateBurst int

	// LogLevel is the minimum log level.
	LogLevel string

	// LogPretty switches log output to the console writer.
	LogPretty bool
}

// Load reads configuration from environment variables, falling back to
// defaults suitable for local development.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		RedisURL:       getEnv("REDIS_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxConcurrency: 8,
		MaxBatchSize:   10,
		HostRateBurst:  3,
	}

	var err error
	if cfg.LogPretty, err = getEnvBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PerItemTimeout, err = getEnvDuration("PER_ITEM_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchTimeout, err = getEnvDuration("BATCH_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = getEnvInt("MAX_CONCURRENCY", cfg.MaxConcurrency); err != nil {
		return nil, err
	}
	if cfg.MaxBatchSize, err = getEnvInt("MAX_BATCH_SIZE", cfg.MaxBatchSize); err != nil {
		return nil, err
	}
	if cfg.HostRateLimit, err = getEnvFloat("HOST_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.HostRateBurst, err = getEnvInt("HOST_RATE_BURST", cfg.HostRateBurst); err != nil {
		return nil, err
	}

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENCY must be >= 1 (got %d)", cfg.MaxConcurrency)
	}
	if cfg.MaxBatchSize < 1 {
		return nil, fmt.Errorf("MAX_BATCH_SIZE must be >= 1 (got %d)", cfg.MaxBatchSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
