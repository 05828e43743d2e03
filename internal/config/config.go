// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	DatabaseURL string
	RedisAddr   string
	ListenAddr  string
	ArchivePath string

	LockTimeout time.Duration
	LockExpiry  time.Duration

	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal

	RateLimitCapacity int
	RateLimitRefill   float64
	MaxBodyBytes      int64
	TrustedCIDRs      []string
}

// Load reads configuration from environment variables, applying defaults
// for everything optional.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: os.Getenv("APP_ENV"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		ListenAddr:  envOr("API_ADDR", ":8080"),
		ArchivePath: envOr("ARCHIVE_PATH", "transfer-archive.db"),
	}

	var err error
	if cfg.LockTimeout, err = envDuration("LOCK_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockExpiry, err = envDuration("LOCK_EXPIRY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MinAmount, err = envDecimal("TRANSFER_MIN_AMOUNT", "0.01"); err != nil {
		return nil, err
	}
	if cfg.MaxAmount, err = envDecimal("TRANSFER_MAX_AMOUNT", "1000000.00"); err != nil {
		return nil, err
	}
	if cfg.RateLimitCapacity, err = envInt("RATE_LIMIT_CAPACITY", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitRefill, err = envFloat("RATE_LIMIT_REFILL", 50); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes, err = envInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TRUSTED_CIDRS"); raw != "" {
		cfg.TrustedCIDRs = strings.Split(raw, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	if c.LockTimeout <= 0 {
		return errors.New("LOCK_TIMEOUT must be positive")
	}
	if c.LockExpiry < c.LockTimeout {
		return errors.New("LOCK_EXPIRY must be at least LOCK_TIMEOUT")
	}
	if c.MinAmount.LessThanOrEqual(decimal.Zero) {
		return errors.New("TRANSFER_MIN_AMOUNT must be positive")
	}
	if c.MaxAmount.LessThan(c.MinAmount) {
		return errors.New("TRANSFER_MAX_AMOUNT must be at least TRANSFER_MIN_AMOUNT")
	}
	return nil
}

// Production reports whether the service runs in a production environment,
// which disables development conveniences like sample-data seeding.
func (c *Config) Production() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envDecimal(key, fallback string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
