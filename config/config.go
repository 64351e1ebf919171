// Package config provides environment-variable configuration loading for
// adaptarr services, in a common style: a prefixed
// EnvConfig helper plus a validator that turns missing/malformed settings
// into one aggregated error instead of panicking deep inside a component.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig reads typed values from environment variables under a common
// prefix (e.g. "ADAPTARR_STORAGE_ROOT" when prefix is "ADAPTARR").
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates an environment loader for the given prefix.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// GetString returns the environment value for key, or defaultValue if unset.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetInt returns the environment value for key parsed as an int.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool returns the environment value for key parsed as a bool.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetDuration returns the environment value for key parsed as a duration.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// Config is the top-level configuration for an adaptarr process: database,
// storage, background-worker and session settings.
type Config struct {
	Environment string // "development", "staging" or "production"

	PostgresDSN string
	RedisURL    string

	StorageRoot string // root directory for content-addressed files

	XrefWorkers int // size of the single-writer xref indexer pool

	NotificationDigestInterval time.Duration // 30m in production, 1m otherwise
	SessionIdleDowngrade       time.Duration // elevated->normal auto-downgrade after idle

	BcryptCost    int
	SessionSecret string

	LogLevel  string
	LogFormat string
}

// Load reads Config from the environment under the "ADAPTARR" prefix,
// applying production-sane defaults and environment-dependent overrides
// (the notification digest interval in particular).
func Load() (*Config, error) {
	env := NewEnvConfig("ADAPTARR")

	environment := env.GetString("ENVIRONMENT", "development")
	defaultDigest := 30 * time.Minute
	if environment != "production" {
		defaultDigest = time.Minute
	}

	cfg := &Config{
		Environment:                environment,
		PostgresDSN:                env.GetString("POSTGRES_DSN", "host=localhost user=adaptarr dbname=adaptarr sslmode=disable"),
		RedisURL:                   env.GetString("REDIS_URL", "redis://localhost:6379/0"),
		StorageRoot:                env.GetString("STORAGE_ROOT", "./storage"),
		XrefWorkers:                env.GetInt("XREF_WORKERS", 1),
		NotificationDigestInterval: env.GetDuration("NOTIFICATION_DIGEST_INTERVAL", defaultDigest),
		SessionIdleDowngrade:       env.GetDuration("SESSION_IDLE_DOWNGRADE", 15*time.Minute),
		BcryptCost:                 env.GetInt("BCRYPT_COST", 12),
		SessionSecret:              env.GetString("SESSION_SECRET", ""),
		LogLevel:                   env.GetString("LOG_LEVEL", "info"),
		LogFormat:                  env.GetString("LOG_FORMAT", "text"),
	}

	v := NewValidator()
	v.RequireInt("XrefWorkers", cfg.XrefWorkers, 1, 1)
	v.RequireInt("BcryptCost", cfg.BcryptCost, 4, 31)
	v.RequireOneOf("Environment", cfg.Environment, []string{"development", "staging", "production"})
	if environment == "production" {
		v.RequireString("SessionSecret", cfg.SessionSecret)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validator accumulates configuration validation errors so callers see every
// problem at once instead of failing fast on the first one.
type Validator struct {
	errors []string
}

// NewValidator creates an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// RequireString records an error if value is empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt records an error if value falls outside [min, max].
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// RequirePositiveInt records an error if value is not positive.
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireOneOf records an error if value is not one of allowed.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// Validate returns an aggregated error if any checks failed, nil otherwise.
func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}
