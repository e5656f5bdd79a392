// Package config loads the kvtui tuning configuration.
//
// Every operational parameter (token skew margin, retry bound, backoff
// curve, timeouts, preload concurrency) is a config field rather than a
// hard-coded constant. A missing file yields defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	kverrors "github.com/systmms/kvtui/internal/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all tuning parameters.
type Config struct {
	Token TokenConfig `yaml:"token"`
	Retry RetryConfig `yaml:"retry"`
	Cache CacheConfig `yaml:"cache"`
	ARM   ARMConfig   `yaml:"arm"`

	// LogFile receives diagnostics when --debug is set.
	LogFile string `yaml:"log_file"`
}

// TokenConfig tunes the token cache.
type TokenConfig struct {
	// SkewMargin is subtracted from a token's stated expiry so a token is
	// never used too close to actual expiration.
	SkewMargin time.Duration `yaml:"skew_margin"`
}

// RetryConfig tunes the remote client façade.
type RetryConfig struct {
	// MaxAttempts bounds total tries per operation, first call included.
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	// RequestTimeout is the bounded wait for a single remote call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CacheConfig tunes the resource cache.
type CacheConfig struct {
	// RefreshAfter is the age past which a cached secret listing triggers
	// a silent background refresh when its vault is re-entered.
	RefreshAfter time.Duration `yaml:"refresh_after"`
	// PreloadConcurrency bounds the background preload of vault listings
	// after discovery. 0 disables preloading.
	PreloadConcurrency int `yaml:"preload_concurrency"`
}

// ARMConfig tunes vault discovery.
type ARMConfig struct {
	// Endpoint is the management-plane base URL, overridable for
	// sovereign clouds and tests.
	Endpoint string `yaml:"endpoint"`
	// SubscriptionConcurrency bounds parallel per-subscription vault
	// listing during discovery.
	SubscriptionConcurrency int `yaml:"subscription_concurrency"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Token: TokenConfig{
			SkewMargin: 5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:    4,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     4 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			RefreshAfter:       30 * time.Minute,
			PreloadConcurrency: 4,
		},
		ARM: ARMConfig{
			Endpoint:                "https://management.azure.com",
			SubscriptionConcurrency: 4,
		},
		LogFile: "kvtui.log",
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "kvtui.yaml"
	}
	return filepath.Join(home, ".config", "kvtui.yaml")
}

// Load reads the config file at path, layering it over defaults. A missing
// file is not an error; an unreadable or invalid one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, kverrors.ConfigError{
			Message:    fmt.Sprintf("invalid YAML in %s: %v", path, err),
			Suggestion: "check indentation and quoting",
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Token.SkewMargin < 0 {
		return kverrors.ConfigError{
			Field:      "token.skew_margin",
			Message:    "must not be negative",
			Suggestion: "use a duration like 5m",
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return kverrors.ConfigError{
			Field:      "retry.max_attempts",
			Message:    "must be at least 1",
			Suggestion: "the first call counts as an attempt",
		}
	}
	if c.Retry.InitialBackoff < 0 {
		return kverrors.ConfigError{
			Field:      "retry.initial_backoff",
			Message:    "must not be negative",
			Suggestion: "use a duration like 250ms",
		}
	}
	if c.Retry.MaxBackoff < 0 {
		return kverrors.ConfigError{
			Field:      "retry.max_backoff",
			Message:    "must not be negative",
			Suggestion: "use a duration like 4s",
		}
	}
	if c.Retry.RequestTimeout <= 0 {
		return kverrors.ConfigError{
			Field:      "retry.request_timeout",
			Message:    "must be positive",
			Suggestion: "use a duration like 30s",
		}
	}
	if c.Cache.PreloadConcurrency < 0 {
		return kverrors.ConfigError{
			Field:      "cache.preload_concurrency",
			Message:    "must not be negative",
			Suggestion: "use 0 to disable preloading",
		}
	}
	if c.ARM.SubscriptionConcurrency < 1 {
		return kverrors.ConfigError{
			Field:   "arm.subscription_concurrency",
			Message: "must be at least 1",
		}
	}
	return nil
}
