// Package config loads and exposes mailgoat CLI configuration. Configuration
// comes from a YAML file (default ~/.config/mailgoat/config.yaml) with
// environment variable overrides for the API key and base URL, so the key
// never has to live on disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file omits a setting.
const (
	DefaultBaseURL           = "https://api.mailgoat.ai/v1"
	DefaultTimeoutSeconds    = 10
	DefaultMaxRetries        = 3
	DefaultBaseDelayMs       = 500
	DefaultMaxDelayMs        = 30000
	DefaultBackoffMultiplier = 2.0
	DefaultBreakerThreshold  = 5
	DefaultBreakerCooldownMs = 30000
	DefaultBatchConcurrency  = 4
)

// Environment variables that override file configuration.
const (
	EnvAPIKey  = "MAILGOAT_API_KEY"
	EnvBaseURL = "MAILGOAT_BASE_URL"
)

// APIConfig holds connection settings for the MailGoat API.
type APIConfig struct {
	Key            string `yaml:"key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RetryConfig holds retry and backoff tuning for the transport client.
type RetryConfig struct {
	MaxRetries        int     `yaml:"max_retries"`
	BaseDelayMs       int     `yaml:"base_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// BreakerConfig holds circuit breaker tuning for the transport client.
type BreakerConfig struct {
	Threshold  int `yaml:"threshold"`
	CooldownMs int `yaml:"cooldown_ms"`
}

// BatchConfig holds defaults for bulk send runs.
type BatchConfig struct {
	// Concurrency is the default cap on simultaneously in-flight sends.
	Concurrency int `yaml:"concurrency"`

	// StatePath is the SQLite file used to persist batch progress.
	// Empty means <config dir>/batches.db.
	StatePath string `yaml:"state_path"`
}

// LoggingConfig holds logging preferences.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// OutputConfig holds CLI output preferences.
type OutputConfig struct {
	// DefaultFormat is "table" or "json".
	DefaultFormat string `yaml:"default_format"`
}

// Config is the top-level mailgoat configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"circuit_breaker"`
	Batch   BatchConfig   `yaml:"batch"`
	Logging LoggingConfig `yaml:"logging"`
	Output  OutputConfig  `yaml:"output"`
}

// New returns a Config populated with defaults and environment overrides,
// without reading any file.
func New() *Config {
	cfg := &Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Retry: RetryConfig{
			MaxRetries:        DefaultMaxRetries,
			BaseDelayMs:       DefaultBaseDelayMs,
			MaxDelayMs:        DefaultMaxDelayMs,
			BackoffMultiplier: DefaultBackoffMultiplier,
		},
		Breaker: BreakerConfig{
			Threshold:  DefaultBreakerThreshold,
			CooldownMs: DefaultBreakerCooldownMs,
		},
		Batch: BatchConfig{
			Concurrency: DefaultBatchConcurrency,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			DefaultFormat: "table",
		},
	}
	cfg.applyEnvOverrides()
	return cfg
}

// Load reads the YAML file at path onto a default Config. A missing file is
// not an error: defaults plus environment overrides are returned, matching
// first-run behavior before `mailgoat config init` has been used.
func Load(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyDefaults fills zero values left by a sparse YAML file.
func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = DefaultMaxRetries
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = DefaultBaseDelayMs
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = DefaultMaxDelayMs
	}
	if c.Retry.BackoffMultiplier <= 1 {
		c.Retry.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.Breaker.Threshold <= 0 {
		c.Breaker.Threshold = DefaultBreakerThreshold
	}
	if c.Breaker.CooldownMs <= 0 {
		c.Breaker.CooldownMs = DefaultBreakerCooldownMs
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = DefaultBatchConcurrency
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Output.DefaultFormat == "" {
		c.Output.DefaultFormat = "table"
	}
}

// applyEnvOverrides applies environment variables on top of file values.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.API.Key = key
	}
	if url := os.Getenv(EnvBaseURL); url != "" {
		c.API.BaseURL = url
	}
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// BaseDelay returns the initial retry backoff as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling as a duration.
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
}

// BreakerCooldown returns the circuit breaker cooldown as a duration.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownMs) * time.Millisecond
}

// DefaultConfigPath returns ~/.config/mailgoat/config.yaml, falling back to
// the working directory when the home directory cannot be determined.
func DefaultConfigPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}

// ConfigDir returns the mailgoat configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mailgoat"), nil
}

// EnsureConfigDir creates the configuration directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// BatchStatePath resolves the SQLite path for batch progress, defaulting to
// batches.db inside the config directory.
func (c *Config) BatchStatePath() (string, error) {
	if c.Batch.StatePath != "" {
		return c.Batch.StatePath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "batches.db"), nil
}
