// Package config provides configuration management for the CVE tracker.
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoKeywords               = errors.New("tracker.keywords must contain at least one keyword")
	ErrEmptyKeyword             = errors.New("keyword must not be empty")
	ErrInvalidEndpoint          = errors.New("search.endpoint must be an absolute http(s) URL")
	ErrInvalidPolitenessDelay   = errors.New("search.politeness_delay_ms must be non-negative")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidMaxDelay          = errors.New("retry.max_delay_ms must not be below retry.initial_delay_ms")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be positive")
	ErrMissingArchivePath       = errors.New("output.archive_path is required")
	ErrMissingReportPath        = errors.New("output.report_path is required")
	ErrInvalidBufferSize        = errors.New("advanced.buffer_size_kb must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be one of: text, json")
)

// DefaultKeywords are the search terms queried when the config names none.
var DefaultKeywords = []string{
	"CVE-2025",
	"zero-day",
	"0day",
	`"exploited in the wild"`,
	`"known exploited"`,
	"victims",
	"affected",
}

// Config represents the complete tracker configuration.
type Config struct {
	Tracker  TrackerConfig  `yaml:"tracker"`
	Features FeaturesConfig `yaml:"features"`
	Advanced AdvancedConfig `yaml:"advanced"`
}

// TrackerConfig contains tracker-specific settings.
type TrackerConfig struct {
	Search   SearchConfig  `yaml:"search"`
	Output   OutputConfig  `yaml:"output"`
	Report   ReportConfig  `yaml:"report"`
	Logging  LoggingConfig `yaml:"logging"`
	Keywords []string      `yaml:"keywords"`
	Retry    RetryPolicy   `yaml:"retry"`
}

// SearchConfig describes the upstream search API.
type SearchConfig struct {
	Endpoint          string `yaml:"endpoint"`
	APIKey            string `yaml:"api_key"`
	EngineID          string `yaml:"engine_id"`
	UserAgent         string `yaml:"user_agent"`
	PolitenessDelayMs int    `yaml:"politeness_delay_ms"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        float64 `yaml:"timeout_sec"`
}

// OutputConfig defines where results are written.
type OutputConfig struct {
	ArchivePath string `yaml:"archive_path"`
	ReportPath  string `yaml:"report_path"`
}

// ReportConfig controls the rendered Markdown section.
type ReportConfig struct {
	Heading string `yaml:"heading"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	DedupeLinks   bool `yaml:"dedupe_links"`
	EnableTracing bool `yaml:"enable_tracing"`
}

// AdvancedConfig contains advanced settings.
type AdvancedConfig struct {
	MetricsTextfile string `yaml:"metrics_textfile"`
	BufferSizeKb    int    `yaml:"buffer_size_kb"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	keywords := make([]string, len(DefaultKeywords))
	copy(keywords, DefaultKeywords)

	return &Config{
		Tracker: TrackerConfig{
			Search: SearchConfig{
				Endpoint:          "https://www.googleapis.com/customsearch/v1",
				UserAgent:         "cve-tracker/1.0",
				PolitenessDelayMs: 1000,
			},
			Output: OutputConfig{
				ArchivePath: "cve_2025_articles.json",
				ReportPath:  "README.md",
			},
			Report: ReportConfig{
				Heading: "CVE Summary for 2025",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
			Keywords: keywords,
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    1000,
				MaxDelayMs:        60000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        15,
			},
		},
		Advanced: AdvancedConfig{
			BufferSizeKb: 4096,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration. Missing credentials are not an
// error: the tracker runs in a degraded mode without them.
func (c *Config) Validate() error {
	if len(c.Tracker.Keywords) == 0 {
		return ErrNoKeywords
	}

	for i, kw := range c.Tracker.Keywords {
		if kw == "" {
			return fmt.Errorf("%w: keywords[%d]", ErrEmptyKeyword, i)
		}
	}

	u, err := url.Parse(c.Tracker.Search.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Tracker.Search.Endpoint)
	}

	if c.Tracker.Search.PolitenessDelayMs < 0 {
		return ErrInvalidPolitenessDelay
	}

	// Validate retry policy
	if c.Tracker.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Tracker.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Tracker.Retry.MaxDelayMs < c.Tracker.Retry.InitialDelayMs {
		return ErrInvalidMaxDelay
	}

	if c.Tracker.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Tracker.Retry.TimeoutSec <= 0 {
		return ErrInvalidTimeout
	}

	// Validate output config
	if c.Tracker.Output.ArchivePath == "" {
		return ErrMissingArchivePath
	}

	if c.Tracker.Output.ReportPath == "" {
		return ErrMissingReportPath
	}

	if c.Advanced.BufferSizeKb < 1 {
		return ErrInvalidBufferSize
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Tracker.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Tracker.Logging.Format != "text" && c.Tracker.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// HasCredentials reports whether both search API credentials are set.
func (c *Config) HasCredentials() bool {
	return c.Tracker.Search.APIKey != "" && c.Tracker.Search.EngineID != ""
}

// PolitenessDelay returns the minimum spacing between distinct queries.
func (s *SearchConfig) PolitenessDelay() time.Duration {
	return time.Duration(s.PolitenessDelayMs) * time.Millisecond
}

// GetRetryDelay returns the backoff before the retry that follows the given
// zero-based attempt: initial delay times multiplier^attempt, capped at MaxDelayMs.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delayMs := float64(rp.InitialDelayMs) * math.Pow(rp.BackoffMultiplier, float64(attempt))

	// Cap at max delay
	if rp.MaxDelayMs > 0 && delayMs > float64(rp.MaxDelayMs) {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(delayMs * float64(time.Millisecond))
}

// GetTimeout returns the per-request timeout.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec * float64(time.Second))
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Keywords: %d, MaxAttempts: %d, Archive: %s, Report: %s, Credentials: %t}",
		len(c.Tracker.Keywords),
		c.Tracker.Retry.MaxAttempts,
		c.Tracker.Output.ArchivePath,
		c.Tracker.Output.ReportPath,
		c.HasCredentials(),
	)
}
