package config

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Options are the command-line flags and environment variables that
// override values from the YAML file. Zero values leave the file or
// default value in place.
type Options struct {
	ConfigFile      string  `short:"c" long:"config" env:"CVE_TRACKER_CONFIG" description:"Path to YAML configuration file"`
	APIKey          string  `long:"api-key" env:"GOOGLE_CSE_API_KEY" description:"Search API key"`
	EngineID        string  `long:"engine-id" env:"GOOGLE_CSE_ID" description:"Search engine id"`
	ArchivePath     string  `long:"output" env:"OUTPUT_FILE" description:"Article archive JSON path (default: cve_2025_articles.json)"`
	ReportPath      string  `long:"readme" env:"README_FILE" description:"Markdown report path (default: README.md)"`
	MaxAttempts     int     `long:"max-retries" env:"MAX_RETRIES" description:"Maximum attempts per query (default: 3)"`
	Backoff         float64 `long:"retry-backoff" env:"RETRY_BACKOFF" description:"Exponential backoff multiplier (default: 2.0)"`
	TimeoutSec      float64 `long:"request-timeout" env:"REQUEST_TIMEOUT" description:"Per-request timeout in seconds (default: 15)"`
	LogLevel        string  `long:"log-level" env:"LOG_LEVEL" description:"Log level: debug, info, warn, error"`
	LogFormat       string  `long:"log-format" env:"LOG_FORMAT" description:"Log format: text, json"`
	MetricsTextfile string  `long:"metrics-textfile" env:"METRICS_TEXTFILE" description:"Write Prometheus metrics to this file after the run"`
	Trace           bool    `long:"trace" env:"TRACE" description:"Print OpenTelemetry spans to stdout"`
	DedupeLinks     bool    `long:"dedupe-links" env:"DEDUPE_LINKS" description:"Drop articles whose link was already harvested in this run"`
}

// Load parses args and the environment, reads the optional YAML file and
// returns the validated configuration. A help request is returned as a
// *flags.Error with Type flags.ErrHelp.
func Load(args []string) (*Config, error) {
	var opts Options

	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "tracker"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg := Default()

	if opts.ConfigFile != "" {
		loaded, err := LoadConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	opts.Apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Apply copies every non-zero option onto cfg.
func (o *Options) Apply(cfg *Config) {
	setString(&cfg.Tracker.Search.APIKey, o.APIKey)
	setString(&cfg.Tracker.Search.EngineID, o.EngineID)
	setString(&cfg.Tracker.Output.ArchivePath, o.ArchivePath)
	setString(&cfg.Tracker.Output.ReportPath, o.ReportPath)
	setString(&cfg.Tracker.Logging.Level, o.LogLevel)
	setString(&cfg.Tracker.Logging.Format, o.LogFormat)
	setString(&cfg.Advanced.MetricsTextfile, o.MetricsTextfile)

	if o.MaxAttempts > 0 {
		cfg.Tracker.Retry.MaxAttempts = o.MaxAttempts
	}

	if o.Backoff > 0 {
		cfg.Tracker.Retry.BackoffMultiplier = o.Backoff
	}

	if o.TimeoutSec > 0 {
		cfg.Tracker.Retry.TimeoutSec = o.TimeoutSec
	}

	if o.Trace {
		cfg.Features.EnableTracing = true
	}

	if o.DedupeLinks {
		cfg.Features.DedupeLinks = true
	}
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
