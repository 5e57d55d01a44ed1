// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8050".
	Addr string `koanf:"addr"`

	// DatasetPath points at the CSV, TSV or XLSX file loaded at startup.
	DatasetPath string `koanf:"dataset_path"`

	// DatasetSheet names the worksheet to read from an XLSX file. Empty
	// means the first sheet.
	DatasetSheet string `koanf:"dataset_sheet"`

	// DateLayouts overrides the accepted date formats (Go layouts). From the
	// environment, separate layouts with "|".
	DateLayouts []string `koanf:"date_layouts"`

	// WorkerCount sets the number of render workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds how many sessions may have a change pending.
	QueueSize int `koanf:"queue_size"`

	// MemoSize bounds the render cache. Zero or less is unbounded.
	MemoSize int `koanf:"memo_size"`

	// ShardCount configures the number of shards in the session store.
	ShardCount int `koanf:"shard_count"`

	// SessionTTLSeconds expires idle sessions. Zero keeps them forever.
	SessionTTLSeconds int `koanf:"session_ttl_s"`

	// ChartWidth and ChartHeight size the PNG charts.
	ChartWidth  int `koanf:"chart_width"`
	ChartHeight int `koanf:"chart_height"`

	// RateLimit caps API requests per second; RateBurst is the bucket size.
	// A non-positive RateLimit disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_s"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":8050",
		DatasetPath:            "data/final_dataset.csv",
		WorkerCount:            runtime.NumCPU(),
		QueueSize:              10_000,
		MemoSize:               1024,
		ShardCount:             32,
		SessionTTLSeconds:      1800,
		ChartWidth:             1024,
		ChartHeight:            400,
		RateLimit:              0,
		RateBurst:              50,
		ShutdownTimeoutSeconds: 10,
	}
}

// SessionTTL returns the idle session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DatasetPath) == "":
		return fmt.Errorf("%w: dataset_path must not be empty", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be at least 1", ErrInvalidConfig)
	case c.ShardCount < 1:
		return fmt.Errorf("%w: shard_count must be at least 1", ErrInvalidConfig)
	case c.SessionTTLSeconds < 0:
		return fmt.Errorf("%w: session_ttl_s must not be negative", ErrInvalidConfig)
	case c.ChartWidth < 1 || c.ChartHeight < 1:
		return fmt.Errorf("%w: chart size must be positive", ErrInvalidConfig)
	}
	return nil
}
