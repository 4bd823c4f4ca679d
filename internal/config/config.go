// Package config loads bulkops settings from YAML, applies environment
// overrides and exposes a process-wide configuration instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scheduling modes for bulk runs.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

// Defaults for a freshly created configuration.
const (
	DefaultMode       = ModeSequential
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
	DefaultMaxEntries = 20
	DefaultMaxPresets = 10
)

// Environment variables that override the configuration file.
const (
	EnvHome      = "BULKOPS_HOME"
	EnvLogLevel  = "BULKOPS_LOG_LEVEL"
	EnvLogFormat = "BULKOPS_LOG_FORMAT"
	EnvBatchSize = "BULKOPS_BATCH_SIZE"
	EnvMode      = "BULKOPS_MODE"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full bulkops configuration.
type Config struct {
	Bulk    BulkConfig    `yaml:"bulk"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
}

// BulkConfig holds the runner defaults used when a flag is not given.
type BulkConfig struct {
	// Mode is "sequential" or "parallel".
	Mode string `yaml:"mode"`
	// BatchSize of 0 selects the mode default.
	BatchSize        int           `yaml:"batch_size"`
	InterBatchDelay  time.Duration `yaml:"inter_batch_delay"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	// RatePerSecond of 0 disables rate limiting.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// HistoryConfig locates the run history file and caps its lists.
type HistoryConfig struct {
	File       string `yaml:"file"`
	MaxEntries int    `yaml:"max_entries"`
	MaxPresets int    `yaml:"max_presets"`
}

// New returns a configuration with defaults applied.
func New() *Config {
	return &Config{
		Bulk: BulkConfig{
			Mode: DefaultMode,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		History: HistoryConfig{
			MaxEntries: DefaultMaxEntries,
			MaxPresets: DefaultMaxPresets,
		},
	}
}

// Load reads the configuration at path on top of the defaults and then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err = cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BULKOPS_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvMode); v != "" {
		c.Bulk.Mode = strings.ToLower(v)
	}
	if v := os.Getenv(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvBatchSize, v)
		}
		c.Bulk.BatchSize = n
	}
	return nil
}

// Validate checks the configuration for values the runner would reject.
func (c *Config) Validate() error {
	switch c.Bulk.Mode {
	case ModeSequential, ModeParallel:
	default:
		return fmt.Errorf("%w: unknown mode %q (want %s or %s)", ErrInvalidConfig, c.Bulk.Mode, ModeSequential, ModeParallel)
	}
	if c.Bulk.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must be >= 0, got %d", ErrInvalidConfig, c.Bulk.BatchSize)
	}
	if c.Bulk.InterBatchDelay < 0 {
		return fmt.Errorf("%w: inter_batch_delay must be >= 0, got %s", ErrInvalidConfig, c.Bulk.InterBatchDelay)
	}
	if c.Bulk.OperationTimeout < 0 {
		return fmt.Errorf("%w: operation_timeout must be >= 0, got %s", ErrInvalidConfig, c.Bulk.OperationTimeout)
	}
	if c.Bulk.RatePerSecond < 0 {
		return fmt.Errorf("%w: rate_per_second must be >= 0, got %g", ErrInvalidConfig, c.Bulk.RatePerSecond)
	}
	if c.History.MaxEntries < 0 || c.History.MaxPresets < 0 {
		return fmt.Errorf("%w: history limits must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// HistoryFile returns the configured history file, defaulting to
// history.json in the config directory.
func (c *Config) HistoryFile() (string, error) {
	if c.History.File != "" {
		return c.History.File, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}
