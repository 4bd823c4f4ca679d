package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rshade/bulkops/internal/logging"
)

// LoggingConfig is the logging section of the configuration file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
	// Caller adds the source file and line to every entry.
	Caller bool `yaml:"caller,omitempty"`
}

// LogStatus reports where the global Logger writes after InitLogger.
type LogStatus struct {
	// FilePath is the open log file, or "" when logging to stderr.
	FilePath string
	// FallbackReason is set when the configured file could not be opened
	// and the logger fell back to stderr.
	FallbackReason string
}

// Logger is the global zerolog logger instance.
//
//nolint:gochecknoglobals // Logger is intentionally global for application-wide structured logging
var Logger zerolog.Logger

// logOutput owns the log file behind Logger, if any.
//
//nolint:gochecknoglobals // Tracks the global logger's file handle for cleanup
var logOutput logging.LoggerResult

// logMu guards Logger and logOutput.
//
//nolint:gochecknoglobals // Guards the global logger state
var logMu sync.RWMutex

// InitLogger replaces the global Logger with one built from lc. A log file
// opened by a previous call is closed first. When lc.File cannot be opened the
// logger writes to stderr and the returned status says why.
func InitLogger(lc LoggingConfig) LogStatus {
	logMu.Lock()
	defer logMu.Unlock()

	_ = logOutput.Close()
	logOutput = logging.NewLogger(lc.ToLoggingConfig())
	Logger = logOutput.Logger

	return LogStatus{FilePath: logOutput.FilePath, FallbackReason: logOutput.FallbackReason}
}

// SetLogLevel changes the level of the global Logger. Unknown names select info.
func SetLogLevel(level string) {
	logMu.Lock()
	defer logMu.Unlock()

	Logger = Logger.Level(logging.ParseLevel(level))
}

// GetLogger returns the global logger instance.
func GetLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()

	return Logger
}

// CloseLogFile closes the current log file, if any, and points the global
// Logger at stderr so later entries are not written to a closed file.
func CloseLogFile() error {
	logMu.Lock()
	defer logMu.Unlock()

	if !logOutput.UsingFile {
		return nil
	}

	err := logOutput.Close()
	logOutput = logging.NewLogger(logging.Config{
		Level:  Logger.GetLevel().String(),
		Format: logging.FormatConsole,
	})
	Logger = logOutput.Logger
	return err
}

//nolint:gochecknoinits // The global logger must be usable before configuration is loaded.
func init() {
	InitLogger(LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat})
}

// ToLoggingConfig converts config.LoggingConfig to logging.Config for use with
// the internal/logging package.
//
// If File is set, Output becomes "file"; otherwise logs go to stderr.
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
		Caller: lc.Caller,
	}
}

// EnsureLogDir creates the parent directory of the configured log file.
// It does nothing when logging to stderr.
func (lc *LoggingConfig) EnsureLogDir() error {
	if lc.File == "" {
		return nil
	}
	logDir := filepath.Dir(lc.File)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	return nil
}

// GetLoggingConfig returns the Logging section of the global configuration.
// The returned value is a copy; callers apply flag overrides to it.
func GetLoggingConfig() LoggingConfig {
	cfg := GetGlobalConfig()
	return cfg.Logging
}
