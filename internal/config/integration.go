package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// GlobalConfig holds the global configuration instance.
var GlobalConfig *Config        //nolint:gochecknoglobals // Singleton pattern for configuration
var globalConfigMu sync.RWMutex //nolint:gochecknoglobals // Protects GlobalConfig and globalConfigErr

var globalConfigErr error //nolint:gochecknoglobals // Load error of the global config, reported once

// InitGlobalConfig loads the global configuration from the config directory.
// Load errors fall back to defaults and are reported by GlobalConfigError.
func InitGlobalConfig() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	if GlobalConfig != nil {
		return
	}

	path, err := GetConfigPath()
	if err == nil {
		var cfg *Config
		if cfg, err = Load(path); err == nil {
			GlobalConfig = cfg
			return
		}
	}

	globalConfigErr = err
	GlobalConfig = New()
}

// ResetGlobalConfigForTest resets the global config for testing purposes.
func ResetGlobalConfigForTest() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	GlobalConfig = nil
	globalConfigErr = nil
}

// GetGlobalConfig returns the global configuration, initializing it if needed.
func GetGlobalConfig() *Config {
	InitGlobalConfig()

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return GlobalConfig
}

// GlobalConfigError returns the error hit while loading the global config, if any.
func GlobalConfigError() error {
	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfigErr
}

// GetConfigDir returns the path to the bulkops configuration directory.
func GetConfigDir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".bulkops"), nil
}

// GetConfigPath returns the path of config.yaml in the configuration directory.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir ensures the bulkops configuration directory exists.
func EnsureConfigDir() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}
