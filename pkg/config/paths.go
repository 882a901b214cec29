package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// BaseSettingsDir returns the directory of the config file in use, or the
// working directory when none was read.
func BaseSettingsDir() string {
	// Check if config.path is explicitly set (for testing)
	if configPath := viper.GetString("config.path"); configPath != "" {
		return configPath
	}

	currentConfig := viper.ConfigFileUsed()
	if currentConfig == "" {
		return "."
	}
	return filepath.Dir(currentConfig)
}

// ResolvePath makes a relative path relative to the settings directory.
func ResolvePath(target string) string {
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(BaseSettingsDir(), filepath.Base(target))
}
