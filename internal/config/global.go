package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds the global configuration instance.
var GlobalConfig *Config        //nolint:gochecknoglobals // Singleton pattern for configuration
var globalConfigMu sync.RWMutex //nolint:gochecknoglobals // Protects globalConfigInit flag
var globalConfigInit bool       //nolint:gochecknoglobals // Tracks if global config has been initialized

// InitGlobalConfig loads the global configuration from path, once. Later
// calls are no-ops so every command in one invocation sees the same config.
func InitGlobalConfig(path string) error {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	if globalConfigInit {
		return nil
	}

	cfg, err := Load(path)
	if err != nil {
		return err
	}
	GlobalConfig = cfg
	globalConfigInit = true
	return nil
}

// GetGlobalConfig returns the global configuration, falling back to defaults
// when InitGlobalConfig has not run.
func GetGlobalConfig() *Config {
	globalConfigMu.RLock()
	if globalConfigInit {
		defer globalConfigMu.RUnlock()
		return GlobalConfig
	}
	globalConfigMu.RUnlock()

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if !globalConfigInit {
		GlobalConfig = New()
		globalConfigInit = true
	}
	return GlobalConfig
}

// ResetGlobalConfigForTest resets the global config for testing purposes.
func ResetGlobalConfigForTest() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	GlobalConfig = nil
	globalConfigInit = false
}

// Save writes the configuration as YAML to path with restrictive permissions,
// since the file may contain an API key.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}
