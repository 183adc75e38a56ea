package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader reads and writes the configuration file.
type Loader struct {
	configPath string
}

// NewLoader creates a loader. An empty path means the default location
// under the user's home directory.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Path returns the resolved config file path.
func (l *Loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".parley", "parley.json")
}

// Load reads the configuration, falling back to defaults when no file
// exists. Environment variables with the PARLEY_ prefix override file
// values.
func (l *Loader) Load() (*Config, error) {
	configPath := l.Path()
	if configPath == "" {
		return nil, fmt.Errorf("failed to resolve config path")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("PARLEY")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if key := os.Getenv("PARLEY_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".parley")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "parley.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to file, creating the directory if needed.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.Path()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("server", cfg.Server)
	v.Set("provider", cfg.Provider)
	v.Set("chat", cfg.Chat)
	v.Set("tools", cfg.Tools)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load is a convenience function that creates a loader and loads the config.
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
