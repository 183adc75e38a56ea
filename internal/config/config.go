package config

import (
	"fmt"
)

// Config represents the main Parley configuration.
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`
	Chat     ChatConfig     `json:"chat" mapstructure:"chat"`
	Tools    ToolsConfig    `json:"tools" mapstructure:"tools"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`

	// Data directory for logs and local state
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      int    `json:"port" mapstructure:"port"`
	StaticDir string `json:"static_dir" mapstructure:"static_dir"`
}

// ProviderConfig selects the model backend. The API key is normally taken
// from the provider's environment variable; the field exists for setups
// where that is not possible.
type ProviderConfig struct {
	Name   string `json:"name" mapstructure:"name"` // anthropic, openai
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// ChatConfig holds per-session model parameters.
type ChatConfig struct {
	Model        string `json:"model" mapstructure:"model"`
	MaxTokens    int    `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
}

// ToolsConfig holds tool settings.
type ToolsConfig struct {
	// WorkspaceRoot confines file tools; empty disables the restriction.
	WorkspaceRoot string `json:"workspace_root" mapstructure:"workspace_root"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8080,
			StaticDir: "web",
		},
		Provider: ProviderConfig{
			Name: "anthropic",
		},
		Chat: ChatConfig{
			Model:        "claude-3-7-sonnet-latest",
			MaxTokens:    1024,
			SystemPrompt: "You are a helpful assistant.",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Provider.Name {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider.Name)
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("chat model is required")
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("invalid max tokens: %d", c.Chat.MaxTokens)
	}
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}
	return nil
}
