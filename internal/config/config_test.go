package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Provider.Name)
	assert.Equal(t, "claude-3-7-sonnet-latest", cfg.Chat.Model)
	assert.Equal(t, 1024, cfg.Chat.MaxTokens)
	assert.NotEmpty(t, cfg.Chat.SystemPrompt)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default",
			mutate: func(c *Config) {},
		},
		{
			name:   "openai provider",
			mutate: func(c *Config) { c.Provider.Name = "openai" },
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider.Name = "cohere" },
			wantErr: "unknown provider",
		},
		{
			name:    "missing model",
			mutate:  func(c *Config) { c.Chat.Model = "" },
			wantErr: "chat model is required",
		},
		{
			name:    "non-positive max tokens",
			mutate:  func(c *Config) { c.Chat.MaxTokens = 0 },
			wantErr: "invalid max tokens",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "unknown log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
