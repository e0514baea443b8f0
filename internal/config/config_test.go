package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "deepsearch-cli", cfg.Logger.ServiceName)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.Model.Endpoint)
	assert.Equal(t, "low", cfg.Model.ReasoningEffort)
	assert.Equal(t, 1000, cfg.Segmenter.ChunkSize)
	assert.Equal(t, 500, cfg.Segmenter.ChunkOverlap)
	assert.Equal(t, 20*time.Second, cfg.Agent.RoundDelay)
	assert.Equal(t, 10*time.Second, cfg.Agent.RetryDelay)
	assert.Equal(t, 5, cfg.Capabilities.TopDocs)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("env overrides credentials", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
		t.Setenv("JINA_API_KEY", "jina-test")

		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "sk-or-test", cfg.Model.APIKey)
		assert.Equal(t, "jina-test", cfg.Capabilities.APIKey)
	})

	t.Run("rejects invalid segmenter settings", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("segmenter.chunk_overlap", 1000)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chunk_overlap")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.Segmenter.ChunkSize = 0 },
			wantErr: "chunk_size",
		},
		{
			name:    "negative round delay",
			mutate:  func(c *Config) { c.Agent.RoundDelay = -time.Second },
			wantErr: "round_delay",
		},
		{
			name:    "negative max rounds",
			mutate:  func(c *Config) { c.Agent.MaxRounds = -1 },
			wantErr: "max_rounds",
		},
		{
			name:    "zero top docs",
			mutate:  func(c *Config) { c.Capabilities.TopDocs = 0 },
			wantErr: "top_docs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
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
