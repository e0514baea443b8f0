// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Model        ModelConfig        `mapstructure:"model" yaml:"model"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities" yaml:"capabilities"`
	Segmenter    SegmenterConfig    `mapstructure:"segmenter" yaml:"segmenter"`
	Agent        AgentConfig        `mapstructure:"agent" yaml:"agent"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ModelConfig configures the reasoning model endpoint.
type ModelConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Name     string `mapstructure:"name" yaml:"name"`
	// APIKey is bound to OPENROUTER_API_KEY; it never belongs in a config
	// file that gets committed.
	APIKey          string        `mapstructure:"api_key" yaml:"-"`
	ReasoningEffort string        `mapstructure:"reasoning_effort" yaml:"reasoning_effort"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CapabilitiesConfig configures the external web capabilities (search,
// reader/scrape, rerank). The endpoints default to Jina's public APIs but
// are overridable so tests can point them at local fixtures.
type CapabilitiesConfig struct {
	SearchEndpoint string `mapstructure:"search_endpoint" yaml:"search_endpoint"`
	ReaderEndpoint string `mapstructure:"reader_endpoint" yaml:"reader_endpoint"`
	RerankEndpoint string `mapstructure:"rerank_endpoint" yaml:"rerank_endpoint"`
	// APIKey is bound to JINA_API_KEY. Optional: the public endpoints accept
	// unauthenticated requests at a reduced rate.
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	RerankModel string        `mapstructure:"rerank_model" yaml:"rerank_model"`
	TopDocs     int           `mapstructure:"top_docs" yaml:"top_docs"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SegmenterConfig tunes the text chunking used before reranking.
type SegmenterConfig struct {
	ChunkSize    int `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
}

// AgentConfig holds the control-loop settings.
type AgentConfig struct {
	// RoundDelay paces the loop to respect provider rate limits; every
	// round, including the first, waits this long before rendering.
	RoundDelay time.Duration `mapstructure:"round_delay" yaml:"round_delay"`
	// RetryDelay is the backoff applied after a failed round before the
	// same round is re-attempted.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	MaxRounds  int           `mapstructure:"max_rounds" yaml:"max_rounds"`
	// MaxRoundRetries bounds consecutive failed-round retries. Zero means
	// retry forever, which can spin indefinitely against a persistently
	// broken endpoint.
	MaxRoundRetries int `mapstructure:"max_round_retries" yaml:"max_round_retries"`
}

// DatabaseConfig holds the record-store connection details. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "deepsearch-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Model --
	v.SetDefault("model.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("model.name", "deepseek/deepseek-r1:free")
	v.SetDefault("model.reasoning_effort", "low")
	v.SetDefault("model.timeout", "5m")

	// -- Capabilities --
	v.SetDefault("capabilities.search_endpoint", "https://s.jina.ai")
	v.SetDefault("capabilities.reader_endpoint", "https://r.jina.ai")
	v.SetDefault("capabilities.rerank_endpoint", "https://api.jina.ai/v1/rerank")
	v.SetDefault("capabilities.rerank_model", "jina-reranker-v2-base-multilingual")
	v.SetDefault("capabilities.top_docs", 5)
	v.SetDefault("capabilities.timeout", "5m")

	// -- Segmenter --
	v.SetDefault("segmenter.chunk_size", 1000)
	v.SetDefault("segmenter.chunk_overlap", 500)

	// -- Agent --
	v.SetDefault("agent.round_delay", "20s")
	v.SetDefault("agent.retry_delay", "10s")
	v.SetDefault("agent.max_rounds", 0)
	v.SetDefault("agent.max_round_retries", 0)
}

// NewConfigFromViper creates a new configuration instance from a viper
// object, binding sensitive values from the environment.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for credentials. Errors are impossible
	// here per viper's contract (non-empty key), so they are ignored.
	_ = v.BindEnv("model.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("capabilities.api_key", "JINA_API_KEY")
	_ = v.BindEnv("database.url", "DEEPSEARCH_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter configuration invalid: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if c.Capabilities.TopDocs <= 0 {
		return fmt.Errorf("capabilities.top_docs must be a positive integer")
	}
	return nil
}

// Validate checks the segmenter settings.
func (s *SegmenterConfig) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be greater than 0")
	}
	if s.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must not be negative")
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", s.ChunkOverlap, s.ChunkSize)
	}
	return nil
}

// Validate checks the agent loop settings.
func (a *AgentConfig) Validate() error {
	if a.RoundDelay < 0 {
		return fmt.Errorf("round_delay must not be negative")
	}
	if a.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative")
	}
	if a.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must not be negative")
	}
	if a.MaxRoundRetries < 0 {
		return fmt.Errorf("max_round_retries must not be negative")
	}
	return nil
}
