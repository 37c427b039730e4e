package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Documents DocumentsConfig `yaml:"documents" mapstructure:"documents"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Vocab     VocabConfig     `yaml:"vocab" mapstructure:"vocab"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	TriageModel    string  `yaml:"triage_model" mapstructure:"triage_model"`
	SynthesisModel string  `yaml:"synthesis_model" mapstructure:"synthesis_model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
}

// JinaConfig holds Jina embeddings API settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// DocumentsConfig configures corpus ingestion.
type DocumentsConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	ChunkSize     int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// CacheConfig selects the memoization backend.
type CacheConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Path is the SQLite database file when Backend is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`
}

// VocabConfig points at a site-local keyword tables file; empty uses the
// embedded defaults.
type VocabConfig struct {
	TablesPath string `yaml:"tables_path" mapstructure:"tables_path"`
}

// BatchConfig configures batch fan-out processing.
type BatchConfig struct {
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.triage_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.synthesis_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("jina.base_url", "https://api.jina.ai")
	v.SetDefault("jina.model", "jina-embeddings-v3")
	v.SetDefault("documents.dir", "./documents")
	v.SetDefault("documents.pdftotext_path", "pdftotext")
	v.SetDefault("documents.chunk_size", 800)
	v.SetDefault("documents.chunk_overlap", 100)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.path", "desk-cache.db")
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("batch.rate_per_second", 2.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
