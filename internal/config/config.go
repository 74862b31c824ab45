//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-embedserver.
// Configuration is loaded from config files and a small set of environment
// variables; CLI flags take precedence over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/viper"
)

// Environment variables understood by the server. The OPENEDAI_* names are
// kept so existing deployments of the OpenAI-compatible API keep working.
const (
	EnvEmbeddingModel  = "OPENEDAI_EMBEDDING_MODEL"
	EnvEmbeddingDevice = "OPENEDAI_EMBEDDING_DEVICE"
	EnvAPIKey          = "OPENEDAI_KEY"
	EnvDebug           = "OPENEDAI_DEBUG"
	EnvHFToken         = "HF_TOKEN"
	EnvJinaAPIKey      = "JINA_API_KEY"
	EnvTogetherAPIKey  = "TOGETHER_API_KEY"
)

// Config holds all configuration for pgedge-embedserver.
type Config struct {
	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogPretty selects the human-readable console writer over JSON lines.
	LogPretty bool `mapstructure:"log_pretty"`

	// Debug forces debug logging, including request/response details.
	Debug bool `mapstructure:"debug"`

	// Embedding holds the embedding model settings.
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Server holds configuration for the serve subcommand.
	Server ServerConfig `mapstructure:"server"`

	// Store holds configuration for the ingest subcommand.
	Store StoreConfig `mapstructure:"store"`
}

// EmbeddingConfig holds embedding model settings. Model and Device are only
// read when the first embedding is requested.
type EmbeddingConfig struct {
	// Model is the embedding model name or local model directory.
	Model string `mapstructure:"model"`

	// Device is the inference device (auto, cpu, cuda, ...).
	Device string `mapstructure:"device"`

	// CacheDir is where downloaded models are kept.
	CacheDir string `mapstructure:"cache_dir"`

	// HFToken authenticates model downloads from Hugging Face.
	HFToken string `mapstructure:"hf_token"`

	// JinaBaseURL is the OpenAI-compatible endpoint for jina-embeddings models.
	JinaBaseURL string `mapstructure:"jina_base_url"`

	// JinaAPIKey is the API key for the Jina endpoint.
	JinaAPIKey string `mapstructure:"jina_api_key"`

	// TogetherBaseURL is the OpenAI-compatible endpoint for the m2-bert model.
	TogetherBaseURL string `mapstructure:"together_base_url"`

	// TogetherAPIKey is the API key for the Together endpoint.
	TogetherAPIKey string `mapstructure:"together_api_key"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	// Listen is the address the HTTP server binds to.
	Listen string `mapstructure:"listen"`

	// APIKey, when set, is required as a bearer token on /v1 routes.
	APIKey string `mapstructure:"api_key"`

	// Preload loads the embedding model at startup instead of on first use.
	Preload bool `mapstructure:"preload"`

	// ReadHeaderTimeout is the header read timeout in seconds.
	ReadHeaderTimeout int `mapstructure:"read_header_timeout"`

	// ShutdownTimeout is the graceful shutdown drain timeout in seconds.
	ShutdownTimeout int `mapstructure:"shutdown_timeout"`
}

// StoreConfig holds configuration for writing embeddings to PostgreSQL.
type StoreConfig struct {
	// Connection is the PostgreSQL connection string.
	Connection string `mapstructure:"connection"`

	// Table is the destination table for embeddings.
	Table string `mapstructure:"table"`

	// BatchSize is the number of inputs embedded per request to the model.
	BatchSize int `mapstructure:"batch_size"`

	// DropExisting drops the table and metadata before ingesting.
	DropExisting bool `mapstructure:"drop_existing"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "pgedge-embedserver", "models")
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "pgedge-embedserver", "models")
	}

	return &Config{
		LogLevel:  "info",
		LogPretty: true,
		Embedding: EmbeddingConfig{
			Model:           "all-mpnet-base-v2",
			Device:          "cpu",
			CacheDir:        cacheDir,
			JinaBaseURL:     "https://api.jina.ai/v1",
			TogetherBaseURL: "https://api.together.xyz/v1",
		},
		Server: ServerConfig{
			Listen:            "127.0.0.1:5001",
			ReadHeaderTimeout: 10,
			ShutdownTimeout:   15,
		},
		Store: StoreConfig{
			Table:     "embeddings",
			BatchSize: 32,
		},
	}
}

// envBindings maps config keys to the environment variables that feed them.
var envBindings = map[string]string{
	"debug":                      EnvDebug,
	"embedding.model":            EnvEmbeddingModel,
	"embedding.device":           EnvEmbeddingDevice,
	"embedding.hf_token":         EnvHFToken,
	"embedding.jina_api_key":     EnvJinaAPIKey,
	"embedding.together_api_key": EnvTogetherAPIKey,
	"server.api_key":             EnvAPIKey,
}

// Load reads configuration from config files and the environment.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-embedserver.yaml
// 3. ~/.config/pgedge-embedserver/config.yaml
//
// Environment variables override config file values.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-embedserver")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-embedserver"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// EffectiveLogLevel returns the log level, taking the debug switch into account.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// ValidateServe checks configuration required for the serve command.
func (c *Config) ValidateServe() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Server.ReadHeaderTimeout < 0 {
		return fmt.Errorf("read_header_timeout must be non-negative")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be non-negative")
	}
	return nil
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidateIngest checks configuration required for the ingest command.
func (c *Config) ValidateIngest() error {
	if c.Store.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	if !tableNamePattern.MatchString(c.Store.Table) {
		return fmt.Errorf("table must be a lowercase SQL identifier, got %q", c.Store.Table)
	}
	if c.Store.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	return nil
}
