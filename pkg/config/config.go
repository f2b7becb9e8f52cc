// Package config loads the application configuration from YAML with sane
// defaults for a local install.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxUploadMB     int64  `yaml:"max_upload_mb"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_secs"`
}

// LLMConfig selects and configures the embedding/generation backend.
// Temperature is a pointer so an explicit zero survives default filling.
type LLMConfig struct {
	Backend     string   `yaml:"backend"` // ollama, openai or none
	Model       string   `yaml:"model"`
	OllamaURL   string   `yaml:"ollama_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Temperature *float32 `yaml:"temperature"`
}

// RetrievalConfig tunes the ingest/query pipeline.
type RetrievalConfig struct {
	DataDir      string `yaml:"data_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	MaxTokens    int    `yaml:"max_tokens"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// Load reads the config at path. A missing file returns the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration for a local Ollama setup.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8000",
			MaxUploadMB:     32,
			ShutdownTimeout: 10,
		},
		LLM: LLMConfig{
			Backend:     "ollama",
			Model:       "llama3",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: float32Ptr(0.7),
		},
		Retrieval: RetrievalConfig{
			DataDir:      "data",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         3,
			MaxTokens:    256,
		},
	}
}

func float32Ptr(v float32) *float32 { return &v }

// APIKey resolves the configured API key environment variable.
func (c *LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv(c.APIKeyEnv)
}

func applyDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = def.LLM.Backend
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.Temperature == nil {
		cfg.LLM.Temperature = def.LLM.Temperature
	}
	if cfg.Retrieval.DataDir == "" {
		cfg.Retrieval.DataDir = def.Retrieval.DataDir
	}
	if cfg.Retrieval.ChunkSize <= 0 {
		cfg.Retrieval.ChunkSize = def.Retrieval.ChunkSize
	}
	if cfg.Retrieval.ChunkOverlap < 0 {
		cfg.Retrieval.ChunkOverlap = def.Retrieval.ChunkOverlap
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.MaxTokens <= 0 {
		cfg.Retrieval.MaxTokens = def.Retrieval.MaxTokens
	}
}
