// Package llm wraps the language-model backends used for embedding and
// answer generation. Backends are optional: a nil Client means the
// capability is absent and callers degrade instead of probing.
package llm

import (
	"context"
	"fmt"

	"github.com/andrew/multidoc-chat/pkg/models"
)

// Client is the interface for interacting with LLM backends.
type Client interface {
	// Chat processes a conversation and returns the assistant's reply.
	Chat(ctx context.Context, messages []models.Message, config ModelConfig) (models.Message, error)

	// Generate completes a single prompt.
	Generate(ctx context.Context, prompt string, config ModelConfig) (string, error)

	// EmbedText returns the embedding vector for one text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases backend resources.
	Close() error
}

// ModelConfig holds generation parameters.
type ModelConfig struct {
	Temperature   float32
	TopP          float32
	MaxTokens     int
	StopSequences []string
}

// DefaultModelConfig returns a default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   2048,
	}
}

// Options selects and configures a backend.
type Options struct {
	Backend string // "ollama", "openai", or "none"
	Model   string
	BaseURL string // Ollama API base URL
	APIKey  string // OpenAI API key
}

// NewClient builds a client for the configured backend. Backend "none" (or
// empty) returns a nil client and no error: the service runs in degraded
// mode without embeddings or generation.
func NewClient(opts Options) (Client, error) {
	switch opts.Backend {
	case "", "none":
		return nil, nil
	case "ollama":
		model := opts.Model
		if model == "" {
			model = "llama3"
		}
		return NewOllamaClient(model, opts.BaseURL), nil
	case "openai":
		return NewOpenAIClient(opts.APIKey, opts.Model)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", opts.Backend)
	}
}
