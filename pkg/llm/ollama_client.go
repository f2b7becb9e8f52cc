package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andrew/multidoc-chat/pkg/models"
)

// OllamaClient talks to a local Ollama server over its REST API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	modelName  string
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Prompt   string          `json:"prompt,omitempty"`
	Messages []ollamaMessage `json:"messages,omitempty"`
	Stream   bool            `json:"stream,omitempty"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	// No omitempty: an explicit zero temperature must reach the server.
	Temperature float32  `json:"temperature"`
	TopP        float32  `json:"top_p,omitempty"`
	MaxTokens   int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaResponse struct {
	Response string        `json:"response"`
	Message  ollamaMessage `json:"message"`
	Done     bool          `json:"done"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaClient creates a client for a local Ollama server. An empty
// baseURL falls back to the default local install.
func NewOllamaClient(modelName, baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434/api"
	}
	return &OllamaClient{
		baseURL:   baseURL,
		modelName: modelName,
		httpClient: &http.Client{
			// Generations on CPU-only hosts can take a while.
			Timeout: 5 * time.Minute,
		},
	}
}

// Chat processes a conversation and returns the assistant's reply.
func (c *OllamaClient) Chat(ctx context.Context, messages []models.Message, config ModelConfig) (models.Message, error) {
	converted := make([]ollamaMessage, len(messages))
	for i, msg := range messages {
		converted[i] = ollamaMessage{Role: string(msg.Role), Content: msg.Content}
	}

	req := ollamaRequest{
		Model:    c.modelName,
		Messages: converted,
		Options:  optionsFrom(config),
	}

	content, err := c.streamRequest(ctx, "/chat", req, func(chunk ollamaResponse) string {
		return chunk.Message.Content
	})
	if err != nil {
		return models.Message{}, err
	}
	return models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}, nil
}

// Generate completes a single prompt.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, config ModelConfig) (string, error) {
	req := ollamaRequest{
		Model:   c.modelName,
		Prompt:  prompt,
		Options: optionsFrom(config),
	}
	return c.streamRequest(ctx, "/generate", req, func(chunk ollamaResponse) string {
		return chunk.Response
	})
}

// EmbedText returns the embedding vector for one text.
func (c *OllamaClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	body, err := c.post(ctx, "/embeddings", ollamaRequest{Model: c.modelName, Prompt: text})
	if err != nil {
		return nil, err
	}
	var resp ollamaEmbeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama embeddings response: %w", err)
	}
	return resp.Embedding, nil
}

// EmbedBatch embeds each text in order. The embeddings endpoint takes one
// prompt per call, so the batch is a sequential loop against the local
// server.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Close implements Client; the HTTP client needs no cleanup.
func (c *OllamaClient) Close() error { return nil }

func optionsFrom(config ModelConfig) ollamaOptions {
	return ollamaOptions{
		Temperature: config.Temperature,
		TopP:        config.TopP,
		MaxTokens:   config.MaxTokens,
		Stop:        config.StopSequences,
	}
}

// streamRequest posts req to the given endpoint and concatenates the pieces
// extracted from each line of the JSON-lines response stream.
func (c *OllamaClient) streamRequest(ctx context.Context, endpoint string, req ollamaRequest, piece func(ollamaResponse) string) (string, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, body)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk ollamaResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", fmt.Errorf("failed to parse Ollama response chunk: %w", err)
		}
		full.WriteString(piece(chunk))
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading response stream: %w", err)
	}
	return full.String(), nil
}

// post sends a non-streaming request and returns the raw response body.
func (c *OllamaClient) post(ctx context.Context, endpoint string, req interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}
