package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/andrew/multidoc-chat/pkg/models"
)

// OpenAIClient backs generation and embeddings with the OpenAI API. It is
// the hosted alternative to the local Ollama backend.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	embedModel string
}

// NewOpenAIClient creates an OpenAI-backed client. The model is used for
// chat/generation; embeddings always use text-embedding-3-small.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		model:      model,
		embedModel: string(openai.SmallEmbedding3),
	}, nil
}

// Chat processes a conversation and returns the assistant's reply.
func (c *OpenAIClient) Chat(ctx context.Context, messages []models.Message, config ModelConfig) (models.Message, error) {
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		converted[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    converted,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
		TopP:        config.TopP,
		Stop:        config.StopSequences,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("OpenAI chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Message{}, errors.New("OpenAI returned no choices")
	}
	return models.Message{
		Role:      models.RoleAssistant,
		Content:   resp.Choices[0].Message.Content,
		Timestamp: time.Now(),
	}, nil
}

// Generate completes a single prompt through the chat endpoint.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, config ModelConfig) (string, error) {
	msg, err := c.Chat(ctx, []models.Message{
		{Role: models.RoleUser, Content: prompt, Timestamp: time.Now()},
	}, config)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// EmbedText returns the embedding vector for one text.
func (c *OpenAIClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in a single API call, preserving input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Close implements Client; the API client needs no cleanup.
func (c *OpenAIClient) Close() error { return nil }
