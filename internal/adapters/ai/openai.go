// Package ai wraps the OpenAI API behind the embedding and completion
// operations the pipeline needs. Embeddings are deduplicated through an
// optional persistent store keyed by text hash.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
)

// EmbeddingStore persists embeddings across runs so identical texts are
// never re-embedded.
type EmbeddingStore interface {
	Get(ctx context.Context, textHash string) ([]float32, bool)
	Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error
}

// Client talks to OpenAI for embeddings and chat completions.
type Client struct {
	api   *openai.Client
	cfg   *config.OpenAIConfig
	store EmbeddingStore
}

// NewClient creates an OpenAI client. store may be nil, in which case every
// embedding request hits the API.
func NewClient(cfg *config.OpenAIConfig, store EmbeddingStore) *Client {
	return &Client{
		api:   openai.NewClient(cfg.APIKey),
		cfg:   cfg,
		store: store,
	}
}

// Embed returns the embedding vector for text, using the store when the
// same text was embedded before.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	hash := hashText(text)

	if c.store != nil {
		if embedding, ok := c.store.Get(ctx, hash); ok {
			logger.Debug("embedding store hit", zap.String("hash", hash[:12]))
			return embedding, nil
		}
	}

	embedding, err := withRetry(ctx, c.cfg.MaxRetries, "embedding", func() ([]float32, error) {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if c.store != nil {
		if err := c.store.Set(ctx, hash, embedding, c.cfg.EmbeddingModel, len(text)); err != nil {
			logger.Warn("failed to persist embedding", zap.Error(err))
		}
	}

	return embedding, nil
}

// Complete runs a chat completion with a system prompt and a user message
// and returns the trimmed assistant reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	content, err := withRetry(ctx, c.cfg.MaxRetries, "completion", func() (string, error) {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.CompletionModel,
			Temperature: c.cfg.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userMessage},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	return strings.TrimSpace(content), nil
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
