package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig represents the configuration for the embedding client.
type EmbedderConfig struct {
	Model   string
	BaseURL string // Ollama server URL
	Timeout time.Duration
}

// Embedder wraps the Ollama embedding model behind the narrow contract the
// ingestion pipeline depends on.
type Embedder struct {
	config EmbedderConfig
	client *ollama.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{
		config: config,
		client: client,
	}, nil
}

// Embed returns the embedding vector for a single text. The call is bounded
// by the configured timeout; a timed-out call errors like any other failure.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	embeddings, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}

	return embeddings[0], nil
}

// EmbedBatch embeds several texts in one provider call. Semantics match a
// sequence of Embed calls.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	embeddings, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(embeddings), len(texts))
	}

	return embeddings, nil
}
