package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/ainteg/docpipe/internal/models"
)

// ChatConfig represents the configuration for the answer engine.
type ChatConfig struct {
	Provider       string
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	BaseURL        string
	// ContextSnippet bounds how much of each retrieved chunk is quoted in
	// the prompt.
	ContextSnippet int
}

// ChatEngine synthesizes answers from retrieved chunks with an LLM.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 800
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "Answer strictly from the provided documents. If the documents hold no answer, say so instead of guessing."
	}
	if config.ContextSnippet == 0 {
		config.ContextSnippet = 400
	}

	llm, err := NewModel(config.Provider, config.Model, config.BaseURL)
	if err != nil {
		return nil, err
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewWithModel wires an already-constructed model handle, mainly for tests.
func NewWithModel(config ChatConfig, model llms.Model) *ChatEngine {
	if config.SystemTemplate == "" {
		config.SystemTemplate = "Answer strictly from the provided documents."
	}
	if config.ContextSnippet == 0 {
		config.ContextSnippet = 400
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 800
	}
	return &ChatEngine{config: config, llm: model}
}

// Answer generates a grounded response from the query and retrieved chunks.
func (ce *ChatEngine) Answer(ctx context.Context, query string, results []models.SearchResult) (string, error) {
	content := ce.buildMessages(query, results)

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return response.Choices[0].Content, nil
}

// AnswerStream generates a stream of response fragments for the same prompt.
func (ce *ChatEngine) AnswerStream(ctx context.Context, query string, results []models.SearchResult) (<-chan string, error) {
	content := ce.buildMessages(query, results)

	out := make(chan string)
	go func() {
		defer close(out)

		_, err := ce.llm.GenerateContent(ctx, content,
			llms.WithTemperature(ce.config.Temperature),
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case out <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			out <- fmt.Sprintf("Error: %v", err)
		}
	}()

	return out, nil
}

func (ce *ChatEngine) buildMessages(query string, results []models.SearchResult) []llms.MessageContent {
	var contextBuilder strings.Builder
	for i, res := range results {
		snippet := res.Text
		if len([]rune(snippet)) > ce.config.ContextSnippet {
			snippet = string([]rune(snippet)[:ce.config.ContextSnippet]) + "..."
		}
		contextBuilder.WriteString(fmt.Sprintf("[Source %d", i+1))
		if res.Metadata.Filename != "" {
			contextBuilder.WriteString(" from " + res.Metadata.Filename)
		}
		contextBuilder.WriteString("]:\n")
		contextBuilder.WriteString(snippet)
		contextBuilder.WriteString("\n\n")
	}

	user := fmt.Sprintf("Documents:\n%s\nQuestion: %s\n\nAnswer using ONLY the documents above:",
		contextBuilder.String(), query)

	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(schema.ChatMessageTypeHuman, user),
	}
}
