package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewModel builds a langchaingo model handle for the configured provider.
// Clients are constructed once at process start and passed by handle into
// each component; the OpenAI key comes from OPENAI_API_KEY.
func NewModel(provider, model, baseURL string) (llms.Model, error) {
	switch provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(model)}
		if baseURL != "" {
			opts = append(opts, ollama.WithServerURL(baseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama model: %w", err)
		}
		return llm, nil
	case "openai":
		opts := []openai.Option{openai.WithModel(model)}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai model: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}
