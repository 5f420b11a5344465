package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.Provider != "ollama" && c.LLM.Provider != "openai" {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: "provider must be \"ollama\" or \"openai\"",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid LLM base URL",
			})
		}
	}

	// Validate Embedding config
	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding server URL is required",
		})
	}

	if c.Embedding.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate OCR config
	if c.OCR.MaxVisionPages < 1 {
		errors = append(errors, ValidationError{
			Field:   "ocr.max_vision_pages",
			Message: "max_vision_pages must be positive",
		})
	}

	if c.OCR.PagesPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ocr.pages_per_second",
			Message: "pages_per_second must be positive",
		})
	}

	if c.OCR.MinTextLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "ocr.min_text_length",
			Message: "min_text_length must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 1 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be positive and less than chunk_size",
		})
	}

	if c.Processor.MaxTextLength < c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.max_text_length",
			Message: "max_text_length must be at least chunk_size",
		})
	}

	if c.Processor.MaxChunks < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.max_chunks",
			Message: "max_chunks must be positive",
		})
	}

	return errors
}
