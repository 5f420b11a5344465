package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider    string  `yaml:"provider"` // "ollama" or "openai"
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Embedding struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
		// TimeoutSeconds bounds a single embedding call; a timed-out chunk
		// is dropped, not fatal.
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"embedding"`

	Database struct {
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	OCR struct {
		VisionModel    string  `yaml:"vision_model"`
		Languages      string  `yaml:"languages"`
		LocalDPI       int     `yaml:"local_dpi"`
		VisionDPI      int     `yaml:"vision_dpi"`
		MaxVisionPages int     `yaml:"max_vision_pages"`
		PagesPerSecond float64 `yaml:"pages_per_second"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		MinTextLength  int     `yaml:"min_text_length"`
	} `yaml:"ocr"`

	Processor struct {
		ChunkSize     int `yaml:"chunk_size"`
		ChunkOverlap  int `yaml:"chunk_overlap"`
		MaxTextLength int `yaml:"max_text_length"`
		MaxChunks     int `yaml:"max_chunks"`
	} `yaml:"processor"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	UI struct {
		Streaming bool `yaml:"streaming"`
	} `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docpipe/config.yaml"),
			"/etc/docpipe/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-4o-mini"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 800
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.TimeoutSeconds == 0 {
		config.Embedding.TimeoutSeconds = 30
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.OCR.VisionModel == "" {
		config.OCR.VisionModel = "gpt-4o-mini"
	}
	if config.OCR.Languages == "" {
		config.OCR.Languages = "ell+eng"
	}
	if config.OCR.LocalDPI == 0 {
		config.OCR.LocalDPI = 200
	}
	if config.OCR.VisionDPI == 0 {
		config.OCR.VisionDPI = 120
	}
	if config.OCR.MaxVisionPages == 0 {
		config.OCR.MaxVisionPages = 20
	}
	if config.OCR.PagesPerSecond == 0 {
		config.OCR.PagesPerSecond = 0.5
	}
	if config.OCR.TimeoutSeconds == 0 {
		config.OCR.TimeoutSeconds = 120
	}
	if config.OCR.MinTextLength == 0 {
		config.OCR.MinTextLength = 20
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}
	if config.Processor.MaxTextLength == 0 {
		config.Processor.MaxTextLength = 1_000_000
	}
	if config.Processor.MaxChunks == 0 {
		config.Processor.MaxChunks = 50
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		if config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
