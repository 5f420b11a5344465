package ocr

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

const visionPrompt = "Extract all text from this image:"

type VisionConfig struct {
	// MaxPages caps how many PDF pages go to the remote model.
	MaxPages int
	// DPI is deliberately lower than the local engine's to bound upload size.
	DPI int
	// PagesPerSecond paces page requests against provider rate limits.
	PagesPerSecond float64
}

// Vision is the remote OCR engine: each image or rasterized PDF page is sent
// to a vision-capable LLM for transcription.
type Vision struct {
	config  VisionConfig
	llm     llms.Model
	limiter *rate.Limiter
}

func NewVision(model llms.Model, config VisionConfig) *Vision {
	if config.MaxPages == 0 {
		config.MaxPages = 20
	}
	if config.DPI == 0 {
		config.DPI = 120
	}
	if config.PagesPerSecond == 0 {
		config.PagesPerSecond = 0.5
	}

	return &Vision{
		config:  config,
		llm:     model,
		limiter: rate.NewLimiter(rate.Limit(config.PagesPerSecond), 1),
	}
}

func (v *Vision) Name() string {
	return "vision"
}

func (v *Vision) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	content := []llms.MessageContent{
		{
			Role: schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(visionPrompt),
				llms.BinaryPart(http.DetectContentType(image), image),
			},
		},
	}

	response, err := v.llm.GenerateContent(ctx, content, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("vision model call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}

	return response.Choices[0].Content, nil
}

func (v *Vision) RecognizePDF(ctx context.Context, path string) (string, error) {
	pages, err := pageCount(path)
	if err != nil {
		return "", err
	}
	if pages > v.config.MaxPages {
		pages = v.config.MaxPages
	}

	var b strings.Builder
	for page := 1; page <= pages; page++ {
		if err := v.limiter.Wait(ctx); err != nil {
			return "", err
		}

		image, err := rasterizePage(ctx, path, page, v.config.DPI)
		if err != nil {
			return "", err
		}

		text, err := v.RecognizeImage(ctx, image)
		if err != nil {
			return "", err
		}

		b.WriteString("\n")
		b.WriteString(text)
	}

	return b.String(), nil
}
