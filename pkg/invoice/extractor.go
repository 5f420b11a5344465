package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

const extractionSystemPrompt = `You are an expert system for extracting structured data from OCR invoice text.
Return ONLY valid JSON. No explanations.

Extract:
- customer (string)
- vat_number if found (string or null)
- invoice_number (string)
- invoice_date (string or null)
- series (string or null)

- product_lines:
    - description
    - quantity (number)
    - unit_price (number)
    - line_total (number)

- totals:
    - subtotal
    - vat_amount
    - grand_total

If a field is missing set it to null.`

// Extractor parses OCR invoice text with an LLM and degrades to a
// deterministic regex pass when anything about the LLM path fails.
type Extractor struct {
	llm llms.Model
}

// NewExtractor wires the model handle used for the primary path. A nil model
// forces every parse through the fallback.
func NewExtractor(model llms.Model) *Extractor {
	return &Extractor{llm: model}
}

// ParseInvoiceText never returns an error: the LLM result when it parses
// cleanly, otherwise the regex fallback tagged with the trigger cause.
func (e *Extractor) ParseInvoiceText(ctx context.Context, text string) ExtractionResult {
	inv, err := e.extractWithLLM(ctx, text)
	if err != nil {
		return ExtractionResult{
			Source:   SourceFallbackRegex,
			Error:    err.Error(),
			Fallback: regexFallback(text),
		}
	}

	return ExtractionResult{
		Source:  SourceLLM,
		Invoice: inv,
	}
}

func (e *Extractor) extractWithLLM(ctx context.Context, text string) (*Invoice, error) {
	if e.llm == nil {
		return nil, errors.New("no extraction model configured")
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, extractionSystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman,
			fmt.Sprintf("Extract the invoice data from the following OCR text:\n\n%s", text)),
	}

	response, err := e.llm.GenerateContent(ctx, content,
		llms.WithTemperature(0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, errors.New("extraction returned no choices")
	}

	var inv Invoice
	dec := json.NewDecoder(strings.NewReader(stripFences(response.Choices[0].Content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&inv); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if inv.InvoiceNumber == "" {
		return nil, errors.New("schema validation failed: missing invoice_number")
	}

	return &inv, nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
