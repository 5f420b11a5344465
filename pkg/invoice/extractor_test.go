package invoice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/ainteg/docpipe/pkg/invoice"
)

type stubModel struct {
	response string
	err      error
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: s.response}},
	}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

const validExtraction = `{
	"customer": "ACME LTD",
	"vat_number": "EL123456789",
	"invoice_number": "42",
	"invoice_date": "2024-03-01",
	"series": null,
	"product_lines": [
		{"description": "Widget", "quantity": 3, "unit_price": 10.0, "line_total": 30.0}
	],
	"totals": {"subtotal": 30.0, "vat_amount": 7.2, "grand_total": 37.2}
}`

func TestParseInvoiceTextLLMPath(t *testing.T) {
	e := invoice.NewExtractor(&stubModel{response: validExtraction})

	result := e.ParseInvoiceText(context.Background(), "INVOICE 42 ...")

	assert.Equal(t, invoice.SourceLLM, result.Source)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Invoice)
	assert.Nil(t, result.Fallback)

	assert.Equal(t, "ACME LTD", result.Invoice.Customer)
	assert.Equal(t, "42", result.Invoice.InvoiceNumber)
	require.NotNil(t, result.Invoice.VATNumber)
	assert.Equal(t, "EL123456789", *result.Invoice.VATNumber)
	assert.Nil(t, result.Invoice.Series)
	require.Len(t, result.Invoice.ProductLines, 1)
	assert.Equal(t, 3.0, result.Invoice.ProductLines[0].Quantity)
	require.NotNil(t, result.Invoice.Totals.GrandTotal)
	assert.Equal(t, 37.2, *result.Invoice.Totals.GrandTotal)
}

func TestParseInvoiceTextFencedJSON(t *testing.T) {
	e := invoice.NewExtractor(&stubModel{response: "```json\n" + validExtraction + "\n```"})

	result := e.ParseInvoiceText(context.Background(), "text")
	assert.Equal(t, invoice.SourceLLM, result.Source)
}

func TestParseInvoiceTextFallbackOnNetworkError(t *testing.T) {
	e := invoice.NewExtractor(&stubModel{err: errors.New("connection refused")})

	result := e.ParseInvoiceText(context.Background(), "INVOICE 42\nWidget 3 10,00 30,00\nTotal 30,00")

	assert.Equal(t, invoice.SourceFallbackRegex, result.Source)
	assert.Contains(t, result.Error, "connection refused")
	assert.Nil(t, result.Invoice)
	require.NotNil(t, result.Fallback)

	assert.Equal(t, "42", result.Fallback.InvoiceNumber)
	assert.Equal(t, "30,00", result.Fallback.TotalAmount)
	require.Len(t, result.Fallback.Products, 1)
	assert.Equal(t, "Widget", result.Fallback.Products[0].Description)
}

func TestParseInvoiceTextFallbackOnBadJSON(t *testing.T) {
	e := invoice.NewExtractor(&stubModel{response: "I could not read this invoice, sorry."})

	result := e.ParseInvoiceText(context.Background(), "some text")

	assert.Equal(t, invoice.SourceFallbackRegex, result.Source)
	assert.Contains(t, result.Error, "schema validation failed")
}

func TestParseInvoiceTextFallbackOnSchemaViolation(t *testing.T) {
	// Valid JSON, but the schema demands an invoice_number.
	e := invoice.NewExtractor(&stubModel{response: `{"customer": "ACME", "invoice_number": ""}`})

	result := e.ParseInvoiceText(context.Background(), "some text")

	assert.Equal(t, invoice.SourceFallbackRegex, result.Source)
	assert.Contains(t, result.Error, "missing invoice_number")
}

func TestParseInvoiceTextFallbackOnUnknownFields(t *testing.T) {
	e := invoice.NewExtractor(&stubModel{response: `{"invoice_number": "1", "surprise": true}`})

	result := e.ParseInvoiceText(context.Background(), "some text")
	assert.Equal(t, invoice.SourceFallbackRegex, result.Source)
}

func TestParseInvoiceTextNeverErrors(t *testing.T) {
	e := invoice.NewExtractor(nil)

	for _, text := range []string{"", "plain text", "ΤΙΜΟΛΟΓΙΟ № 15\nΣΥΝΟΛΟ 1.025,00"} {
		result := e.ParseInvoiceText(context.Background(), text)
		assert.Equal(t, invoice.SourceFallbackRegex, result.Source)
		assert.NotEmpty(t, result.Error)
		assert.NotNil(t, result.Fallback)
	}
}
