package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexFallbackBasicInvoice(t *testing.T) {
	text := "INVOICE 42\nWidget 3 10,00 30,00\nTotal 30,00"

	got := regexFallback(text)

	assert.Equal(t, "42", got.InvoiceNumber)
	assert.Equal(t, "30,00", got.TotalAmount)
	require.Len(t, got.Products, 1)
	assert.Equal(t, FallbackLine{
		Description: "Widget",
		Quantity:    "3",
		UnitPrice:   "10,00",
		LineTotal:   "30,00",
	}, got.Products[0])
}

func TestRegexFallbackSupplier(t *testing.T) {
	text := "some header\nACME TRADING LTD\nInvoice 77\n"

	got := regexFallback(text)

	assert.Equal(t, "ACME TRADING LTD", got.Supplier)
	assert.Equal(t, "77", got.InvoiceNumber)
}

func TestRegexFallbackSupplierIgnoresShortAndLowercase(t *testing.T) {
	text := "OK\nnot upper\nabc\n"

	got := regexFallback(text)
	assert.Empty(t, got.Supplier)
}

func TestRegexFallbackGreekInvoiceNumber(t *testing.T) {
	cases := map[string]string{
		"ΤΙΜ. 123":       "123",
		"ΤΙΜ № 456":      "456",
		"ΤΙΜΟΛΟΓΙΟ № 15": "15",
		"inv 9":          "9",
	}

	for text, want := range cases {
		got := regexFallback(text)
		assert.Equal(t, want, got.InvoiceNumber, "text %q", text)
	}
}

func TestRegexFallbackPatternPriority(t *testing.T) {
	// ΤΙΜ patterns outrank the English ones when both appear.
	text := "Invoice 1\nΤΙΜ. 2\n"

	got := regexFallback(text)
	assert.Equal(t, "2", got.InvoiceNumber)
}

func TestRegexFallbackLastAmountWins(t *testing.T) {
	text := "Item 1 5,00 5,00\nItem 2 10,00 20,00\nΣΥΝΟΛΟ 1.025,00\n"

	got := regexFallback(text)
	assert.Equal(t, "1.025,00", got.TotalAmount)
}

func TestRegexFallbackSkipsPartialLines(t *testing.T) {
	text := "Widget 3 10,00 30,00\nno numbers here\nTotal 30,00\n"

	got := regexFallback(text)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Widget", got.Products[0].Description)
}

func TestRegexFallbackEmptyText(t *testing.T) {
	got := regexFallback("")

	assert.Empty(t, got.Supplier)
	assert.Empty(t, got.InvoiceNumber)
	assert.Empty(t, got.TotalAmount)
	assert.Empty(t, got.Products)
}

func TestIsUpperLine(t *testing.T) {
	assert.True(t, isUpperLine("ACME LTD"))
	assert.True(t, isUpperLine("ΕΛΛΗΝΙΚΗ ΕΤΑΙΡΕΙΑ"))
	assert.False(t, isUpperLine("Acme Ltd"))
	assert.False(t, isUpperLine("1234 - 42"))
}
