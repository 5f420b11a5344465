package invoice

// Source tags for extraction results.
const (
	SourceLLM           = "llm"
	SourceFallbackRegex = "fallback_regex"
)

// LineItem is one product row of the LLM extraction schema.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

type Totals struct {
	Subtotal   *float64 `json:"subtotal"`
	VATAmount  *float64 `json:"vat_amount"`
	GrandTotal *float64 `json:"grand_total"`
}

// Invoice is the schema the LLM must return. Nullable fields stay pointers
// so "missing" and "empty" remain distinguishable.
type Invoice struct {
	Customer      string     `json:"customer"`
	VATNumber     *string    `json:"vat_number"`
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   *string    `json:"invoice_date"`
	Series        *string    `json:"series"`
	ProductLines  []LineItem `json:"product_lines"`
	Totals        Totals     `json:"totals"`
}

// FallbackLine keeps the source formatting (comma-decimal amounts) since the
// regex path does no numeric normalization.
type FallbackLine struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// FallbackInvoice is the best-effort record the regex path produces; any
// field may be empty.
type FallbackInvoice struct {
	Supplier      string         `json:"supplier"`
	InvoiceNumber string         `json:"invoice_number"`
	TotalAmount   string         `json:"total_amount"`
	Products      []FallbackLine `json:"products"`
}

// ExtractionResult is what every parse returns: either a schema-validated
// Invoice, or a fallback record tagged with the error that triggered it.
type ExtractionResult struct {
	Source   string           `json:"source"`
	Error    string           `json:"error,omitempty"`
	Invoice  *Invoice         `json:"invoice,omitempty"`
	Fallback *FallbackInvoice `json:"fallback,omitempty"`
}
