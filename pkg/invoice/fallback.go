package invoice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Tried in fixed priority order; the first matching pattern wins.
	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ΤΙΜ(?:\.)?\s*№?\s*(\d+)`),
		regexp.MustCompile(`(?i)ΤΙΜΟΛΟΓΙΟ\s*№?\s*(\d+)`),
		regexp.MustCompile(`(?i)INV\s*(\d+)`),
		regexp.MustCompile(`(?i)Invoice\s*(\d+)`),
	}

	// Currency amounts: '.' groups thousands, ',' separates decimals.
	amountPattern = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}`)

	// description, quantity, unit price, line total. Lines that do not carry
	// all four fields are skipped; there is no partial-line recovery.
	productLinePattern = regexp.MustCompile(`(.*?) +(\d+) +(\d+(?:,\d{2})?) +(\d+(?:,\d{2})?)`)

	horizontalSpace = regexp.MustCompile(`[ \t]+`)
)

// regexFallback extracts what it can from raw OCR text without any model.
// Amounts appear in reading order, so the last one is taken as the total.
func regexFallback(text string) *FallbackInvoice {
	t := horizontalSpace.ReplaceAllString(text, " ")
	lines := strings.Split(t, "\n")

	result := &FallbackInvoice{}

	// Supplier: first all-uppercase line of meaningful length near the top.
	head := lines
	if len(head) > 10 {
		head = head[:10]
	}
	for _, line := range head {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 3 && isUpperLine(trimmed) {
			result.Supplier = trimmed
			break
		}
	}

	for _, p := range invoiceNumberPatterns {
		if m := p.FindStringSubmatch(t); m != nil {
			result.InvoiceNumber = m[1]
			break
		}
	}

	if amounts := amountPattern.FindAllString(t, -1); len(amounts) > 0 {
		result.TotalAmount = amounts[len(amounts)-1]
	}

	for _, line := range lines {
		if m := productLinePattern.FindStringSubmatch(line); m != nil {
			result.Products = append(result.Products, FallbackLine{
				Description: strings.TrimSpace(m[1]),
				Quantity:    m[2],
				UnitPrice:   m[3],
				LineTotal:   m[4],
			})
		}
	}

	return result
}

// isUpperLine reports whether the line has at least one letter and no
// lowercase ones.
func isUpperLine(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}
