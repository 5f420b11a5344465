package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// FromFile turns an uploaded general document into plain text. Plain text
// files decode leniently (UTF-8 with a latin-1 fallback), HTML is reduced to
// its main content, and PDFs yield their embedded text layer. Scanned
// documents with no text layer go through OCR instead, not through here.
func FromFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return fromHTML(data)
	case ".pdf":
		return fromPDF(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return decodeText(data), nil
	}
}

// decodeText accepts UTF-8 and falls back to latin-1, which never fails.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func fromHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return strings.TrimSpace(strings.Join(strings.Fields(content), " ")), nil
}

func fromPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A malformed page loses its text, not the document.
			continue
		}

		b.WriteString("\n")
		b.WriteString(text)
	}

	return strings.TrimSpace(b.String()), nil
}
