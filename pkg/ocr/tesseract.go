package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

type TesseractConfig struct {
	Binary    string
	Languages string
	DPI       int
}

// Tesseract is the local OCR engine: pdftoppm rasterization plus the
// tesseract binary. Deterministic and offline, it wins score ties.
type Tesseract struct {
	config TesseractConfig
}

func NewTesseract(config TesseractConfig) *Tesseract {
	if config.Binary == "" {
		config.Binary = "tesseract"
	}
	if config.Languages == "" {
		config.Languages = "ell+eng"
	}
	if config.DPI == 0 {
		config.DPI = 200
	}

	return &Tesseract{config: config}
}

func (t *Tesseract) Name() string {
	return "tesseract"
}

func (t *Tesseract) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docpipe-ocr-*.img")
	if err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	tmp.Close()

	return t.runTesseract(ctx, tmp.Name())
}

func (t *Tesseract) RecognizePDF(ctx context.Context, path string) (string, error) {
	pages, err := pageCount(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for page := 1; page <= pages; page++ {
		image, err := rasterizePage(ctx, path, page, t.config.DPI)
		if err != nil {
			return "", err
		}

		text, err := t.RecognizeImage(ctx, image)
		if err != nil {
			return "", err
		}

		b.WriteString("\n")
		b.WriteString(text)
	}

	return b.String(), nil
}

func (t *Tesseract) runTesseract(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, t.config.Binary, path, "stdout", "-l", t.config.Languages)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return out.String(), nil
}

// pageCount reads the page total from the PDF structure without
// rasterizing anything.
func pageCount(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}

// rasterizePage renders one PDF page to PNG bytes with pdftoppm.
func rasterizePage(ctx context.Context, path string, page, dpi int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "docpipe-raster")
	if err != nil {
		return nil, fmt.Errorf("failed to stage page render: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		path, prefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %d: %w: %s", page, err, strings.TrimSpace(stderr.String()))
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no output for page %d", page)
	}

	return os.ReadFile(matches[0])
}
