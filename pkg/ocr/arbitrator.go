package ocr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ainteg/docpipe/internal/types"
)

// ErrUnusableText reports that neither engine produced text above the usable
// length threshold. The input was read, but nothing worth indexing came out.
var ErrUnusableText = errors.New("ocr: text below usable length")

type ArbitratorConfig struct {
	// EngineTimeout bounds each engine call; a timed-out engine counts as
	// having produced nothing.
	EngineTimeout time.Duration
	// MinTextLength is the usable-length threshold in runes, applied to the
	// winning text after trimming.
	MinTextLength int
}

// Result is the arbitration outcome: the winning text, which engine produced
// it, and both plausibility scores.
type Result struct {
	Text   string
	Engine string
	ScoreA float64
	ScoreB float64
}

// Arbitrator races two OCR engines over the same input, scores both outputs
// and keeps the strictly better one. Ties go to engine A, the local engine
// that costs nothing to run. A failing engine never blocks arbitration; it
// just scores zero.
type Arbitrator struct {
	engineA types.OCREngine
	engineB types.OCREngine
	config  ArbitratorConfig
}

func NewArbitrator(engineA, engineB types.OCREngine, config ArbitratorConfig) *Arbitrator {
	if config.EngineTimeout == 0 {
		config.EngineTimeout = 120 * time.Second
	}
	if config.MinTextLength == 0 {
		config.MinTextLength = 20
	}

	return &Arbitrator{
		engineA: engineA,
		engineB: engineB,
		config:  config,
	}
}

// RecognizeImage arbitrates over a single raster image.
func (ar *Arbitrator) RecognizeImage(ctx context.Context, image []byte) (Result, error) {
	return ar.arbitrate(ctx, func(ctx context.Context, e types.OCREngine) (string, error) {
		return e.RecognizeImage(ctx, image)
	})
}

// RecognizePDF arbitrates over every page of a PDF file.
func (ar *Arbitrator) RecognizePDF(ctx context.Context, path string) (Result, error) {
	return ar.arbitrate(ctx, func(ctx context.Context, e types.OCREngine) (string, error) {
		return e.RecognizePDF(ctx, path)
	})
}

// Recognize dispatches on the input kind.
func (ar *Arbitrator) Recognize(ctx context.Context, path string, isPDF bool, image []byte) (Result, error) {
	if isPDF {
		return ar.RecognizePDF(ctx, path)
	}
	return ar.RecognizeImage(ctx, image)
}

func (ar *Arbitrator) arbitrate(ctx context.Context, run func(context.Context, types.OCREngine) (string, error)) (Result, error) {
	engines := []types.OCREngine{ar.engineA, ar.engineB}
	texts := make([]string, len(engines))

	// Both engines run independently; scoring is the join point.
	var wg sync.WaitGroup
	for i, engine := range engines {
		wg.Add(1)
		go func(i int, engine types.OCREngine) {
			defer wg.Done()

			ectx, cancel := context.WithTimeout(ctx, ar.config.EngineTimeout)
			defer cancel()

			text, err := run(ectx, engine)
			if err != nil {
				log.Printf("ocr: engine %s failed: %v", engine.Name(), err)
				return
			}
			texts[i] = text
		}(i, engine)
	}
	wg.Wait()

	result := Result{
		Text:   texts[0],
		Engine: ar.engineA.Name(),
		ScoreA: ScoreText(texts[0]),
		ScoreB: ScoreText(texts[1]),
	}
	// Strictly greater only: on a tie the local engine's output stands.
	if result.ScoreB > result.ScoreA {
		result.Text = texts[1]
		result.Engine = ar.engineB.Name()
	}

	if got := utf8.RuneCountInString(strings.TrimSpace(result.Text)); got < ar.config.MinTextLength {
		return result, fmt.Errorf("%w: %d of %d runes", ErrUnusableText, got, ar.config.MinTextLength)
	}

	return result, nil
}
