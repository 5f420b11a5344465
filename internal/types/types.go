package types

import (
	"context"

	"github.com/ainteg/docpipe/internal/models"
)

// Embedder maps text to a fixed-dimension vector. Implementations wrap a
// remote provider; calls must respect ctx cancellation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the collection-partitioned persistence contract.
// GetOrCreateCollection is idempotent; Upsert overwrites by id; Query on an
// empty collection returns an empty slice, not an error.
type VectorStore interface {
	GetOrCreateCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, rec models.ChunkRecord) error
	AddBatch(ctx context.Context, collection string, recs []models.ChunkRecord) (int, error)
	Query(ctx context.Context, collection string, embedding []float32, topK int) ([]models.SearchResult, error)
	DeleteCollection(ctx context.Context, name string) error
	Close()
}

// OCREngine turns an image or a PDF into plain text. Engines report errors;
// the arbitrator decides what a failure degrades to.
type OCREngine interface {
	Name() string
	RecognizeImage(ctx context.Context, image []byte) (string, error)
	RecognizePDF(ctx context.Context, path string) (string, error)
}
