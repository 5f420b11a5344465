package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ainteg/docpipe/internal/models"
	"github.com/ainteg/docpipe/internal/types"
	"github.com/ainteg/docpipe/pkg/chunker"
)

var (
	// ErrNoChunksStored means every chunk of a document failed to embed;
	// nothing was written. An empty batch is never upserted silently.
	ErrNoChunksStored = errors.New("ingest: no chunks could be embedded")

	ErrInvalidMetadata = errors.New("ingest: invalid metadata")
	ErrEmptyQuery      = errors.New("ingest: query must not be empty")
)

type IngestorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// MaxTextLength truncates oversized documents before chunking and
	// MaxChunks caps how many chunks one document may contribute. Both are
	// resource-protection policies applied here, not chunker invariants.
	MaxTextLength int
	MaxChunks     int
	TopK          int
}

// AddResult reports a successful (possibly degraded) document ingestion.
type AddResult struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
	DocID  string `json:"doc_id"`
}

// Ingestor composes chunking, embedding and the vector store into the
// add-document and search operations.
type Ingestor struct {
	config   IngestorConfig
	embedder types.Embedder
	store    types.VectorStore
}

func NewWithConfig(config IngestorConfig, embedder types.Embedder, store types.VectorStore) *Ingestor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MaxTextLength == 0 {
		config.MaxTextLength = 1_000_000
	}
	if config.MaxChunks == 0 {
		config.MaxChunks = 50
	}
	if config.TopK == 0 {
		config.TopK = 3
	}

	return &Ingestor{
		config:   config,
		embedder: embedder,
		store:    store,
	}
}

// AddDocument chunks and embeds text, then upserts the embedded chunks as a
// batch. A chunk whose embedding call fails is dropped and logged; the
// document still lands as long as at least one chunk makes it.
func (ing *Ingestor) AddDocument(ctx context.Context, text string, meta models.Metadata, collection string) (AddResult, error) {
	if err := validateMetadata(meta); err != nil {
		return AddResult{}, err
	}

	if runes := []rune(text); len(runes) > ing.config.MaxTextLength {
		text = string(runes[:ing.config.MaxTextLength])
	}

	chunks, err := chunker.Chunk(text, ing.config.ChunkSize, ing.config.ChunkOverlap)
	if err != nil {
		return AddResult{}, err
	}
	if len(chunks) > ing.config.MaxChunks {
		chunks = chunks[:ing.config.MaxChunks]
	}

	baseID := deriveBaseID(meta.Filename)

	recs := make([]models.ChunkRecord, 0, len(chunks))
	for i, chunk := range chunks {
		embedding, err := ing.embedder.Embed(ctx, chunk)
		if err != nil {
			log.Printf("ingest: dropping chunk %d of %q: %v", i, meta.Filename, err)
			continue
		}

		recs = append(recs, models.ChunkRecord{
			ID:        fmt.Sprintf("%s_%d", baseID, i),
			Text:      chunk,
			Metadata:  meta,
			Embedding: embedding,
		})
	}

	if len(recs) == 0 {
		return AddResult{}, fmt.Errorf("%w: document %q", ErrNoChunksStored, meta.Filename)
	}

	added, err := ing.store.AddBatch(ctx, collection, recs)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to store document %q: %w", meta.Filename, err)
	}

	return AddResult{Status: "added", Chunks: added, DocID: baseID}, nil
}

// Search embeds the query once and returns the store's ranked hits.
func (ing *Ingestor) Search(ctx context.Context, query, collection string, topK int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = ing.config.TopK
	}

	embedding, err := ing.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return ing.store.Query(ctx, collection, embedding, topK)
}

func validateMetadata(meta models.Metadata) error {
	if meta.Filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidMetadata)
	}
	if meta.DocType != models.DocTypeGeneral && meta.DocType != models.DocTypeInvoice {
		return fmt.Errorf("%w: doc_type %q", ErrInvalidMetadata, meta.DocType)
	}
	return nil
}

// deriveBaseID keeps chunks of one file discoverable under a common prefix.
// Hashing sidesteps non-ASCII filenames the way the store expects ids.
func deriveBaseID(filename string) string {
	sum := md5.Sum([]byte(filename))
	return hex.EncodeToString(sum[:])
}
