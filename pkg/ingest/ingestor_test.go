package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainteg/docpipe/internal/models"
	"github.com/ainteg/docpipe/pkg/ingest"
)

// fakeEmbedder hashes text into a small deterministic vector. failSubstring
// makes chunks containing it fail, to exercise the drop path.
type fakeEmbedder struct {
	failSubstring string
	calls         int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failSubstring != "" && strings.Contains(text, f.failSubstring) {
		return nil, errors.New("provider unavailable")
	}

	vec := make([]float32, 8)
	for i, r := range text {
		vec[(i+int(r))%8]++
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// memStore is an in-memory stand-in for the pgvector store with real cosine
// ranking.
type memStore struct {
	collections map[string]map[string]models.ChunkRecord
}

func newMemStore() *memStore {
	return &memStore{collections: map[string]map[string]models.ChunkRecord{}}
}

func (m *memStore) GetOrCreateCollection(ctx context.Context, name string) error {
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = map[string]models.ChunkRecord{}
	}
	return nil
}

func (m *memStore) Upsert(ctx context.Context, collection string, rec models.ChunkRecord) error {
	m.GetOrCreateCollection(ctx, collection)
	m.collections[collection][rec.ID] = rec
	return nil
}

func (m *memStore) AddBatch(ctx context.Context, collection string, recs []models.ChunkRecord) (int, error) {
	for _, rec := range recs {
		if err := m.Upsert(ctx, collection, rec); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

func (m *memStore) Query(ctx context.Context, collection string, embedding []float32, topK int) ([]models.SearchResult, error) {
	results := []models.SearchResult{}
	for _, rec := range m.collections[collection] {
		results = append(results, models.SearchResult{
			ID:       rec.ID,
			Text:     rec.Text,
			Metadata: rec.Metadata,
			Distance: cosineDistance(embedding, rec.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *memStore) DeleteCollection(ctx context.Context, name string) error {
	delete(m.collections, name)
	return nil
}

func (m *memStore) Close() {}

func cosineDistance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

func TestAddDocumentAndSearch(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newMemStore()
	ing := ingest.NewWithConfig(ingest.IngestorConfig{ChunkSize: 1000, ChunkOverlap: 200}, emb, store)

	// 2500 characters of varied text -> windows at 0, 800, 1600, 2400.
	var b strings.Builder
	for b.Len() < 2500 {
		fmt.Fprintf(&b, "sentence %d about embeddings and retrieval. ", b.Len())
	}
	text := b.String()[:2500]

	meta := models.Metadata{Filename: "guide.txt", DocType: models.DocTypeGeneral}
	result, err := ing.AddDocument(context.Background(), text, meta, "general")
	require.NoError(t, err)

	assert.Equal(t, "added", result.Status)
	assert.Equal(t, 4, result.Chunks)
	assert.Len(t, store.collections["general"], 4)

	// Querying with the literal text of chunk 1 must rank its id on top.
	chunk1 := string([]rune(text)[800:1800])
	hits, err := ing.Search(context.Background(), chunk1, "general", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	assert.Contains(t, ids, result.DocID+"_1")
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	assert.Equal(t, "guide.txt", hits[0].Metadata.Filename)
}

func TestAddDocumentDropsFailedChunks(t *testing.T) {
	// Five chunks; two contain the poison marker and fail to embed.
	emb := &fakeEmbedder{failSubstring: "POISON"}
	store := newMemStore()
	ing := ingest.NewWithConfig(ingest.IngestorConfig{ChunkSize: 10, ChunkOverlap: 2}, emb, store)

	text := "aaaaaaaa" + "POISON" + "bbbbbbbbbbbb" + "POISON" + "cccccc"
	chunksWanted := 5 // 38 chars, size 10, step 8

	meta := models.Metadata{Filename: "flaky.txt", DocType: models.DocTypeGeneral}
	result, err := ing.AddDocument(context.Background(), text, meta, "general")
	require.NoError(t, err)

	assert.Equal(t, "added", result.Status)
	assert.Equal(t, chunksWanted-2, result.Chunks)
	assert.Len(t, store.collections["general"], 3)
}

func TestAddDocumentAllChunksFail(t *testing.T) {
	emb := &fakeEmbedder{failSubstring: "a"}
	store := newMemStore()
	ing := ingest.NewWithConfig(ingest.IngestorConfig{ChunkSize: 10, ChunkOverlap: 2}, emb, store)

	meta := models.Metadata{Filename: "dead.txt", DocType: models.DocTypeGeneral}
	_, err := ing.AddDocument(context.Background(), strings.Repeat("a", 30), meta, "general")

	assert.ErrorIs(t, err, ingest.ErrNoChunksStored)
	assert.Empty(t, store.collections["general"])
}

func TestAddDocumentTruncatesAndCaps(t *testing.T) {
	emb := &fakeEmbedder{}
	store := newMemStore()
	ing := ingest.NewWithConfig(ingest.IngestorConfig{
		ChunkSize:     10,
		ChunkOverlap:  2,
		MaxTextLength: 100,
		MaxChunks:     5,
	}, emb, store)

	meta := models.Metadata{Filename: "big.txt", DocType: models.DocTypeGeneral}
	result, err := ing.AddDocument(context.Background(), strings.Repeat("x", 10_000), meta, "general")
	require.NoError(t, err)

	// 100 runes would chunk into 13 windows; the cap keeps the first 5.
	assert.Equal(t, 5, result.Chunks)
	assert.Equal(t, 5, emb.calls)
}

func TestAddDocumentRejectsBadMetadata(t *testing.T) {
	ing := ingest.NewWithConfig(ingest.IngestorConfig{}, &fakeEmbedder{}, newMemStore())

	_, err := ing.AddDocument(context.Background(), "text",
		models.Metadata{DocType: models.DocTypeGeneral}, "general")
	assert.ErrorIs(t, err, ingest.ErrInvalidMetadata)

	_, err = ing.AddDocument(context.Background(), "text",
		models.Metadata{Filename: "a.txt", DocType: "spreadsheet"}, "general")
	assert.ErrorIs(t, err, ingest.ErrInvalidMetadata)
}

func TestSearchEmptyQuery(t *testing.T) {
	ing := ingest.NewWithConfig(ingest.IngestorConfig{}, &fakeEmbedder{}, newMemStore())

	_, err := ing.Search(context.Background(), "   ", "general", 3)
	assert.ErrorIs(t, err, ingest.ErrEmptyQuery)
}

func TestSearchEmptyCollection(t *testing.T) {
	store := newMemStore()
	store.GetOrCreateCollection(context.Background(), "general")
	ing := ingest.NewWithConfig(ingest.IngestorConfig{}, &fakeEmbedder{}, store)

	hits, err := ing.Search(context.Background(), "anything", "general", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
