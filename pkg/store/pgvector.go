package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ainteg/docpipe/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	VectorDim  int
	BatchSize  int
}

// VectorStore persists (id, text, metadata, embedding) tuples partitioned by
// collection name in Postgres with pgvector. The pool is safe for concurrent
// use; the store adds no locking of its own.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	_, err = vs.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create collections table: %v", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
			id TEXT NOT NULL,
			content TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			doc_type TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			PRIMARY KEY (collection, id)
		)`, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createChunks)
	if err != nil {
		return fmt.Errorf("failed to create chunks table: %v", err)
	}

	// Create vector index
	_, err = vs.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS chunks_embedding_idx
		ON chunks
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// GetOrCreateCollection registers a collection name. Repeated calls with the
// same name are no-ops; the call never errors because the name exists.
func (vs *VectorStore) GetOrCreateCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("collection name must not be empty")
	}

	_, err := vs.pool.Exec(ctx,
		"INSERT INTO collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name)
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %v", name, err)
	}
	return nil
}

const upsertStmt = `
	INSERT INTO chunks (collection, id, content, filename, doc_type, embedding)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (collection, id) DO UPDATE SET
		content = EXCLUDED.content,
		filename = EXCLUDED.filename,
		doc_type = EXCLUDED.doc_type,
		embedding = EXCLUDED.embedding`

// Upsert writes one record with overwrite-by-id semantics: after the call
// exactly one record exists for (collection, id).
func (vs *VectorStore) Upsert(ctx context.Context, collection string, rec models.ChunkRecord) error {
	if err := vs.GetOrCreateCollection(ctx, collection); err != nil {
		return err
	}

	_, err := vs.pool.Exec(ctx, upsertStmt,
		collection,
		rec.ID,
		sanitizeUTF8(rec.Text),
		sanitizeUTF8(rec.Metadata.Filename),
		rec.Metadata.DocType,
		pgvector.NewVector(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %v", rec.ID, err)
	}
	return nil
}

// AddBatch upserts all records in one transaction and reports how many went
// in. Filtering out records that failed upstream (e.g. embedding errors) is
// the caller's job; here the batch commits or fails as a whole.
func (vs *VectorStore) AddBatch(ctx context.Context, collection string, recs []models.ChunkRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	if err := vs.GetOrCreateCollection(ctx, collection); err != nil {
		return 0, err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recs {
		_, err := tx.Exec(ctx, upsertStmt,
			collection,
			rec.ID,
			sanitizeUTF8(rec.Text),
			sanitizeUTF8(rec.Metadata.Filename),
			rec.Metadata.DocType,
			pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %s: %v", rec.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %v", err)
	}

	return len(recs), nil
}

// Query returns the topK nearest records by cosine distance. An empty or
// unknown collection yields an empty result, not an error.
func (vs *VectorStore) Query(ctx context.Context, collection string, embedding []float32, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	query := `
		SELECT id, content, filename, doc_type, embedding <=> $2 AS distance
		FROM chunks
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	rows, err := vs.pool.Query(ctx, query, collection, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	results := []models.SearchResult{}
	for rows.Next() {
		var res models.SearchResult
		err := rows.Scan(
			&res.ID,
			&res.Text,
			&res.Metadata.Filename,
			&res.Metadata.DocType,
			&res.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading rows: %v", err)
	}

	return results, nil
}

// DeleteCollection removes a collection and all of its chunks. Deleting a
// collection that does not exist is a no-op.
func (vs *VectorStore) DeleteCollection(ctx context.Context, name string) error {
	_, err := vs.pool.Exec(ctx, "DELETE FROM collections WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete collection %q: %v", name, err)
	}
	return nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
