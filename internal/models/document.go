package models

// Collection names the pipeline writes to. Collections are created lazily
// on first use and only removed by an explicit reset.
const (
	CollectionGeneral  = "general"
	CollectionInvoices = "invoices"
)

// DocType values allowed in chunk metadata.
const (
	DocTypeGeneral = "general"
	DocTypeInvoice = "invoice"
)

// Metadata is the fixed, primitive-typed metadata schema attached to every
// stored chunk. Vector backends reject nested values, so this stays flat.
type Metadata struct {
	Filename string
	DocType  string
}

// ChunkRecord is the unit of storage: one embedded chunk of one document.
// A document exists only as the set of records sharing a Filename.
type ChunkRecord struct {
	ID        string
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// SearchResult is one ranked hit from a nearest-neighbor query. Distance is
// the store's cosine distance; lower is closer.
type SearchResult struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float32
}
