// Package docstore defines the vector document store interface used by the
// CreativeMate knowledge base.
//
// A document store holds pre-embedded text chunks grouped into named
// collections and answers cosine-similarity searches against them. The
// canonical implementation is the PostgreSQL/pgvector store in the postgres
// subpackage; the mock subpackage provides an in-memory test double.
//
// Implementations must be safe for concurrent use.
package docstore

import "context"

// Chunk is a single pre-embedded fragment of an ingested document.
type Chunk struct {
	// ID uniquely identifies the chunk within its collection. Re-ingesting a
	// document with stable IDs replaces previous content instead of
	// duplicating it.
	ID string

	// Collection is the named group the chunk belongs to.
	Collection string

	// Content is the chunk's text.
	Content string

	// Embedding is the dense vector for Content. Its length must match the
	// dimension the store was created with.
	Embedding []float32

	// SourceFilename is the name of the document the chunk came from.
	SourceFilename string

	// Page is the 0-based page number within the source document.
	Page int

	// DocumentType describes the source format (e.g., "pdf").
	DocumentType string
}

// SearchResult pairs a stored chunk with its cosine distance from the query
// embedding. Lower distance means higher similarity.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Index is the abstraction over any vector document store.
type Index interface {
	// UpsertChunks inserts or replaces the given chunks. Chunks with IDs that
	// already exist in their collection are fully overwritten.
	UpsertChunks(ctx context.Context, chunks []Chunk) error

	// Search returns the topK chunks in collection whose embeddings are
	// closest (cosine distance) to embedding, ordered by ascending distance
	// (most similar first). An empty collection yields an empty slice, not an
	// error.
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]SearchResult, error)

	// Ready reports whether the store can serve requests. Used by the startup
	// capability probe.
	Ready(ctx context.Context) error

	// Close releases all resources held by the store.
	Close()
}
