// Package postgres provides a PostgreSQL/pgvector-backed implementation of the
// docstore.Index interface.
//
// The pgvector extension must be available in the target database; [Migrate]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS and creates the
// document_chunks table with an HNSW index for fast approximate
// nearest-neighbour search.
//
// Usage:
//
//	idx, err := postgres.NewIndex(ctx, dsn, 768)
//	if err != nil { … }
//	defer idx.Close()
//
//	_ = idx.UpsertChunks(ctx, chunks)
//	results, _ := idx.Search(ctx, "creativemate_docs", queryVec, 3)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/creativemate/pkg/docstore"
)

// Compile-time interface check.
var _ docstore.Index = (*Index)(nil)

// Index is the PostgreSQL-backed vector document store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Index struct {
	pool *pgxpool.Pool
}

// NewIndex creates a new Index, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure the table and extension exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to produce [docstore.Chunk.Embedding] values (e.g., 768 for
// nomic-embed-text). Changing this value after the first migration requires a
// manual schema change.
func NewIndex(ctx context.Context, dsn string, embeddingDimensions int) (*Index, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres docstore: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres docstore: migrate: %w", err)
	}

	return &Index{pool: pool}, nil
}

// UpsertChunks implements [docstore.Index]. All chunks are written in a single
// transaction; on error nothing is persisted.
func (i *Index) UpsertChunks(ctx context.Context, chunks []docstore.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const q = `
		INSERT INTO document_chunks
		    (id, collection, content, embedding, source_filename, page, document_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    collection      = EXCLUDED.collection,
		    content         = EXCLUDED.content,
		    embedding       = EXCLUDED.embedding,
		    source_filename = EXCLUDED.source_filename,
		    page            = EXCLUDED.page,
		    document_type   = EXCLUDED.document_type`

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres docstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		vec := pgvector.NewVector(c.Embedding)
		if _, err := tx.Exec(ctx, q,
			c.ID,
			c.Collection,
			c.Content,
			vec,
			c.SourceFilename,
			c.Page,
			c.DocumentType,
		); err != nil {
			return fmt.Errorf("postgres docstore: upsert chunk %q: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres docstore: commit: %w", err)
	}
	return nil
}

// Search implements [docstore.Index]. Results are ordered by ascending cosine
// distance (most similar first).
func (i *Index) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]docstore.SearchResult, error) {
	const q = `
		SELECT id, collection, content, embedding, source_filename, page, document_type,
		       embedding <=> $1 AS distance
		FROM   document_chunks
		WHERE  collection = $2
		ORDER  BY distance
		LIMIT  $3`

	queryVec := pgvector.NewVector(embedding)

	rows, err := i.pool.Query(ctx, q, queryVec, collection, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (docstore.SearchResult, error) {
		var (
			sr  docstore.SearchResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&sr.Chunk.ID,
			&sr.Chunk.Collection,
			&sr.Chunk.Content,
			&vec,
			&sr.Chunk.SourceFilename,
			&sr.Chunk.Page,
			&sr.Chunk.DocumentType,
			&sr.Distance,
		); err != nil {
			return docstore.SearchResult{}, err
		}
		sr.Chunk.Embedding = vec.Slice()
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres docstore: scan rows: %w", err)
	}
	if results == nil {
		results = []docstore.SearchResult{}
	}
	return results, nil
}

// Ready implements [docstore.Index] by pinging the database.
func (i *Index) Ready(ctx context.Context) error {
	if err := i.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres docstore: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
func (i *Index) Close() {
	i.pool.Close()
}

// ddl returns the document_chunks DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddl(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS document_chunks (
    id              TEXT  PRIMARY KEY,
    collection      TEXT  NOT NULL,
    content         TEXT  NOT NULL,
    embedding       vector(%d),
    source_filename TEXT  NOT NULL DEFAULT '',
    page            INT   NOT NULL DEFAULT 0,
    document_type   TEXT  NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_document_chunks_collection
    ON document_chunks (collection);

CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding
    ON document_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the document_chunks table and the pgvector
// extension exist. It is idempotent and safe to call on every application
// start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 768 for nomic-embed-text). Changing this value after the
// first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddl(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres docstore: migrate: %w", err)
	}
	return nil
}
