// Package mock provides an in-memory implementation of docstore.Index for
// tests.
//
// Unlike a pure call recorder, Index actually stores chunks and answers
// searches with exact cosine distance, so knowledge-base tests can exercise
// real retrieval ordering without a PostgreSQL instance. Error injection
// fields allow failure-path testing.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/MrWong99/creativemate/pkg/docstore"
)

// Compile-time interface check.
var _ docstore.Index = (*Index)(nil)

// Index is an in-memory mock implementation of docstore.Index.
type Index struct {
	mu     sync.Mutex
	chunks map[string]docstore.Chunk // keyed by chunk ID

	// UpsertErr, if non-nil, is returned by UpsertChunks without storing
	// anything.
	UpsertErr error

	// SearchErr, if non-nil, is returned by Search.
	SearchErr error

	// ReadyErr is returned by Ready.
	ReadyErr error

	// Closed is set to true by Close.
	Closed bool

	// UpsertCalls counts invocations of UpsertChunks.
	UpsertCalls int

	// SearchCalls counts invocations of Search.
	SearchCalls int
}

// New returns an empty in-memory index.
func New() *Index {
	return &Index{chunks: map[string]docstore.Chunk{}}
}

// UpsertChunks implements docstore.Index.
func (i *Index) UpsertChunks(_ context.Context, chunks []docstore.Chunk) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.UpsertCalls++
	if i.UpsertErr != nil {
		return i.UpsertErr
	}
	if i.chunks == nil {
		i.chunks = map[string]docstore.Chunk{}
	}
	for _, c := range chunks {
		i.chunks[c.ID] = c
	}
	return nil
}

// Search implements docstore.Index using exact cosine distance over all
// stored chunks in the collection.
func (i *Index) Search(_ context.Context, collection string, embedding []float32, topK int) ([]docstore.SearchResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.SearchCalls++
	if i.SearchErr != nil {
		return nil, i.SearchErr
	}

	results := []docstore.SearchResult{}
	for _, c := range i.chunks {
		if c.Collection != collection {
			continue
		}
		results = append(results, docstore.SearchResult{
			Chunk:    c,
			Distance: cosineDistance(embedding, c.Embedding),
		})
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Distance != results[b].Distance {
			return results[a].Distance < results[b].Distance
		}
		// Stable tie-break so identical queries return identical order.
		return results[a].Chunk.ID < results[b].Chunk.ID
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Ready implements docstore.Index.
func (i *Index) Ready(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ReadyErr
}

// Close implements docstore.Index.
func (i *Index) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Closed = true
}

// Len returns the number of stored chunks.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.chunks)
}

// cosineDistance returns 1 − cosine similarity of a and b. Mismatched or
// zero-length vectors yield the maximum distance of 1.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
