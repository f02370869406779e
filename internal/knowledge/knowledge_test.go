package knowledge_test

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/creativemate/internal/knowledge"
	"github.com/MrWong99/creativemate/internal/observe"
	"github.com/MrWong99/creativemate/pkg/docstore"
	storemock "github.com/MrWong99/creativemate/pkg/docstore/mock"
	embedmock "github.com/MrWong99/creativemate/pkg/provider/embeddings/mock"
)

func newBase(t *testing.T, store *storemock.Index, embedder *embedmock.Provider) *knowledge.Base {
	t.Helper()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return knowledge.New(store, embedder, nil, knowledge.Config{
		Collection:   "creativemate_docs",
		ChunkSize:    1000,
		ChunkOverlap: 200,
		TopK:         3,
	}, slog.New(slog.DiscardHandler), metrics)
}

func encode(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

func TestIngest_StoresChunksAndReportsCount(t *testing.T) {
	store := storemock.New()
	embedder := &embedmock.Provider{EmbedBatchResult: [][]float32{{1, 0}}}
	b := newBase(t, store, embedder)

	msg := b.Ingest(context.Background(), knowledge.Document{
		ContentBase64: encode("Once upon a time there was a dragon."),
		Filename:      "story.txt",
	})

	want := "Successfully processed and indexed story.txt. Added 1 text chunks to knowledge base."
	if msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d chunks, want 1", store.Len())
	}
	if len(embedder.EmbedBatchCalls) != 1 {
		t.Errorf("EmbedBatch called %d times, want 1", len(embedder.EmbedBatchCalls))
	}
}

func TestIngest_ReingestingReplacesChunks(t *testing.T) {
	store := storemock.New()
	embedder := &embedmock.Provider{EmbedBatchResult: [][]float32{{1, 0}}}
	b := newBase(t, store, embedder)

	doc := knowledge.Document{ContentBase64: encode("Same short story."), Filename: "story.txt"}
	b.Ingest(context.Background(), doc)
	b.Ingest(context.Background(), doc)

	if store.Len() != 1 {
		t.Errorf("store holds %d chunks after re-ingest, want 1", store.Len())
	}
}

func TestIngest_InvalidBase64(t *testing.T) {
	b := newBase(t, storemock.New(), &embedmock.Provider{})

	msg := b.Ingest(context.Background(), knowledge.Document{
		ContentBase64: "not base64 at all!!!",
		Filename:      "story.txt",
	})
	if !strings.HasPrefix(msg, "Error processing document: ") {
		t.Errorf("message = %q, want error prefix", msg)
	}
}

func TestIngest_BinaryContentRejected(t *testing.T) {
	b := newBase(t, storemock.New(), &embedmock.Provider{})

	msg := b.Ingest(context.Background(), knowledge.Document{
		ContentBase64: base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00, 0x01}),
		Filename:      "novel.pdf",
	})
	if !strings.HasPrefix(msg, "Error processing document: ") {
		t.Errorf("message = %q, want error prefix", msg)
	}
}

func TestIngest_EmbedFailure(t *testing.T) {
	store := storemock.New()
	embedder := &embedmock.Provider{EmbedBatchErr: errors.New("model not loaded")}
	b := newBase(t, store, embedder)

	msg := b.Ingest(context.Background(), knowledge.Document{
		ContentBase64: encode("Some text."),
		Filename:      "story.txt",
	})
	if !strings.Contains(msg, "model not loaded") {
		t.Errorf("message = %q, want embed error mentioned", msg)
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d chunks after failed embed, want 0", store.Len())
	}
}

func TestIngest_UpsertFailure(t *testing.T) {
	store := storemock.New()
	store.UpsertErr = errors.New("connection reset")
	b := newBase(t, store, &embedmock.Provider{EmbedBatchResult: [][]float32{{1}}})

	msg := b.Ingest(context.Background(), knowledge.Document{
		ContentBase64: encode("Some text."),
		Filename:      "story.txt",
	})
	if !strings.Contains(msg, "connection reset") {
		t.Errorf("message = %q, want store error mentioned", msg)
	}
}

func TestIngest_NilStore(t *testing.T) {
	metrics, _ := observe.NewMetrics(sdkmetric.NewMeterProvider())
	b := knowledge.New(nil, &embedmock.Provider{}, nil, knowledge.Config{
		Collection: "creativemate_docs", ChunkSize: 1000, ChunkOverlap: 200, TopK: 3,
	}, slog.New(slog.DiscardHandler), metrics)

	msg := b.Ingest(context.Background(), knowledge.Document{
		ContentBase64: encode("Some text."),
		Filename:      "story.txt",
	})
	if !strings.HasPrefix(msg, "Error processing document: ") {
		t.Errorf("message = %q, want error prefix", msg)
	}
}

// pagedParser fakes a multi-page binary parser (a PDF parser would plug in
// the same way).
type pagedParser struct {
	pages []knowledge.Page
}

func (p pagedParser) Parse(_ context.Context, _ []byte, _ string) ([]knowledge.Page, error) {
	return p.pages, nil
}

func TestIngest_InjectedParserCarriesPageMetadata(t *testing.T) {
	store := storemock.New()
	embedder := &embedmock.Provider{}
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	parser := pagedParser{pages: []knowledge.Page{
		{Number: 0, Text: "First page about dragons."},
		{Number: 1, Text: "Second page about unicorns."},
	}}
	b := knowledge.New(store, embedder, parser, knowledge.Config{
		Collection: "creativemate_docs", ChunkSize: 1000, ChunkOverlap: 200, TopK: 3,
	}, slog.New(slog.DiscardHandler), metrics)

	msg := b.Ingest(context.Background(), knowledge.Document{
		ContentBase64: base64.StdEncoding.EncodeToString([]byte{0x25, 0x50, 0x44, 0x46}),
		Filename:      "bestiary.pdf",
	})

	want := "Successfully processed and indexed bestiary.pdf. Added 2 text chunks to knowledge base."
	if msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}

	results, err := store.Search(context.Background(), "creativemate_docs", nil, -1)
	if err != nil {
		t.Fatal(err)
	}
	pages := map[int]bool{}
	for _, res := range results {
		c := res.Chunk
		if c.DocumentType != "pdf" {
			t.Errorf("chunk %s document type = %q, want pdf", c.ID, c.DocumentType)
		}
		if c.SourceFilename != "bestiary.pdf" {
			t.Errorf("chunk %s source = %q", c.ID, c.SourceFilename)
		}
		pages[c.Page] = true
	}
	if !pages[0] || !pages[1] {
		t.Errorf("pages covered = %v, want 0 and 1", pages)
	}
}

func TestRetrieve_FormatsHits(t *testing.T) {
	store := storemock.New()
	err := store.UpsertChunks(context.Background(), []docstore.Chunk{
		{ID: "a", Collection: "creativemate_docs", Content: "Dragons breathe fire.",
			Embedding: []float32{1, 0}, SourceFilename: "bestiary.txt", Page: 2},
		{ID: "b", Collection: "creativemate_docs", Content: "Unicorns are shy.",
			Embedding: []float32{0, 1}, SourceFilename: "bestiary.txt", Page: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	embedder := &embedmock.Provider{EmbedResult: []float32{1, 0}}
	b := newBase(t, store, embedder)

	got := b.Retrieve(context.Background(), "tell me about dragons")

	if !strings.HasPrefix(got, "[Document: bestiary.txt, Page: 2]\nDragons breathe fire.") {
		t.Errorf("context does not lead with the closest chunk:\n%s", got)
	}
	if !strings.Contains(got, "\n\n[Document: bestiary.txt, Page: 5]\nUnicorns are shy.") {
		t.Errorf("context missing second chunk:\n%s", got)
	}
}

func TestRetrieve_EmptyStoreReturnsEmpty(t *testing.T) {
	b := newBase(t, storemock.New(), &embedmock.Provider{EmbedResult: []float32{1}})
	if got := b.Retrieve(context.Background(), "anything"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRetrieve_NilStoreReturnsEmpty(t *testing.T) {
	metrics, _ := observe.NewMetrics(sdkmetric.NewMeterProvider())
	b := knowledge.New(nil, &embedmock.Provider{}, nil, knowledge.Config{
		Collection: "creativemate_docs", ChunkSize: 1000, ChunkOverlap: 200, TopK: 3,
	}, slog.New(slog.DiscardHandler), metrics)

	if got := b.Retrieve(context.Background(), "anything"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRetrieve_SearchErrorReturnsEmpty(t *testing.T) {
	store := storemock.New()
	store.SearchErr = errors.New("index offline")
	b := newBase(t, store, &embedmock.Provider{EmbedResult: []float32{1}})

	if got := b.Retrieve(context.Background(), "anything"); got != "" {
		t.Errorf("got %q, want empty on search failure", got)
	}
}

func TestRetrieve_EmbedErrorReturnsEmpty(t *testing.T) {
	store := storemock.New()
	b := newBase(t, store, &embedmock.Provider{EmbedErr: errors.New("model not loaded")})

	if got := b.Retrieve(context.Background(), "anything"); got != "" {
		t.Errorf("got %q, want empty on embed failure", got)
	}
	if store.SearchCalls != 0 {
		t.Errorf("search called %d times after embed failure, want 0", store.SearchCalls)
	}
}

func TestReady(t *testing.T) {
	store := storemock.New()
	b := newBase(t, store, &embedmock.Provider{})
	if err := b.Ready(context.Background()); err != nil {
		t.Errorf("Ready: %v", err)
	}

	store.ReadyErr = errors.New("no connection")
	if err := b.Ready(context.Background()); err == nil {
		t.Error("expected error when store is not ready")
	}
}
