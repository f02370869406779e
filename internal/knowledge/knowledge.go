// Package knowledge implements the CreativeMate document knowledge base:
// ingesting documents into the vector store and retrieving relevant context
// for conversations.
//
// Ingestion decodes the document, extracts its text pages, splits them into
// overlapping chunks, embeds the chunks and upserts them into the store under
// deterministic IDs, so re-ingesting the same file replaces its previous
// chunks instead of duplicating them. Retrieval embeds the query, runs a
// similarity search and formats the hits into a context block for the system
// prompt.
package knowledge

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/creativemate/internal/observe"
	"github.com/MrWong99/creativemate/pkg/docstore"
	"github.com/MrWong99/creativemate/pkg/provider/embeddings"
)

const (
	// embedBatchSize is how many chunk texts are embedded per provider call.
	embedBatchSize = 32

	// embedConcurrency bounds parallel embedding calls during ingestion.
	embedConcurrency = 4
)

// Document is an ingestion request: a base64-encoded file plus its metadata.
type Document struct {
	ContentBase64 string
	Filename      string
	Size          int64
}

// Config holds the knowledge-base settings.
type Config struct {
	// Collection is the chunk collection name in the store.
	Collection string

	// ChunkSize and ChunkOverlap configure the text splitter.
	ChunkSize    int
	ChunkOverlap int

	// TopK is how many chunks a retrieval returns.
	TopK int

	// RetrievalTimeout bounds one Retrieve call (embedding plus search).
	RetrievalTimeout time.Duration
}

// Base is the knowledge-base facade. A nil store disables it: Ingest reports
// the missing store and Retrieve returns no context.
type Base struct {
	store    docstore.Index
	embedder embeddings.Provider
	parser   DocumentParser
	splitter *Splitter
	cfg      Config
	log      *slog.Logger
	metrics  *observe.Metrics
}

// New creates a knowledge base over the given store and embedding provider.
// parser may be nil, in which case the plain-text [TextParser] is used.
func New(store docstore.Index, embedder embeddings.Provider, parser DocumentParser, cfg Config, log *slog.Logger, metrics *observe.Metrics) *Base {
	if parser == nil {
		parser = TextParser{}
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Base{
		store:    store,
		embedder: embedder,
		parser:   parser,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
	}
}

// Ingest processes one document into the vector store and returns a
// human-readable result message. All failures are folded into the message;
// the caller prints it verbatim.
func (b *Base) Ingest(ctx context.Context, doc Document) string {
	start := time.Now()
	msg, err := b.ingest(ctx, doc)
	b.metrics.IngestDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.log.Error("document ingestion failed", "filename", doc.Filename, "error", err)
		return fmt.Sprintf("Error processing document: %s", err)
	}
	return msg
}

func (b *Base) ingest(ctx context.Context, doc Document) (string, error) {
	if b.store == nil {
		return "", fmt.Errorf("no vector store configured")
	}

	data, err := base64.StdEncoding.DecodeString(doc.ContentBase64)
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}

	pages, err := b.parser.Parse(ctx, data, doc.Filename)
	if err != nil {
		return "", err
	}
	b.log.Info("loaded document", "filename", doc.Filename, "pages", len(pages))

	chunks := b.chunkPages(doc.Filename, pages)
	if len(chunks) == 0 {
		return "", fmt.Errorf("document %s produced no text chunks", doc.Filename)
	}
	b.log.Info("split document into chunks", "filename", doc.Filename, "chunks", len(chunks))

	if err := b.embedChunks(ctx, chunks); err != nil {
		return "", err
	}
	if err := b.store.UpsertChunks(ctx, chunks); err != nil {
		return "", fmt.Errorf("store chunks: %w", err)
	}

	b.metrics.ChunksIngested.Add(ctx, int64(len(chunks)))
	b.log.Info("ingested document", "filename", doc.Filename, "chunks", len(chunks))
	return fmt.Sprintf("Successfully processed and indexed %s. Added %d text chunks to knowledge base.",
		doc.Filename, len(chunks)), nil
}

// chunkPages splits every page and assigns deterministic chunk IDs so that
// re-ingestion overwrites rather than duplicates.
func (b *Base) chunkPages(filename string, pages []Page) []docstore.Chunk {
	docType := documentType(filename)

	var chunks []docstore.Chunk
	for _, page := range pages {
		for i, text := range b.splitter.Split(page.Text) {
			chunks = append(chunks, docstore.Chunk{
				ID:             fmt.Sprintf("%s#p%d#%d", filename, page.Number, i),
				Collection:     b.cfg.Collection,
				Content:        text,
				SourceFilename: filename,
				Page:           page.Number,
				DocumentType:   docType,
			})
		}
	}
	return chunks
}

// embedChunks fills in the Embedding field of every chunk, batching provider
// calls and running batches concurrently.
func (b *Base) embedChunks(ctx context.Context, chunks []docstore.Chunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		batch := chunks[start:min(start+embedBatchSize, len(chunks))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}
			vecs, err := b.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks: %w", err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embed chunks: got %d embeddings for %d texts", len(vecs), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vecs[i]
			}
			return nil
		})
	}
	return g.Wait()
}

// Retrieve returns a formatted context block of the chunks most relevant to
// query, or "" when the knowledge base is disabled, empty or failing.
// Retrieval failures never fail the conversation; they only cost context.
func (b *Base) Retrieve(ctx context.Context, query string) string {
	if b.store == nil {
		return ""
	}

	if b.cfg.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.RetrievalTimeout)
		defer cancel()
	}

	start := time.Now()
	block, err := b.retrieve(ctx, query)
	b.metrics.RetrievalDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.log.Error("context retrieval failed", "error", err)
		return ""
	}
	return block
}

func (b *Base) retrieve(ctx context.Context, query string) (string, error) {
	embedding, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	results, err := b.store.Search(ctx, b.cfg.Collection, embedding, b.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		b.log.Info("no relevant documents found")
		return "", nil
	}

	parts := make([]string, len(results))
	for i, res := range results {
		source := res.Chunk.SourceFilename
		if source == "" {
			source = "Unknown"
		}
		page := "Unknown"
		if res.Chunk.Page >= 0 {
			page = fmt.Sprintf("%d", res.Chunk.Page)
		}
		parts[i] = fmt.Sprintf("[Document: %s, Page: %s]\n%s", source, page, strings.TrimSpace(res.Chunk.Content))
	}

	b.log.Info("retrieved relevant chunks", "count", len(results))
	return strings.Join(parts, "\n\n"), nil
}

// Ready reports whether the underlying store can serve requests. Used by the
// startup capability probe.
func (b *Base) Ready(ctx context.Context) error {
	if b.store == nil {
		return fmt.Errorf("knowledge: no vector store configured")
	}
	return b.store.Ready(ctx)
}

// documentType derives the stored document type from the file extension.
func documentType(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 && i < len(filename)-1 {
		return strings.ToLower(filename[i+1:])
	}
	return "unknown"
}
