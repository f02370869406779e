package app_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/creativemate/internal/app"
	"github.com/MrWong99/creativemate/internal/chat"
	"github.com/MrWong99/creativemate/internal/knowledge"
	"github.com/MrWong99/creativemate/internal/observe"
	storemock "github.com/MrWong99/creativemate/pkg/docstore/mock"
	embedmock "github.com/MrWong99/creativemate/pkg/provider/embeddings/mock"
	"github.com/MrWong99/creativemate/pkg/provider/llm"
	llmmock "github.com/MrWong99/creativemate/pkg/provider/llm/mock"
	sttmock "github.com/MrWong99/creativemate/pkg/provider/stt/mock"
	"github.com/MrWong99/creativemate/pkg/types"
)

type fixture struct {
	app    *app.App
	store  *storemock.Index
	llm    *llmmock.Provider
	speech *sttmock.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	log := slog.New(slog.DiscardHandler)

	store := storemock.New()
	embedder := &embedmock.Provider{EmbedBatchResult: [][]float32{{1, 0}}, EmbedResult: []float32{1, 0}}
	kb := knowledge.New(store, embedder, nil, knowledge.Config{
		Collection: "creativemate_docs", ChunkSize: 1000, ChunkOverlap: 200, TopK: 3,
	}, log, metrics)

	provider := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "hello"}}}
	speech := &sttmock.Engine{Transcript: types.Transcript{Text: "spoken words", Language: "en"}}
	pipeline := chat.NewPipeline(provider, speech, true, kb, chat.Config{}, log, metrics)

	return &fixture{
		app:    app.New(kb, pipeline, speech, true, 0, log),
		store:  store,
		llm:    provider,
		speech: speech,
	}
}

func run(t *testing.T, a *app.App, input string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	code := a.Run(context.Background(), strings.NewReader(input), &out)
	return out.String(), code
}

func TestRun_ChatRequest_StreamsEvents(t *testing.T) {
	f := newFixture(t)

	out, code := run(t, f.app, `{"prompt": "hi there"}`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, `data: {"type":"chunk","content":"hello"}`) {
		t.Errorf("output missing chunk event:\n%s", out)
	}
	if !strings.Contains(out, `data: {"type":"complete","code":0}`) {
		t.Errorf("output missing complete event:\n%s", out)
	}
}

func TestRun_IngestionRequest_PrintsResultVerbatim(t *testing.T) {
	f := newFixture(t)
	content := base64.StdEncoding.EncodeToString([]byte("A tale of two cities."))

	out, code := run(t, f.app,
		`{"document_to_ingest": {"content": "`+content+`", "filename": "tale.txt", "size": 21}}`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	want := "Successfully processed and indexed tale.txt. Added 1 text chunks to knowledge base."
	if out != want {
		t.Errorf("output = %q, want %q (verbatim, no trailing newline)", out, want)
	}
	if f.store.Len() != 1 {
		t.Errorf("store holds %d chunks, want 1", f.store.Len())
	}
}

func TestRun_IngestionTakesPrecedenceOverChat(t *testing.T) {
	f := newFixture(t)
	content := base64.StdEncoding.EncodeToString([]byte("text"))

	out, _ := run(t, f.app,
		`{"prompt": "ignored", "document_to_ingest": {"content": "`+content+`", "filename": "a.txt"}}`)

	if strings.Contains(out, "data: ") {
		t.Errorf("chat events emitted for an ingestion request:\n%s", out)
	}
	if len(f.llm.StreamCalls) != 0 {
		t.Errorf("LLM called %d times during ingestion, want 0", len(f.llm.StreamCalls))
	}
}

func TestRun_TranscriptionRequest_PrintsTranscript(t *testing.T) {
	f := newFixture(t)
	audio := base64.StdEncoding.EncodeToString([]byte("RIFF....WAVE"))

	out, code := run(t, f.app, `{"audio_to_transcribe": "`+audio+`"}`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if out != "spoken words" {
		t.Errorf("output = %q, want %q", out, "spoken words")
	}
	if len(f.speech.WAVCalls) != 1 {
		t.Errorf("TranscribeWAV called %d times, want 1", len(f.speech.WAVCalls))
	}
}

func TestRun_TranscriptionFailure_InBandMessage(t *testing.T) {
	f := newFixture(t)
	f.speech.Err = errors.New("decode failed")
	audio := base64.StdEncoding.EncodeToString([]byte("RIFF....WAVE"))

	out, code := run(t, f.app, `{"audio_to_transcribe": "`+audio+`"}`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0 for in-band failure", code)
	}
	if out != "Transcription error: decode failed" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_TranscriptionWithoutEngine(t *testing.T) {
	a := app.New(nil, nil, nil, false, 0, slog.New(slog.DiscardHandler))

	out, code := run(t, a, `{"audio_to_transcribe": "AAAA"}`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if out != "Whisper STT not available. Please install dependencies." {
		t.Errorf("output = %q", out)
	}
}

func TestRun_MalformedJSON_ExitCodeOne(t *testing.T) {
	f := newFixture(t)

	out, code := run(t, f.app, `{"prompt": `)

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out, "Error parsing JSON input from stdin: ") {
		t.Errorf("output = %q, want parse error message", out)
	}
}

func TestRun_ChatError_ExitCodeZero(t *testing.T) {
	f := newFixture(t)
	f.llm.StreamChunks = nil
	f.llm.StreamErr = errors.New("backend down")

	out, code := run(t, f.app, `{"prompt": "hi"}`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0 (errors are in-band events)", code)
	}
	if !strings.Contains(out, `"type":"error"`) {
		t.Errorf("output missing error event:\n%s", out)
	}
}

func TestRun_IngestionWithoutKnowledgeBase(t *testing.T) {
	a := app.New(nil, nil, nil, false, 0, slog.New(slog.DiscardHandler))

	out, code := run(t, a, `{"document_to_ingest": {"content": "AAAA", "filename": "x.txt"}}`)

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.HasPrefix(out, "Error processing document: ") {
		t.Errorf("output = %q", out)
	}
}
