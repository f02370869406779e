// Package app wires the CreativeMate backend together and dispatches one
// request per process invocation.
//
// The frontend spawns the backend, writes a single JSON object to stdin and
// reads the result from stdout. The top-level key decides the operation:
// "document_to_ingest" runs knowledge-base ingestion, "audio_to_transcribe"
// runs standalone transcription, anything else is a chat request. Ingestion
// and transcription print their result verbatim; chat streams protocol
// events.
package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrWong99/creativemate/internal/chat"
	"github.com/MrWong99/creativemate/internal/knowledge"
	"github.com/MrWong99/creativemate/internal/protocol"
	"github.com/MrWong99/creativemate/pkg/provider/stt"
)

// sttUnavailable is printed when a transcription request arrives without a
// working speech-to-text engine.
const sttUnavailable = "Whisper STT not available. Please install dependencies."

// ingestPayload is the document attached to an ingestion request.
type ingestPayload struct {
	// Content is the base64-encoded file.
	Content string `json:"content"`

	// Filename is the original file name.
	Filename string `json:"filename"`

	// Size is the decoded file size in bytes.
	Size int64 `json:"size"`
}

// stdinRequest is the envelope read from stdin. The two operation keys take
// precedence; absent both, the embedded chat fields describe a chat request.
type stdinRequest struct {
	DocumentToIngest  *ingestPayload `json:"document_to_ingest"`
	AudioToTranscribe string         `json:"audio_to_transcribe"`

	chat.Request
}

// App is the assembled backend: one knowledge base, one chat pipeline and an
// optional speech engine.
type App struct {
	kb       *knowledge.Base
	pipeline *chat.Pipeline
	speech   stt.Engine
	speechOK bool

	// TranscriptionTimeout bounds a standalone transcription request.
	transcriptionTimeout time.Duration

	log *slog.Logger
}

// New assembles an App. kb may be nil (ingestion reports the missing store),
// and speech may be nil or speechOK false (transcription reports the missing
// engine).
func New(kb *knowledge.Base, pipeline *chat.Pipeline, speech stt.Engine, speechOK bool, transcriptionTimeout time.Duration, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		kb:                   kb,
		pipeline:             pipeline,
		speech:               speech,
		speechOK:             speechOK && speech != nil,
		transcriptionTimeout: transcriptionTimeout,
		log:                  log,
	}
}

// Run reads one JSON request from in, dispatches it and writes the result to
// out. The returned exit code is 0 for every handled request, including
// in-band failures; it is 1 only when the input is not parseable JSON or a
// handler panics.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("An unexpected error occurred: %v", r)
			a.log.Error("request handler panicked", "panic", r)
			fmt.Fprint(out, msg)
			code = 1
		}
	}()

	raw, err := io.ReadAll(in)
	if err != nil {
		msg := fmt.Sprintf("Error parsing JSON input from stdin: %s", err)
		a.log.Error("failed to read stdin", "error", err)
		fmt.Fprint(out, msg)
		return 1
	}

	var req stdinRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		msg := fmt.Sprintf("Error parsing JSON input from stdin: %s", err)
		a.log.Error("failed to parse request", "error", err)
		fmt.Fprint(out, msg)
		return 1
	}

	switch {
	case req.DocumentToIngest != nil:
		a.log.Info("processing document for knowledge-base ingestion",
			"filename", req.DocumentToIngest.Filename)
		fmt.Fprint(out, a.ingest(ctx, *req.DocumentToIngest))

	case req.AudioToTranscribe != "":
		a.log.Info("processing audio for transcription only")
		fmt.Fprint(out, a.transcribe(ctx, req.AudioToTranscribe))

	default:
		a.pipeline.Handle(ctx, req.Request, protocol.NewWriter(out))
	}
	return 0
}

// ingest runs one document ingestion and returns the result message.
func (a *App) ingest(ctx context.Context, doc ingestPayload) string {
	if a.kb == nil {
		return "Error processing document: no knowledge base configured"
	}
	return a.kb.Ingest(ctx, knowledge.Document{
		ContentBase64: doc.Content,
		Filename:      doc.Filename,
		Size:          doc.Size,
	})
}

// transcribe runs one standalone transcription and returns the transcript
// text or an in-band error message.
func (a *App) transcribe(ctx context.Context, audioBase64 string) string {
	if !a.speechOK {
		return sttUnavailable
	}

	if a.transcriptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.transcriptionTimeout)
		defer cancel()
	}

	wav, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		a.log.Error("audio transcription failed", "error", err)
		return fmt.Sprintf("Transcription error: %s", err)
	}
	transcript, err := a.speech.TranscribeWAV(ctx, wav)
	if err != nil {
		a.log.Error("audio transcription failed", "error", err)
		return fmt.Sprintf("Transcription error: %s", err)
	}

	a.log.Info("audio transcribed successfully", "language", transcript.Language)
	return transcript.Text
}
