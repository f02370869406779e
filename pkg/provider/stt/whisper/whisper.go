// Package whisper provides local whisper.cpp-backed STT engines.
//
// Two integrations are available:
//
//   - Engine connects to a running whisper-server binary (which exposes a REST
//     API at POST /inference) and submits each utterance as a batch inference
//     request.
//   - NativeEngine (native.go) links whisper.cpp directly via the CGO bindings
//     and runs inference in-process.
//
// Both are batch transcribers: the caller hands over a complete utterance and
// receives a single authoritative transcript, including the detected spoken
// language when the model reports one.
//
// Usage:
//
//	e, err := whisper.New("http://localhost:8080", whisper.WithLanguage("auto"))
//	t, err := e.TranscribeWAV(ctx, wavBytes)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MrWong99/creativemate/pkg/provider/stt"
	"github.com/MrWong99/creativemate/pkg/types"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// audio that whisper.cpp expects.
	bitsPerSample = 16

	// defaultLanguage requests whisper's built-in language auto-detection.
	defaultLanguage = "auto"

	defaultSampleRate = 16000
	defaultTimeout    = 60 * time.Second
)

// Compile-time assertion that Engine implements stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper-server
// (e.g., "en", "de", "fr"). Defaults to "auto" (language detection).
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		e.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 60 s, which
// accommodates long recordings on modest hardware.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.httpClient.Timeout = d
		}
	}
}

// Engine implements stt.Engine backed by a local whisper-server HTTP endpoint.
// It is stateless per request and safe for concurrent use.
type Engine struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Engine that connects to the whisper-server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty. Functional
// options may be provided to override defaults.
func New(serverURL string, opts ...Option) (*Engine, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	e := &Engine{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// TranscribePCM implements stt.Engine by wrapping the raw PCM in a WAV
// container and submitting it for inference.
func (e *Engine) TranscribePCM(ctx context.Context, pcm []byte, sampleRate, channels int) (types.Transcript, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	wav := encodeWAV(pcm, sampleRate, channels)
	return e.infer(ctx, wav, "audio.wav")
}

// TranscribeWAV implements stt.Engine by submitting the WAV payload verbatim.
func (e *Engine) TranscribeWAV(ctx context.Context, wav []byte) (types.Transcript, error) {
	return e.infer(ctx, wav, "audio.wav")
}

// TranscribeFile implements stt.Engine by uploading the file at path. The
// server handles container formats beyond WAV (mp3, flac, ogg) on its own.
func (e *Engine) TranscribeFile(ctx context.Context, path string) (types.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: read file: %w", err)
	}
	return e.infer(ctx, data, filepath.Base(path))
}

// inferenceResponse is the verbose_json response body returned by the
// whisper-server /inference endpoint.
type inferenceResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// infer POSTs the audio payload to the whisper-server /inference endpoint as
// multipart/form-data and returns the parsed transcript.
func (e *Engine) infer(ctx context.Context, audio []byte, filename string) (types.Transcript, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: write audio data: %w", err)
	}

	// verbose_json includes the detected language and audio duration.
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if e.language != "" {
		if err := mw.WriteField("language", e.language); err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if e.model != "" {
		if err := mw.WriteField("model", e.model); err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := e.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result inferenceResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return types.Transcript{
		Text:     result.Text,
		Language: result.Language,
		Duration: time.Duration(result.Duration * float64(time.Second)),
	}, nil
}
