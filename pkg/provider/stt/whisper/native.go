// This file contains the NativeEngine implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/creativemate/pkg/provider/stt"
	"github.com/MrWong99/creativemate/pkg/types"
)

// Compile-time assertion that NativeEngine satisfies stt.Engine.
var _ stt.Engine = (*NativeEngine)(nil)

// NativeEngine implements stt.Engine using the whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once at startup and
// shared across all transcriptions; each inference creates its own whisper
// context, so concurrent calls do not interfere.
type NativeEngine struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a NativeEngine.
type NativeOption func(*NativeEngine)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "auto" (language detection).
func WithNativeLanguage(lang string) NativeOption {
	return func(e *NativeEngine) { e.language = lang }
}

// NewNative creates a NativeEngine that loads the whisper.cpp model from the
// given file path. The caller must call Close when the engine is no longer
// needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeEngine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &NativeEngine{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model. Must be called when the engine is no
// longer needed.
func (e *NativeEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// TranscribePCM implements stt.Engine. The PCM must be sampled at 16 kHz;
// whisper.cpp accepts no other rate and this engine does not resample.
func (e *NativeEngine) TranscribePCM(ctx context.Context, pcm []byte, sampleRate, channels int) (types.Transcript, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	if sampleRate != defaultSampleRate {
		return types.Transcript{}, fmt.Errorf("whisper: unsupported sample rate %d (native engine requires %d)", sampleRate, defaultSampleRate)
	}
	samples := pcmToFloat32Mono(pcm, channels)
	return e.infer(ctx, samples)
}

// TranscribeWAV implements stt.Engine by decoding the RIFF/WAV container and
// running the contained PCM through the model.
func (e *NativeEngine) TranscribeWAV(ctx context.Context, wav []byte) (types.Transcript, error) {
	pcm, sampleRate, channels, err := decodeWAV(wav)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	return e.TranscribePCM(ctx, pcm, sampleRate, channels)
}

// TranscribeFile implements stt.Engine. Only WAV files are supported; other
// container formats require the HTTP engine, whose server carries the codecs.
func (e *NativeEngine) TranscribeFile(ctx context.Context, path string) (types.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: read file: %w", err)
	}
	return e.TranscribeWAV(ctx, data)
}

// infer runs whisper.cpp inference on float32 mono samples using a fresh
// context and returns the concatenated segment text plus the detected
// language.
func (e *NativeEngine) infer(ctx context.Context, samples []float32) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: context cancelled: %w", err)
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := e.model.NewContext()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", e.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	lang := e.language
	if lang == "auto" {
		lang = wctx.DetectedLanguage()
	}

	return types.Transcript{
		Text:     strings.Join(parts, " "),
		Language: lang,
		Duration: time.Duration(len(samples)) * time.Second / defaultSampleRate,
	}, nil
}
