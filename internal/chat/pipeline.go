// Package chat implements the CreativeMate conversation pipeline: voice input
// normalization, knowledge-base retrieval, deterministic conversation
// assembly and streaming response emission.
//
// A single [Pipeline.Handle] call processes one chat request end to end and
// writes the resulting protocol events through a [protocol.Writer]. All
// diagnostics go to the logger (stderr); stdout carries only protocol events.
package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/creativemate/internal/observe"
	"github.com/MrWong99/creativemate/internal/protocol"
	"github.com/MrWong99/creativemate/pkg/provider/llm"
	"github.com/MrWong99/creativemate/pkg/provider/stt"
)

// offlineNote is appended to the prompt when audio arrives but no
// speech-to-text engine is available.
const offlineNote = "\n\n[Note: Audio was received but could not be transcribed offline. Please install Whisper dependencies for offline speech-to-text.]"

// noInput is returned when a request carries neither prompt text nor images.
const noInput = "No input provided"

// Retriever supplies knowledge-base context for a query. An empty result
// means no context is attached. *knowledge.Base implements this.
type Retriever interface {
	Retrieve(ctx context.Context, query string) string
}

// Config holds the pipeline's generation settings.
type Config struct {
	// Temperature and MaxTokens are passed through to the LLM provider.
	// Zero values request provider defaults.
	Temperature float64
	MaxTokens   int

	// TranscriptionTimeout bounds one speech-to-text call during input
	// normalization.
	TranscriptionTimeout time.Duration
}

// Pipeline processes chat requests. The speech engine and retriever are
// optional; when absent the pipeline degrades the corresponding stage instead
// of failing the conversation.
type Pipeline struct {
	llm       llm.Provider
	speech    stt.Engine
	retriever Retriever
	speechOK  bool
	cfg       Config
	log       *slog.Logger
	metrics   *observe.Metrics
}

// NewPipeline creates a chat pipeline. speech may be nil (or speechOK false)
// to disable transcription, and retriever may be nil to disable
// knowledge-base context.
func NewPipeline(provider llm.Provider, speech stt.Engine, speechOK bool, retriever Retriever, cfg Config, log *slog.Logger, metrics *observe.Metrics) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Pipeline{
		llm:       provider,
		speech:    speech,
		retriever: retriever,
		speechOK:  speechOK && speech != nil,
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
	}
}

// Handle processes one chat request: normalizes voice input, emits the
// transcription event when audio was involved, retrieves knowledge-base
// context, assembles the conversation and streams the model's response as
// protocol events. It returns the full accumulated response text (or the
// error message that was emitted).
func (p *Pipeline) Handle(ctx context.Context, req Request, w *protocol.Writer) string {
	req = p.normalize(ctx, req)

	// Acknowledge voice input before anything else so the caller can show
	// the user what was understood.
	if req.HadAudio {
		if err := w.Transcription(req.Prompt); err != nil {
			p.log.Error("failed to emit transcription event", "error", err)
		}
		p.metrics.RecordEvent(ctx, string(protocol.EventTranscription))
	}

	p.log.Info("received chat request",
		"prompt", preview(req.Prompt),
		"images", len(req.Images),
		"history", len(req.Messages),
		"audio_processed", req.HadAudio,
	)

	if req.Prompt == "" && len(req.Images) == 0 {
		return noInput
	}

	var ragContext string
	if req.Prompt != "" && p.retriever != nil {
		ragContext = p.retriever.Retrieve(ctx, req.Prompt)
		if ragContext != "" {
			p.log.Info("added knowledge-base context to system prompt")
		}
	}

	messages := buildMessages(req, ragContext)
	p.log.Info("sending conversation to model", "messages", len(messages))
	for i, msg := range messages {
		p.log.Debug("conversation turn", "index", i+1, "role", msg.Role, "content", preview(msg.Content))
	}

	return p.emit(ctx, llm.CompletionRequest{
		Messages:    messages,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}, w)
}

// normalize folds voice input into the prompt. When a speech engine is
// available the audio is transcribed and merged; otherwise the prompt gains a
// note that the audio could not be processed. Either way the audio payload is
// cleared and HadAudio is set.
func (p *Pipeline) normalize(ctx context.Context, req Request) Request {
	audio := req.audio()
	if audio == "" {
		return req
	}
	if !p.speechOK {
		req.Prompt += offlineNote
		req.HadAudio = true
		req.Audio, req.AudioBuffer = "", ""
		return req
	}

	p.log.Info("processing audio input")
	text := p.transcribe(ctx, audio)
	if req.Prompt != "" {
		req.Prompt = fmt.Sprintf("%s\n\n[Voice input transcribed]: %s", req.Prompt, text)
	} else {
		req.Prompt = fmt.Sprintf("[Voice input]: %s", text)
	}
	p.log.Info("audio transcribed", "text", preview(text))

	req.HadAudio = true
	req.Audio, req.AudioBuffer = "", ""
	return req
}

// transcribe decodes and transcribes base64 WAV audio. Failures produce an
// error message in place of a transcript; the conversation still proceeds.
func (p *Pipeline) transcribe(ctx context.Context, audioBase64 string) string {
	if p.cfg.TranscriptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TranscriptionTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := p.transcribeWAV(ctx, audioBase64)
	p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.log.Error("audio transcription failed", "error", err)
		p.metrics.RecordProviderError(ctx, "stt", "transcribe")
		return fmt.Sprintf("Transcription error: %s", err)
	}
	return text
}

func (p *Pipeline) transcribeWAV(ctx context.Context, audioBase64 string) (string, error) {
	wav, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	transcript, err := p.speech.TranscribeWAV(ctx, wav)
	if err != nil {
		return "", err
	}
	p.log.Info("transcription successful", "language", transcript.Language)
	return transcript.Text, nil
}

// emit streams the completion and writes chunk events followed by exactly one
// terminal event. It returns the accumulated response text, or the emitted
// error message on failure.
func (p *Pipeline) emit(ctx context.Context, req llm.CompletionRequest, w *protocol.Writer) string {
	start := time.Now()
	stream, err := p.llm.StreamCompletion(ctx, req)
	if err != nil {
		return p.fail(ctx, w, err)
	}

	var full []byte
	for chunk := range stream {
		if chunk.FinishReason == llm.FinishReasonError {
			p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
			return p.fail(ctx, w, fmt.Errorf("%s", chunk.Text))
		}
		if chunk.Text == "" {
			continue
		}
		if err := w.Chunk(chunk.Text); err != nil {
			p.log.Error("failed to emit chunk event", "error", err)
			continue
		}
		p.metrics.RecordEvent(ctx, string(protocol.EventChunk))
		full = append(full, chunk.Text...)
	}
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())

	if err := w.Complete(); err != nil {
		p.log.Error("failed to emit complete event", "error", err)
	} else {
		p.metrics.RecordEvent(ctx, string(protocol.EventComplete))
	}
	return string(full)
}

// fail emits the error terminal event and returns its message.
func (p *Pipeline) fail(ctx context.Context, w *protocol.Writer, cause error) string {
	msg := fmt.Sprintf("An error occurred: %s. Try again later.", cause)
	p.log.Error("chat generation failed", "error", cause)
	p.metrics.RecordProviderError(ctx, "llm", "stream")

	if err := w.Error(msg); err != nil {
		p.log.Error("failed to emit error event", "error", err)
	} else {
		p.metrics.RecordEvent(ctx, string(protocol.EventError))
	}
	return msg
}
