// Package types defines the shared types used across all CreativeMate packages.
//
// These types form the lingua franca between providers, the knowledge base and
// the chat pipeline. They are intentionally minimal — each package defines its
// own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Transcript represents a speech-to-text result from an STT engine.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the ISO 639-1 code of the detected (or configured) spoken
	// language, e.g. "en". Empty when the engine does not report it.
	Language string

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// AudioFrame represents a single frame of captured audio.
// Frames are the atomic unit of transport between a capture device and the
// recorder that buffers them.
type AudioFrame struct {
	// PCM audio data, 16-bit signed little-endian.
	Data []byte

	// SampleRate in Hz (16000 for speech capture).
	SampleRate int

	// Channels: 1 for mono capture.
	Channels int

	// Timestamp marks when this frame was captured, relative to recording start.
	Timestamp time.Duration
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
