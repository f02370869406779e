// Package stt defines the Engine interface for speech-to-text backends.
//
// An STT engine wraps a batch transcription backend (a whisper-server HTTP
// endpoint or the whisper.cpp CGO bindings) and exposes a uniform interface
// for the CreativeMate pipeline to transcribe buffered audio without coupling
// to any specific integration.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/creativemate/pkg/types"
)

// Engine is the abstraction over any batch speech-to-text backend.
//
// All methods are one-shot: the caller hands over a complete utterance and
// receives a single authoritative transcript. Implementations must propagate
// context cancellation promptly.
type Engine interface {
	// TranscribePCM transcribes raw 16-bit signed little-endian PCM audio.
	// sampleRate and channels describe the payload; engines that only accept
	// 16 kHz mono input return an error for other formats rather than
	// resampling silently.
	TranscribePCM(ctx context.Context, pcm []byte, sampleRate, channels int) (types.Transcript, error)

	// TranscribeWAV transcribes audio wrapped in a RIFF/WAV container.
	TranscribeWAV(ctx context.Context, wav []byte) (types.Transcript, error)

	// TranscribeFile transcribes the audio file at path. The file is read in
	// full before transcription; streaming from disk is not supported.
	TranscribeFile(ctx context.Context, path string) (types.Transcript, error)
}
