// Package mock provides a test double for the stt.Engine interface.
//
// Use Engine to return pre-canned transcripts without a live whisper backend
// and to verify which audio payloads were submitted for transcription.
//
// Example:
//
//	e := &mock.Engine{
//	    Transcript: types.Transcript{Text: "hello world", Language: "en"},
//	}
//	t, _ := e.TranscribePCM(ctx, pcm, 16000, 1)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/creativemate/pkg/provider/stt"
	"github.com/MrWong99/creativemate/pkg/types"
)

// PCMCall records a single invocation of TranscribePCM.
type PCMCall struct {
	// Ctx is the context passed to TranscribePCM.
	Ctx context.Context
	// PCM is a copy of the audio payload.
	PCM []byte
	// SampleRate and Channels describe the payload.
	SampleRate int
	Channels   int
}

// WAVCall records a single invocation of TranscribeWAV.
type WAVCall struct {
	// Ctx is the context passed to TranscribeWAV.
	Ctx context.Context
	// WAV is a copy of the audio payload.
	WAV []byte
}

// FileCall records a single invocation of TranscribeFile.
type FileCall struct {
	// Ctx is the context passed to TranscribeFile.
	Ctx context.Context
	// Path is the file path argument.
	Path string
}

// Engine is a mock implementation of stt.Engine.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err to inject an error on every method.
type Engine struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Transcript is returned by every Transcribe* method.
	Transcript types.Transcript

	// Err, if non-nil, is returned as the error from every Transcribe* method.
	Err error

	// --- Call records (read after test) ---

	// PCMCalls records every invocation of TranscribePCM in order.
	PCMCalls []PCMCall

	// WAVCalls records every invocation of TranscribeWAV in order.
	WAVCalls []WAVCall

	// FileCalls records every invocation of TranscribeFile in order.
	FileCalls []FileCall
}

// TranscribePCM records the call and returns Transcript, Err.
func (e *Engine) TranscribePCM(ctx context.Context, pcm []byte, sampleRate, channels int) (types.Transcript, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	e.PCMCalls = append(e.PCMCalls, PCMCall{Ctx: ctx, PCM: cp, SampleRate: sampleRate, Channels: channels})
	if e.Err != nil {
		return types.Transcript{}, e.Err
	}
	return e.Transcript, nil
}

// TranscribeWAV records the call and returns Transcript, Err.
func (e *Engine) TranscribeWAV(ctx context.Context, wav []byte) (types.Transcript, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]byte, len(wav))
	copy(cp, wav)
	e.WAVCalls = append(e.WAVCalls, WAVCall{Ctx: ctx, WAV: cp})
	if e.Err != nil {
		return types.Transcript{}, e.Err
	}
	return e.Transcript, nil
}

// TranscribeFile records the call and returns Transcript, Err.
func (e *Engine) TranscribeFile(ctx context.Context, path string) (types.Transcript, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FileCalls = append(e.FileCalls, FileCall{Ctx: ctx, Path: path})
	if e.Err != nil {
		return types.Transcript{}, e.Err
	}
	return e.Transcript, nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.PCMCalls = nil
	e.WAVCalls = nil
	e.FileCalls = nil
}

// Ensure Engine implements stt.Engine at compile time.
var _ stt.Engine = (*Engine)(nil)
