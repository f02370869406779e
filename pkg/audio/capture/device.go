// Package capture implements the microphone recording engine.
//
// The two primary abstractions are:
//
//   - [Platform] — opens an audio input device and returns a [Device].
//   - [Recorder] — the record/stop state machine that reads fixed-size PCM
//     frames from a Device on a producer goroutine, buffers them through a
//     bounded channel, and hands the concatenated audio to an STT engine when
//     recording stops.
//
// Implementations of Platform and Device are provided by adapter packages
// (e.g., capture/pcmreader for pipes and files, capture/mock for tests). The
// interfaces are intentionally narrow to keep the recorder decoupled from any
// particular audio backend.
//
// This package lives under pkg/ because external code (third-party device
// adapters) is expected to implement [Platform] and [Device].
package capture

import "context"

// StreamConfig describes the PCM format a device is opened with.
type StreamConfig struct {
	// SampleRate in Hz. Speech capture uses 16000.
	SampleRate int

	// Channels is the number of interleaved channels. Speech capture uses 1.
	Channels int

	// FrameSamples is the number of samples per channel delivered by each
	// ReadFrame call. Speech capture uses 1024.
	FrameSamples int
}

// FrameBytes returns the size in bytes of one frame (16-bit samples).
func (c StreamConfig) FrameBytes() int {
	return c.FrameSamples * c.Channels * 2
}

// Device represents an open audio input stream.
//
// A Device is obtained from [Platform.OpenDevice] and remains valid until
// Close is called. ReadFrame and Close may be called from different
// goroutines; implementations must tolerate Close racing an in-flight read.
type Device interface {
	// ReadFrame fills buf with the next frame of raw 16-bit signed
	// little-endian PCM and returns the number of bytes written. A short read
	// or transient failure is reported as an error; the caller decides whether
	// to skip or abort.
	ReadFrame(buf []byte) (int, error)

	// Close releases the device. Safe to call more than once.
	Close() error
}

// Platform is the entry point for an audio input backend.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// OpenDevice opens the default input device with the given stream format.
	// The supplied ctx governs the lifetime of the open attempt only; once
	// open, the Device remains alive until [Device.Close].
	//
	// Returns an error if no device is available or the format is unsupported.
	OpenDevice(ctx context.Context, cfg StreamConfig) (Device, error)
}
