package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/creativemate/pkg/provider/stt"
	"github.com/MrWong99/creativemate/pkg/types"
)

// State enumerates the lifecycle states of a Recorder.
type State int

const (
	// StateIdle means no recording has started yet.
	StateIdle State = iota

	// StateRecording means the producer goroutine is actively reading frames.
	StateRecording

	// StateStopping means Stop has been called and the producer is being
	// joined.
	StateStopping

	// StateStopped means the recording session has finished. Stopped is
	// terminal: a Recorder records at most once.
	StateStopped
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

const (
	defaultSampleRate   = 16000
	defaultChannels     = 1
	defaultFrameSamples = 1024
	defaultJoinTimeout  = 2 * time.Second
	defaultFrameBuffer  = 256
)

// Config holds the recording parameters of a Recorder. The zero value is
// usable; every field has a working default.
type Config struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int

	// Channels is the capture channel count. Default 1 (mono).
	Channels int

	// FrameSamples is the number of samples read from the device per frame.
	// Default 1024.
	FrameSamples int

	// JoinTimeout bounds how long Stop waits for the producer goroutine to
	// exit before proceeding without it. Frames still held by a stalled
	// producer are lost. Default 2 s.
	JoinTimeout time.Duration

	// FrameBuffer is the capacity of the bounded channel between the producer
	// and Stop. When the channel is full the producer drops frames rather
	// than blocking. Default 256.
	FrameBuffer int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = defaultChannels
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = defaultFrameSamples
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = defaultJoinTimeout
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = defaultFrameBuffer
	}
	return c
}

// Recorder is the record-then-transcribe state machine. It moves through
// Idle → Recording → Stopping → Stopped; Stopped is terminal, so one Recorder
// serves exactly one recording session. Construct a fresh Recorder per
// session.
//
// All methods are safe for concurrent use. Exactly one producer goroutine
// reads from the device while recording; all device reads are confined to it.
type Recorder struct {
	platform Platform
	engine   stt.Engine
	cfg      Config
	log      *slog.Logger

	mu     sync.Mutex
	state  State
	device Device

	frames chan types.AudioFrame
	stop   chan struct{}
	done   chan struct{} // closed when the producer goroutine exits
}

// NewRecorder creates a Recorder that captures from platform and transcribes
// with engine. logger may be nil, in which case slog.Default() is used.
func NewRecorder(platform Platform, engine stt.Engine, cfg Config, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		platform: platform,
		engine:   engine,
		cfg:      cfg.withDefaults(),
		log:      logger,
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the input device and launches the producer goroutine. It
// returns an error if the Recorder is not Idle or the device cannot be
// opened; on device failure the Recorder stays Idle and may be started again.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRecording, StateStopping:
		return errors.New("capture: already recording")
	case StateStopped:
		return errors.New("capture: recorder already finished")
	}

	sc := StreamConfig{
		SampleRate:   r.cfg.SampleRate,
		Channels:     r.cfg.Channels,
		FrameSamples: r.cfg.FrameSamples,
	}
	device, err := r.platform.OpenDevice(ctx, sc)
	if err != nil {
		return fmt.Errorf("capture: open device: %w", err)
	}

	r.device = device
	r.frames = make(chan types.AudioFrame, r.cfg.FrameBuffer)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.state = StateRecording

	go r.produce(device, sc)

	r.log.Debug("recording started",
		"sample_rate", sc.SampleRate,
		"channels", sc.Channels,
		"frame_samples", sc.FrameSamples)
	return nil
}

// produce is the single producer goroutine. It reads fixed-size frames from
// the device into the bounded frames channel until the stop signal closes.
// Per-read errors are tolerated: the failed frame is skipped and reading
// continues. When the channel is full the frame is dropped.
func (r *Recorder) produce(device Device, sc StreamConfig) {
	defer close(r.done)

	frameBytes := sc.FrameBytes()
	var elapsed time.Duration
	frameDuration := time.Duration(sc.FrameSamples) * time.Second / time.Duration(sc.SampleRate)

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		buf := make([]byte, frameBytes)
		n, err := device.ReadFrame(buf)
		if errors.Is(err, io.EOF) {
			// The source is exhausted (pipe closed, file ended). Nothing more
			// will arrive; wait for Stop.
			<-r.stop
			return
		}
		if err != nil {
			// Transient read failures (overflows, device hiccups) are skipped.
			r.log.Debug("frame read failed, skipping", "error", err)
			continue
		}
		if n == 0 {
			continue
		}

		frame := types.AudioFrame{
			Data:       buf[:n],
			SampleRate: sc.SampleRate,
			Channels:   sc.Channels,
			Timestamp:  elapsed,
		}
		elapsed += frameDuration

		select {
		case r.frames <- frame:
		default:
			// Bounded channel full: drop rather than stall the device.
		}
	}
}

// Stop ends the recording session, joins the producer with a bounded wait,
// releases the device, and transcribes the captured audio. It returns the
// transcript and true on success, or a zero Transcript and false when nothing
// was captured, the transcription failed, or the Recorder was not recording.
//
// Stop never blocks longer than the configured JoinTimeout on a stalled
// producer: frames still held by it are lost and the session proceeds with
// what reached the channel.
func (r *Recorder) Stop(ctx context.Context) (types.Transcript, bool) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return types.Transcript{}, false
	}
	r.state = StateStopping
	device := r.device
	r.mu.Unlock()

	// Signal the producer and join it with a bounded wait. A device read that
	// never returns must not hang the whole session.
	close(r.stop)
	select {
	case <-r.done:
	case <-time.After(r.cfg.JoinTimeout):
		r.log.Warn("producer did not exit in time, proceeding without it",
			"timeout", r.cfg.JoinTimeout)
	}

	// Release the device on all paths. Closing also unblocks a stalled read.
	if err := device.Close(); err != nil {
		r.log.Debug("device close failed", "error", err)
	}

	pcm := r.drain()

	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()

	if len(pcm) == 0 {
		r.log.Debug("no audio captured")
		return types.Transcript{}, false
	}

	transcript, err := r.engine.TranscribePCM(ctx, pcm, r.cfg.SampleRate, r.cfg.Channels)
	if err != nil {
		r.log.Error("transcription failed", "error", err)
		return types.Transcript{}, false
	}
	if transcript.Text == "" {
		return types.Transcript{}, false
	}

	r.log.Debug("recording transcribed",
		"bytes", len(pcm),
		"language", transcript.Language)
	return transcript, true
}

// drain empties the frames channel and concatenates the PCM payloads in
// arrival order.
func (r *Recorder) drain() []byte {
	var pcm []byte
	for {
		select {
		case f := <-r.frames:
			pcm = append(pcm, f.Data...)
		default:
			return pcm
		}
	}
}

// TranscribeFile transcribes the audio file at path. It is stateless and
// independent of the recording session: it may be called in any state and
// does not change it.
func (r *Recorder) TranscribeFile(ctx context.Context, path string) (types.Transcript, error) {
	transcript, err := r.engine.TranscribeFile(ctx, path)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("capture: transcribe file: %w", err)
	}
	return transcript, nil
}
