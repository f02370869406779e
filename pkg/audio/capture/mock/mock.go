// Package mock provides test doubles for the capture.Platform and
// capture.Device interfaces.
//
// Device serves a fixed PCM payload frame by frame and then blocks until
// closed, mimicking a microphone that has gone quiet. Platform hands out a
// configured Device or an injected error.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/creativemate/pkg/audio/capture"
)

// Device is a mock implementation of capture.Device.
type Device struct {
	mu sync.Mutex

	// PCM is the payload served by ReadFrame, consumed front to back.
	PCM []byte

	// ReadErr, if non-nil, is returned by every ReadFrame call.
	ReadErr error

	// BlockWhenDrained controls behaviour once PCM is exhausted: when true
	// (the default behaviour of a live microphone is to keep delivering
	// frames, so tests usually leave this false), ReadFrame blocks until
	// Close; when false, exhausted reads return silence frames.
	BlockWhenDrained bool

	// CloseCount is the number of times Close was called.
	CloseCount int

	closed  chan struct{}
	closeMu sync.Once
}

// NewDevice returns a Device serving the given PCM payload.
func NewDevice(pcm []byte) *Device {
	return &Device{PCM: pcm, closed: make(chan struct{})}
}

// ReadFrame implements capture.Device.
func (d *Device) ReadFrame(buf []byte) (int, error) {
	d.mu.Lock()
	if d.ReadErr != nil {
		err := d.ReadErr
		d.mu.Unlock()
		return 0, err
	}
	if len(d.PCM) > 0 {
		n := copy(buf, d.PCM)
		d.PCM = d.PCM[n:]
		d.mu.Unlock()
		return n, nil
	}
	block := d.BlockWhenDrained
	d.mu.Unlock()

	if block {
		<-d.closed
		return 0, errors.New("mock device: closed")
	}
	// Serve silence once the payload is drained.
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

// Close implements capture.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	d.CloseCount++
	d.mu.Unlock()
	d.closeMu.Do(func() { close(d.closed) })
	return nil
}

// OpenCall records a single invocation of OpenDevice.
type OpenCall struct {
	// Ctx is the context passed to OpenDevice.
	Ctx context.Context
	// Config is the stream config passed to OpenDevice.
	Config capture.StreamConfig
}

// Platform is a mock implementation of capture.Platform.
type Platform struct {
	mu sync.Mutex

	// Device is returned by OpenDevice. Must be set unless OpenErr is.
	Device capture.Device

	// OpenErr, if non-nil, is returned by OpenDevice instead of a device.
	OpenErr error

	// OpenCalls records every invocation of OpenDevice in order.
	OpenCalls []OpenCall
}

// OpenDevice implements capture.Platform.
func (p *Platform) OpenDevice(ctx context.Context, cfg capture.StreamConfig) (capture.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCalls = append(p.OpenCalls, OpenCall{Ctx: ctx, Config: cfg})
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	return p.Device, nil
}

// Compile-time interface checks.
var (
	_ capture.Device   = (*Device)(nil)
	_ capture.Platform = (*Platform)(nil)
)
