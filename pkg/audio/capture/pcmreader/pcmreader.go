// Package pcmreader provides a capture.Platform backed by a raw PCM byte
// stream — a named pipe, a regular file, or any io.Reader.
//
// It exists so live recording works on machines without a native audio stack:
// an external tool (arecord, sox, ffmpeg) captures the microphone and writes
// 16-bit little-endian PCM to a pipe, and CreativeMate reads it from there.
//
//	arecord -f S16_LE -r 16000 -c 1 -t raw > /tmp/mic.pcm
//	creativemate -live /tmp/mic.pcm
package pcmreader

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/MrWong99/creativemate/pkg/audio/capture"
)

// Compile-time interface checks.
var (
	_ capture.Platform = (*Platform)(nil)
	_ capture.Device   = (*device)(nil)
)

// Platform opens capture devices backed by a PCM source path. The stream
// format is whatever the external producer wrote; the platform trusts the
// configured StreamConfig and performs no validation of the byte stream.
type Platform struct {
	// Path is the file or named pipe to read PCM from.
	Path string
}

// New returns a Platform reading from the file or pipe at path.
func New(path string) *Platform {
	return &Platform{Path: path}
}

// OpenDevice implements capture.Platform by opening the configured path.
func (p *Platform) OpenDevice(ctx context.Context, _ capture.StreamConfig) (capture.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pcmreader: context already cancelled: %w", err)
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("pcmreader: open %q: %w", p.Path, err)
	}
	return &device{r: f, closer: f}, nil
}

// FromReader wraps an arbitrary io.Reader as a capture.Device. Close on the
// returned device is a no-op for the underlying reader unless it also
// implements io.Closer.
func FromReader(r io.Reader) capture.Device {
	closer, _ := r.(io.Closer)
	return &device{r: r, closer: closer}
}

type device struct {
	r      io.Reader
	closer io.Closer

	mu     sync.Mutex
	closed bool
}

// ReadFrame fills buf completely or returns io.EOF when the source is
// exhausted. Partial trailing frames are delivered as a short read.
func (d *device) ReadFrame(buf []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, io.EOF
	}
	d.mu.Unlock()

	n, err := io.ReadFull(d.r, buf)
	if err == io.ErrUnexpectedEOF {
		return n, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying source. Safe to call more than once.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
