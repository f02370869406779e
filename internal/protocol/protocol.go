// Package protocol implements the line-oriented event protocol CreativeMate
// speaks on stdout during a chat invocation.
//
// Each event is one line of the form
//
//	data: {"type":"chunk","content":"..."}
//
// flushed immediately so a consuming frontend can render tokens as they
// arrive. Four event types exist: transcription (at most once, before any
// chunk), chunk (zero or more), and the two terminal events complete and
// error (exactly one per invocation).
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// EventType enumerates the event kinds of the stream protocol.
type EventType string

const (
	// EventTranscription carries the merged prompt after voice input was
	// transcribed. Emitted at most once, before any chunk.
	EventTranscription EventType = "transcription"

	// EventChunk carries one incremental fragment of the assistant response.
	EventChunk EventType = "chunk"

	// EventComplete signals clean exhaustion of the response stream.
	EventComplete EventType = "complete"

	// EventError signals that the response stream failed. Chunks already
	// emitted stay valid.
	EventError EventType = "error"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventTranscription, EventChunk, EventComplete, EventError:
		return true
	}
	return false
}

// Event is a single protocol event. Code is a pointer so that the complete
// event serialises its zero exit code explicitly ("code":0) while all other
// events omit the field.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Code    *int      `json:"code,omitempty"`
}

// Writer serialises events onto an output stream and enforces the protocol's
// ordering rules:
//
//   - at most one transcription event, and only before the first chunk;
//   - exactly one terminal event (complete or error);
//   - nothing after the terminal event.
//
// Violations return an error and write nothing. Writer is safe for
// concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer

	wroteTranscription bool
	wroteChunk         bool
	terminal           bool
}

// NewWriter returns a Writer emitting onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Transcription emits the transcription event carrying the merged prompt.
func (w *Writer) Transcription(content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminal {
		return errors.New("protocol: stream already terminated")
	}
	if w.wroteChunk {
		return errors.New("protocol: transcription must precede all chunks")
	}
	if w.wroteTranscription {
		return errors.New("protocol: duplicate transcription event")
	}
	w.wroteTranscription = true
	return w.emit(Event{Type: EventTranscription, Content: content})
}

// Chunk emits one incremental response fragment.
func (w *Writer) Chunk(content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminal {
		return errors.New("protocol: stream already terminated")
	}
	w.wroteChunk = true
	return w.emit(Event{Type: EventChunk, Content: content})
}

// Complete emits the terminal complete event with exit code 0.
func (w *Writer) Complete() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminal {
		return errors.New("protocol: stream already terminated")
	}
	w.terminal = true
	code := 0
	return w.emit(Event{Type: EventComplete, Code: &code})
}

// Error emits the terminal error event with the given operator-readable
// message.
func (w *Writer) Error(content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminal {
		return errors.New("protocol: stream already terminated")
	}
	w.terminal = true
	return w.emit(Event{Type: EventError, Content: content})
}

// Terminated reports whether a terminal event has been written.
func (w *Writer) Terminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminal
}

// emit writes one "data: <json>\n" line. Callers hold w.mu.
func (w *Writer) emit(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("protocol: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n", payload); err != nil {
		return fmt.Errorf("protocol: write event: %w", err)
	}
	return nil
}
