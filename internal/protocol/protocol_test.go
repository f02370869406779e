package protocol_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/MrWong99/creativemate/internal/protocol"
)

// decodeLines parses every "data: <json>" line written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("line %q does not start with %q", line, "data: ")
		}
		var ev protocol.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", payload, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestWriter_HappyPath_EmitsOrderedEvents(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)

	if err := w.Transcription("merged prompt"); err != nil {
		t.Fatalf("Transcription: %v", err)
	}
	if err := w.Chunk("Hello"); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if err := w.Chunk(" world"); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if err := w.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	events := decodeLines(t, &buf)
	wantTypes := []protocol.EventType{
		protocol.EventTranscription,
		protocol.EventChunk,
		protocol.EventChunk,
		protocol.EventComplete,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %q, want %q", i, events[i].Type, want)
		}
	}
	if events[0].Content != "merged prompt" {
		t.Errorf("transcription content = %q", events[0].Content)
	}
}

func TestWriter_Complete_SerialisesCodeZero(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)
	if err := w.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line != `data: {"type":"complete","code":0}` {
		t.Errorf("complete line = %q, want code:0 present", line)
	}
}

func TestWriter_SecondTerminal_Rejected(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)

	if err := w.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := w.Error("boom"); err == nil {
		t.Error("expected error for second terminal event")
	}
	if err := w.Complete(); err == nil {
		t.Error("expected error for duplicate complete")
	}

	if got := len(decodeLines(t, &buf)); got != 1 {
		t.Errorf("wrote %d events, want exactly 1", got)
	}
}

func TestWriter_ChunkAfterTerminal_Rejected(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)

	if err := w.Error("An error occurred: backend down. Try again later."); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := w.Chunk("late"); err == nil {
		t.Error("expected error for chunk after terminal")
	}
}

func TestWriter_TranscriptionAfterChunk_Rejected(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)

	if err := w.Chunk("token"); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if err := w.Transcription("too late"); err == nil {
		t.Error("expected error for transcription after chunk")
	}
}

func TestWriter_DuplicateTranscription_Rejected(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)

	if err := w.Transcription("one"); err != nil {
		t.Fatalf("Transcription: %v", err)
	}
	if err := w.Transcription("two"); err == nil {
		t.Error("expected error for duplicate transcription")
	}
}

func TestWriter_Terminated(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)
	if w.Terminated() {
		t.Error("fresh writer reports terminated")
	}
	_ = w.Error("x")
	if !w.Terminated() {
		t.Error("writer does not report terminated after error event")
	}
}

func TestEventType_IsValid(t *testing.T) {
	for _, typ := range []protocol.EventType{
		protocol.EventTranscription,
		protocol.EventChunk,
		protocol.EventComplete,
		protocol.EventError,
	} {
		if !typ.IsValid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if protocol.EventType("heartbeat").IsValid() {
		t.Error("unknown type should be invalid")
	}
}
