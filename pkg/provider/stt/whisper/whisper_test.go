package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/creativemate/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// newMockServer creates a test server that responds to POST /inference with a
// verbose_json body containing the provided text and language. It increments
// *callCount on every matched request and captures the last received form
// fields into fields (when non-nil).
func newMockServer(t *testing.T, text, language string, callCount *atomic.Int32, fields map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		if fields != nil {
			if err := r.ParseMultipartForm(32 << 20); err == nil {
				for k, v := range r.MultipartForm.Value {
					if len(v) > 0 {
						fields[k] = v[0]
					}
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":     text,
			"language": language,
			"duration": 1.5,
		})
	}))
}

// makeTonePCM generates a sine-wave PCM buffer at 440 Hz containing `samples`
// 16-bit little-endian signed samples.
func makeTonePCM(samples int) []byte {
	const amplitude = 10_000.0
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// ---- engine construction ----------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_WithOptions_DoesNotError(t *testing.T) {
	e, err := whisper.New("http://localhost:8080",
		whisper.WithModel("small"),
		whisper.WithLanguage("de"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e == nil {
		t.Fatal("expected non-nil Engine")
	}
}

// ---- transcription ----------------------------------------------------------

func TestTranscribePCM_ReturnsServerText(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, "hello there", "en", &calls, nil)
	defer srv.Close()

	e, _ := whisper.New(srv.URL)
	tr, err := e.TranscribePCM(context.Background(), makeTonePCM(16000), 16000, 1)
	if err != nil {
		t.Fatalf("TranscribePCM: %v", err)
	}
	if tr.Text != "hello there" {
		t.Errorf("Text = %q, want %q", tr.Text, "hello there")
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q, want %q", tr.Language, "en")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestTranscribePCM_SendsLanguageAndFormatFields(t *testing.T) {
	fields := map[string]string{}
	srv := newMockServer(t, "", "de", nil, fields)
	defer srv.Close()

	e, _ := whisper.New(srv.URL, whisper.WithLanguage("de"), whisper.WithModel("base"))
	if _, err := e.TranscribePCM(context.Background(), makeTonePCM(1024), 16000, 1); err != nil {
		t.Fatalf("TranscribePCM: %v", err)
	}

	if got := fields["language"]; got != "de" {
		t.Errorf("language field = %q, want %q", got, "de")
	}
	if got := fields["model"]; got != "base" {
		t.Errorf("model field = %q, want %q", got, "base")
	}
	if got := fields["response_format"]; got != "verbose_json" {
		t.Errorf("response_format field = %q, want %q", got, "verbose_json")
	}
}

func TestTranscribeWAV_ReturnsServerText(t *testing.T) {
	srv := newMockServer(t, "from wav", "en", nil, nil)
	defer srv.Close()

	e, _ := whisper.New(srv.URL)
	// A WAV payload is forwarded verbatim; its content is opaque to the engine.
	tr, err := e.TranscribeWAV(context.Background(), []byte("RIFFxxxxWAVE"))
	if err != nil {
		t.Fatalf("TranscribeWAV: %v", err)
	}
	if tr.Text != "from wav" {
		t.Errorf("Text = %q, want %q", tr.Text, "from wav")
	}
}

func TestTranscribeFile_UploadsFileContents(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, "from file", "en", &calls, nil)
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "speech.wav")
	if err := os.WriteFile(path, makeTonePCM(1024), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	e, _ := whisper.New(srv.URL)
	tr, err := e.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if tr.Text != "from file" {
		t.Errorf("Text = %q, want %q", tr.Text, "from file")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestTranscribeFile_MissingFile_ReturnsError(t *testing.T) {
	e, _ := whisper.New("http://localhost:8080")
	if _, err := e.TranscribeFile(context.Background(), "/nonexistent/path.wav"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestTranscribePCM_ServerError_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, _ := whisper.New(srv.URL)
	if _, err := e.TranscribePCM(context.Background(), makeTonePCM(1024), 16000, 1); err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
}

func TestTranscribePCM_CancelledContext_ReturnsError(t *testing.T) {
	srv := newMockServer(t, "never", "en", nil, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := whisper.New(srv.URL)
	if _, err := e.TranscribePCM(ctx, makeTonePCM(1024), 16000, 1); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
