package knowledge

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("A short paragraph about dragons.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0] != "A short paragraph about dragons." {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestSplit_EmptyText(t *testing.T) {
	s := NewSplitter(1000, 200)
	if chunks := s.Split(""); chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 10) // 60 bytes
	para2 := strings.Repeat("beta ", 10)  // 50 bytes
	s := NewSplitter(70, 0)

	chunks := s.Split(para1 + "\n\n" + para2)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "alpha") || strings.Contains(chunks[0], "beta") {
		t.Errorf("chunk 0 crosses the paragraph boundary: %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "beta") {
		t.Errorf("chunk 1 = %q", chunks[1])
	}
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("word ")
	}
	s := NewSplitter(100, 20)

	for i, chunk := range s.Split(b.String()) {
		if len(chunk) > 100 {
			t.Errorf("chunk %d has %d bytes, want <= 100", i, len(chunk))
		}
	}
}

func TestSplit_OverlapCarriesContext(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	s := NewSplitter(20, 10)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	// Consecutive chunks share at least one word.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		overlap := false
		for _, w := range strings.Fields(chunks[i]) {
			for _, p := range prev {
				if w == p {
					overlap = true
				}
			}
		}
		if !overlap {
			t.Errorf("chunks %d and %d share no words: %q / %q", i-1, i, chunks[i-1], chunks[i])
		}
	}
}

func TestSplit_MixedPieceSizesStayWithinChunkSize(t *testing.T) {
	// A short paragraph followed by one nearly window-sized paragraph. The
	// overlap carried from the first chunk must not be prepended to the big
	// paragraph, or the second chunk would blow past the window.
	text := strings.Repeat("a", 100) + "\n\n" + strings.Repeat("b", 950)
	s := NewSplitter(1000, 200)

	chunks := s.Split(text)
	if len(chunks) == 0 {
		t.Fatal("got no chunks")
	}
	for i, chunk := range chunks {
		if len(chunk) > 1000 {
			t.Errorf("chunk %d has %d bytes, want <= 1000", i, len(chunk))
		}
	}
	joined := strings.Join(chunks, "")
	if !strings.Contains(joined, strings.Repeat("b", 950)) {
		t.Error("large paragraph did not survive splitting intact")
	}
}

func TestSplit_HardCutsUnbrokenRuns(t *testing.T) {
	text := strings.Repeat("x", 250)
	s := NewSplitter(100, 0)

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	total := 0
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d has %d bytes, want <= 100", i, len(chunk))
		}
		total += len(chunk)
	}
	if total != 250 {
		t.Errorf("chunks cover %d bytes, want 250", total)
	}
}

func TestSplit_HardCutsMultibyteRunsByBytes(t *testing.T) {
	// 300 CJK characters, 3 bytes each, with no usable separator. Windows are
	// counted in bytes, so chunks must stay under the byte limit while still
	// cutting on character boundaries.
	text := strings.Repeat("界", 300)
	s := NewSplitter(100, 0)

	chunks := s.Split(text)
	if len(chunks) < 9 {
		t.Fatalf("got %d chunks, want at least 9", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d has %d bytes, want <= 100", i, len(chunk))
		}
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
	if joined := strings.Join(chunks, ""); joined != text {
		t.Errorf("chunks cover %d bytes, want %d", len(joined), len(text))
	}
}

func TestSplit_TypicalPageProducesFewOverlappingChunks(t *testing.T) {
	var b strings.Builder
	for b.Len() < 2500 {
		b.WriteString("The dragon circled the tower while the scribe kept writing. ")
	}
	s := NewSplitter(1000, 200)

	chunks := s.Split(b.String())
	if len(chunks) < 3 || len(chunks) > 4 {
		t.Errorf("got %d chunks for 2500 characters, want 3 or 4", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 1000 {
			t.Errorf("chunk %d has %d bytes, want <= 1000", i, len(chunk))
		}
	}
}

func TestSplit_DropsWhitespaceOnlyChunks(t *testing.T) {
	s := NewSplitter(10, 0)
	for _, chunk := range s.Split("word\n\n   \n\nother") {
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("whitespace-only chunk %q survived", chunk)
		}
	}
}
