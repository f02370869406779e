package knowledge

import (
	"strings"
	"unicode/utf8"
)

// defaultSeparators is the boundary preference order for splitting: paragraph
// breaks first, then line breaks, then word breaks, then anywhere.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into overlapping chunks along natural boundaries. It
// prefers paragraph breaks over line breaks over word breaks and falls back
// to hard character cuts only when a single unbroken run exceeds the chunk
// size.
type Splitter struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int

	// ChunkOverlap is how many bytes consecutive chunks share.
	ChunkOverlap int
}

// NewSplitter returns a Splitter with the given window size and overlap.
// Overlap must be smaller than size.
func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{ChunkSize: size, ChunkOverlap: overlap}
}

// Split cuts text into chunks of at most ChunkSize bytes with ChunkOverlap
// bytes of shared context between consecutive chunks. Whitespace-only chunks
// are dropped.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.split(text, defaultSeparators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the coarsest separator that actually occurs in the text.
	sep := ""
	var finer []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			finer = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardCut(text)
	}

	var chunks []string
	var fitting []string
	for _, piece := range strings.Split(text, sep) {
		if len(piece) < s.ChunkSize {
			fitting = append(fitting, piece)
			continue
		}
		// An oversized piece: flush what fits, then split the piece at the
		// next finer boundary.
		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting, sep)...)
			fitting = nil
		}
		chunks = append(chunks, s.split(piece, finer)...)
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting, sep)...)
	}
	return chunks
}

// merge joins consecutive pieces (separated by sep) into chunks up to
// ChunkSize, carrying ChunkOverlap bytes of trailing pieces into the next
// chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if doc := strings.TrimSpace(strings.Join(window, sep)); doc != "" {
			chunks = append(chunks, doc)
		}
	}

	for _, piece := range pieces {
		grown := total + len(piece)
		if len(window) > 0 {
			grown += len(sep)
		}
		if grown > s.ChunkSize && len(window) > 0 {
			flush()
			// Slide the window forward until the retained tail fits within
			// the configured overlap and leaves room for the incoming piece.
			for len(window) > 0 {
				need := total + len(sep) + len(piece)
				if total <= s.ChunkOverlap && need <= s.ChunkSize {
					break
				}
				total -= len(window[0])
				if len(window) > 1 {
					total -= len(sep)
				}
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += len(piece)
		if len(window) > 1 {
			total += len(sep)
		}
	}
	flush()
	return chunks
}

// hardCut slices text into fixed byte windows when no separator is usable,
// the same unit merge counts in. Cut points snap back to rune starts so no
// chunk begins or ends mid-character, and never past ChunkSize bytes.
func (s *Splitter) hardCut(text string) []string {
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + s.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeStart(text, end)
		}
		if end <= start {
			// Window smaller than one character: take the whole rune anyway.
			_, n := utf8.DecodeRuneInString(text[start:])
			end = start + n
		}
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(text) {
			break
		}
		next := runeStart(text, start+step)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// runeStart walks i back to the nearest rune boundary at or before it.
func runeStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
