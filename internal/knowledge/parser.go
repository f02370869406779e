package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Page is one page of parsed document text. Numbering starts at 0 to match
// common PDF tooling.
type Page struct {
	Number int
	Text   string
}

// DocumentParser extracts text pages from a raw document. Implementations
// for binary formats (PDF and friends) can be plugged in here; the built-in
// [TextParser] covers plain-text formats.
type DocumentParser interface {
	// Parse extracts the text pages of the document. The filename is
	// advisory (format detection, error messages).
	Parse(ctx context.Context, data []byte, filename string) ([]Page, error)
}

// TextParser parses plain-text documents (txt, md and similar). Form-feed
// characters act as page breaks; most plain-text files come out as a single
// page 0.
type TextParser struct{}

var _ DocumentParser = TextParser{}

// Parse implements [DocumentParser]. It rejects content that is not valid
// UTF-8 so binary formats fail with a clear message instead of producing
// garbage chunks.
func (TextParser) Parse(_ context.Context, data []byte, filename string) ([]Page, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("knowledge: %s is not valid UTF-8 text; a format-specific parser is required", filename)
	}

	var pages []Page
	for i, text := range strings.Split(string(data), "\f") {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("knowledge: %s contains no text", filename)
	}
	return pages, nil
}
