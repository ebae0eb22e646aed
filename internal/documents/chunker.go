package documents

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyInput is returned when a document has no indexable text. Callers
// reject the upload before anything touches the index.
var ErrEmptyInput = errors.New("document text is empty")

// Chunk is one window of a document's text plus the metadata stored next to
// its vector. Ordinal is the zero-based position in source order and
// TotalChunks is identical across every chunk of one chunking pass.
type Chunk struct {
	ID          uuid.UUID
	Text        string
	Filename    string
	SpaceID     string
	Ordinal     int
	TotalChunks int
}

// Chunker splits text into overlapping fixed-size windows, snapping to
// natural boundaries when one exists in the window.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker validates the window configuration. Overlap must be smaller
// than the window or consecutive chunks could never advance.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, errors.New("chunk overlap must be in [0, chunk size)")
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into chunks of at most chunkSize characters with
// chunkOverlap characters shared between consecutive chunks. It is a pure
// function: the same text always produces the same windows (ids aside).
func (c *Chunker) Chunk(text, filename, spaceID string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if spaceID == "" {
		spaceID = "default"
	}

	runes := []rune(text)
	var pieces []string

	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}

		cut := c.snapToBoundary(runes, start, end)
		pieces = append(pieces, string(runes[start:cut]))

		next := cut - c.chunkOverlap
		if next <= start {
			// Overlap would stall the window; drop it for this step.
			next = cut
		}
		start = next
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			ID:          uuid.New(),
			Text:        piece,
			Filename:    filename,
			SpaceID:     spaceID,
			Ordinal:     i,
			TotalChunks: len(pieces),
		})
	}
	return chunks, nil
}

// snapToBoundary finds the best cut point in (start, end]. Paragraph breaks
// win over sentence ends, sentence ends over word breaks; a hard cut at end
// is the fallback. Boundaries in the first half of the window are ignored so
// chunks keep a useful minimum size.
func (c *Chunker) snapToBoundary(runes []rune, start, end int) int {
	min := start + c.chunkSize/2

	// Paragraph break: cut just past the blank line.
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' && i+1 >= min {
			return i + 1
		}
	}
	// Sentence end: terminator followed by whitespace.
	for i := end - 1; i > start; i-- {
		if isSpace(runes[i]) && isSentenceEnd(runes[i-1]) && i >= min {
			return i
		}
	}
	// Word break.
	for i := end - 1; i > start; i-- {
		if isSpace(runes[i]) && i+1 >= min {
			return i + 1
		}
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
