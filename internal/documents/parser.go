package documents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

var (
	// ErrUnsupportedFormat is returned for file types the parser cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtraction is returned when a supported document cannot be parsed.
	ErrExtraction = errors.New("text extraction failed")
)

// ExtractText reads a document from disk and returns its plain text.
// PDF extraction goes through MuPDF; txt and markdown are read directly.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %v", ErrExtraction, err)
	}
	defer doc.Close()

	var parts []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no extractable text in %s", ErrExtraction, filepath.Base(path))
	}
	return strings.Join(parts, "\n\n"), nil
}
