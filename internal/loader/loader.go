// Package loader extracts plain text from uploaded documents.
//
// Supported formats form a closed set (PDF, plain text, office documents)
// dispatched by file extension. Extraction produces an ordered sequence of
// text blocks: one per page for paginated formats, a single block otherwise.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when the file extension is not in the
	// allowed set.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrExtractionFailed is returned when a document cannot be parsed, or
	// when a non-empty input yields no extractable text.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Kind identifies the loader variant for a document.
type Kind int

const (
	// KindPDF is a PDF document, extracted page by page.
	KindPDF Kind = iota
	// KindPlainText is a plain text or markdown document.
	KindPlainText
	// KindOffice is an OOXML office document (docx, pptx).
	KindOffice
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindPlainText:
		return "plaintext"
	case KindOffice:
		return "office"
	default:
		return "unknown"
	}
}

// minPageChars is the threshold below which an extracted page is treated as
// empty (stray page numbers, decoration) and skipped.
const minPageChars = 10

// Block is one contiguous unit of extracted text in reading order.
type Block struct {
	// Text is the extracted plain text, whitespace-trimmed.
	Text string
	// Page is the 1-based page or slide number, 0 for unpaginated formats.
	Page int
}

// Extensions lists the allowed file extensions, lowercased with leading dot.
func Extensions() []string {
	return []string{".pdf", ".txt", ".text", ".md", ".docx", ".pptx"}
}

// Detect maps a filename to its loader kind. Pure function: the extension is
// lowercased and matched against the closed allow-list; anything else fails
// with ErrUnsupportedFormat.
func Detect(filename string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF, nil
	case ".txt", ".text", ".md":
		return KindPlainText, nil
	case ".docx", ".pptx":
		return KindOffice, nil
	default:
		return 0, fmt.Errorf("%w: %q (allowed: %s)",
			ErrUnsupportedFormat, filepath.Ext(filename), strings.Join(Extensions(), ", "))
	}
}

// Load extracts the text content of data as an ordered block sequence.
//
// Non-empty input that produces no text is an extraction failure, never a
// silent empty result.
func Load(ctx context.Context, filename string, data []byte) ([]Block, error) {
	kind, err := Detect(filename)
	if err != nil {
		return nil, err
	}

	var blocks []Block
	switch kind {
	case KindPDF:
		blocks, err = loadPDF(ctx, data)
	case KindPlainText:
		blocks, err = loadPlainText(data)
	case KindOffice:
		blocks, err = loadOffice(ctx, filename, data)
	}
	if err != nil {
		return nil, err
	}

	if len(blocks) == 0 && len(data) > 0 {
		return nil, fmt.Errorf("%w: no text content in %q", ErrExtractionFailed, filepath.Base(filename))
	}
	return blocks, nil
}

// loadPlainText treats the whole input as a single block.
func loadPlainText(data []byte) ([]Block, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Block{{Text: text}}, nil
}
