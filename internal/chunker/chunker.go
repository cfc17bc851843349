// Package chunker splits extracted document text into overlapping segments
// sized for retrieval.
//
// Chunk size adapts to total document length: short documents get smaller
// chunks so they still yield multiple retrievable units, long documents cap
// chunk size to bound per-chunk embedding cost. Splitting prefers semantic
// boundaries (headings, paragraphs, sentences) over hard character cuts.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/matthias-truyzelaere/documindr/internal/loader"
)

// Default chunking parameters.
const (
	DefaultBaseSize = 1000
	DefaultMinChars = 120
	DefaultOverlap  = 150
)

// separators is the boundary ladder tried in priority order: markdown
// headings, paragraph breaks, line breaks, sentence ends, clause breaks,
// words, and finally a hard character cut.
var separators = []string{
	"\n\n## ",
	"\n\n### ",
	"\n\n",
	"\n",
	". ",
	"! ",
	"? ",
	"; ",
	", ",
	" ",
	"",
}

// Chunk is one bounded segment of a document's extracted text.
type Chunk struct {
	// Ordinal is the zero-based position within the document.
	Ordinal int
	// Text is the segment content.
	Text string
	// Page is the source page/slide number, 0 when unpaginated.
	Page int
}

// Config holds chunking parameters.
type Config struct {
	// BaseSize is the target chunk size in characters before length
	// adaptation.
	BaseSize int
	// MinChars is the minimum chunk length; shorter fragments are treated as
	// noise and discarded.
	MinChars int
	// Overlap is the number of characters shared between consecutive chunks.
	Overlap int
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.BaseSize <= 0 {
		return fmt.Errorf("base size must be positive, got %d", c.BaseSize)
	}
	if c.MinChars < 0 {
		return fmt.Errorf("min chars cannot be negative, got %d", c.MinChars)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap cannot be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.BaseSize {
		return fmt.Errorf("overlap %d must be smaller than base size %d", c.Overlap, c.BaseSize)
	}
	return nil
}

// Chunker splits extracted text blocks into ordered, overlapping chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker. Zero config fields fall back to defaults.
func New(cfg Config) (*Chunker, error) {
	if cfg.BaseSize == 0 {
		cfg.BaseSize = DefaultBaseSize
	}
	if cfg.MinChars == 0 {
		cfg.MinChars = DefaultMinChars
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	return &Chunker{cfg: cfg}, nil
}

// TargetSize chooses the chunk size for a document of the given total
// character count, bounded between fixed floors and the base size.
func TargetSize(length, base int) int {
	switch {
	case length < 2000:
		return max(base*8/10, 300)
	case length < 10000:
		return base
	default:
		return max(base*6/10, 400)
	}
}

// Split turns extracted blocks into chunks with contiguous ordinals 0..n-1.
//
// Fragments shorter than MinChars are discarded, except when discarding
// everything would leave the document with zero chunks: then the last
// undersized fragment is retained so every ingested document stays
// retrievable.
func (c *Chunker) Split(blocks []loader.Block) ([]Chunk, error) {
	total := 0
	for _, b := range blocks {
		total += len(b.Text)
	}

	var (
		chunks        []Chunk
		lastUndersize *Chunk
	)
	for _, block := range blocks {
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}

		size := TargetSize(total, c.cfg.BaseSize)
		pieces, err := c.splitBlock(text, size)
		if err != nil {
			return nil, err
		}

		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			if len(piece) < c.cfg.MinChars {
				lastUndersize = &Chunk{Text: piece, Page: block.Page}
				continue
			}
			chunks = append(chunks, Chunk{Ordinal: len(chunks), Text: piece, Page: block.Page})
		}
	}

	if len(chunks) == 0 && lastUndersize != nil {
		lastUndersize.Ordinal = 0
		chunks = append(chunks, *lastUndersize)
	}
	return chunks, nil
}

// splitBlock returns the block whole when it already fits comfortably in one
// chunk, otherwise runs the recursive splitter.
func (c *Chunker) splitBlock(text string, size int) ([]string, error) {
	if len(text) <= size*8/10 {
		return []string{text}, nil
	}

	overlap := c.cfg.Overlap
	if overlap >= size {
		overlap = size / 4
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separators),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}
	return pieces, nil
}
