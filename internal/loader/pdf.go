package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts text page by page, preserving page order. Pages whose
// extracted text is shorter than minPageChars are skipped as noise.
func loadPDF(ctx context.Context, data []byte) (blocks []Block, err error) {
	// The pdf parser panics on some malformed inputs; a corrupt upload must
	// surface as ErrExtractionFailed, not take the request down.
	defer func() {
		if r := recover(); r != nil {
			blocks = nil
			err = fmt.Errorf("%w: malformed pdf: %v", ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page does not invalidate the rest.
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) < minPageChars {
			continue
		}
		blocks = append(blocks, Block{Text: text, Page: i})
	}
	return blocks, nil
}
