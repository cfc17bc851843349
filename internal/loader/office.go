package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// loadOffice extracts text from OOXML containers. Word documents yield a
// single block from the document body; presentations yield one block per
// slide in slide order.
func loadOffice(ctx context.Context, filename string, data []byte) ([]Block, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid office document: %v", ErrExtractionFailed, err)
	}

	if strings.EqualFold(filepath.Ext(filename), ".pptx") {
		return loadSlides(ctx, archive)
	}
	return loadWordBody(archive)
}

// loadWordBody reads word/document.xml and concatenates paragraph text.
func loadWordBody(archive *zip.Reader) ([]Block, error) {
	f, err := openArchiveFile(archive, "word/document.xml")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, err := extractRunText(f)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []Block{{Text: text}}, nil
}

// loadSlides reads ppt/slides/slideN.xml in ascending slide order.
func loadSlides(ctx context.Context, archive *zip.Reader) ([]Block, error) {
	var blocks []Block
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := openArchiveFile(archive, fmt.Sprintf("ppt/slides/slide%d.xml", n))
		if err != nil {
			break // no more slides
		}
		text, err := extractRunText(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if len(text) < minPageChars {
			continue
		}
		blocks = append(blocks, Block{Text: text, Page: n})
	}
	return blocks, nil
}

func openArchiveFile(archive *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range archive.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: opening %s: %v", ErrExtractionFailed, name, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("%w: missing %s", ErrExtractionFailed, name)
}

// extractRunText walks the XML token stream collecting text runs ("t"
// elements in both wordprocessingml and drawingml) and inserting line breaks
// at paragraph boundaries. Namespace prefixes are ignored: the decoder
// reports local names only.
func extractRunText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		sb     strings.Builder
		inText bool
	)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
