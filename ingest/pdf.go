package ingest

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/SnehaChouksey/Acadlyst/errors"
)

// PDFExtractor converts PDF bytes into plain text. Abstracted so pipeline
// tests can substitute a fake extractor.
type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFTextExtractor extracts plain text page by page.
type PDFTextExtractor struct{}

// NewPDFTextExtractor returns the default PDF extractor.
func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

// Extract pulls plain text from every page. Pages that cannot be decoded
// are skipped rather than failing the whole document.
func (e *PDFTextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse PDF")
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("PDF contains no extractable text")
	}
	return text, nil
}
