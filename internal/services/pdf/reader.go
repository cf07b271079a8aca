package pdf

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageReader returns the embedded text layer of a document, one string per page
type PageReader interface {
	ReadPages(ctx context.Context, path string) ([]string, error)
}

// TextLayerReader reads embedded text with ledongthuc/pdf
type TextLayerReader struct{}

// NewTextLayerReader creates a structured text reader
func NewTextLayerReader() *TextLayerReader {
	return &TextLayerReader{}
}

// ReadPages extracts plain text page by page. The parser panics on some malformed
// inputs; a panic is returned as an error.
func (r *TextLayerReader) ReadPages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
