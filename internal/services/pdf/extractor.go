// Package pdf extracts text from documents and renders generated notes to PDF.
package pdf

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/interfaces"
)

// Extraction methods reported in ExtractionResult.Method
const (
	MethodStructured = "structured"
	MethodOCR        = "ocr"
	MethodNone       = "none"
)

// Extractor prefers the embedded text layer and falls back to OCR
type Extractor struct {
	reader     PageReader
	recognizer Recognizer
	logger     arbor.ILogger
}

var _ interfaces.TextExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor. A nil recognizer disables the OCR fallback.
func NewExtractor(reader PageReader, recognizer Recognizer, logger arbor.ILogger) *Extractor {
	return &Extractor{
		reader:     reader,
		recognizer: recognizer,
		logger:     logger,
	}
}

// Extract returns the document text. Reader and OCR failures are logged and
// degrade to empty text; only context errors are returned.
func (e *Extractor) Extract(ctx context.Context, path string) (*interfaces.ExtractionResult, error) {
	result := &interfaces.ExtractionResult{Method: MethodNone}

	if meta, err := Inspect(path); err != nil {
		e.logger.Debug().Err(err).Str("path", path).Msg("PDF metadata unavailable")
	} else {
		result.PageCount = meta.PageCount
		if meta.IsEncrypted {
			e.logger.Warn().Str("path", path).Msg("PDF is encrypted, text layer may be unreadable")
		}
	}

	pages, err := e.reader.ReadPages(ctx, path)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("Structured text extraction failed, falling back to OCR")
	} else {
		if result.PageCount == 0 {
			result.PageCount = len(pages)
		}
		text := strings.Join(pages, "\n")
		if strings.TrimSpace(text) != "" {
			result.Text = text
			result.Method = MethodStructured
			e.logger.Debug().Str("path", path).Int("pages", len(pages)).Int("text_length", len(text)).Msg("Extracted text layer")
			return result, nil
		}
		e.logger.Info().Str("path", path).Msg("No embedded text layer, falling back to OCR")
	}

	if e.recognizer == nil {
		return result, nil
	}

	text, err := e.recognizer.Recognize(ctx, path, result.PageCount)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("OCR failed, document yields no text")
		return result, nil
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Info().Str("path", path).Msg("OCR produced no text")
		return result, nil
	}

	result.Text = text
	result.Method = MethodOCR
	e.logger.Debug().Str("path", path).Int("text_length", len(text)).Msg("Extracted text by OCR")
	return result, nil
}
