// -----------------------------------------------------------------------
// Text Extractor Interface - plain text from a document path
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// PDFMetadata contains metadata about a PDF document
type PDFMetadata struct {
	PageCount   int   `json:"page_count"`
	FileSize    int64 `json:"file_size"`
	IsEncrypted bool  `json:"is_encrypted"`
}

// ExtractionResult is the text of a document and how it was obtained
type ExtractionResult struct {
	Text      string `json:"text"`
	Method    string `json:"method"` // "structured", "ocr" or "none"
	PageCount int    `json:"page_count"`
}

// TextExtractor turns a document path into plain text.
// Structured-layer failures fall back to OCR; an unreadable document yields empty
// text rather than an error. Only context cancellation is returned as an error.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (*ExtractionResult, error)
}
