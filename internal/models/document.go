package models

import (
	"time"
)

// IndexedEntry is the single vector-index entry for one unique document.
// The ID is the SHA-256 hex digest of the raw document bytes.
type IndexedEntry struct {
	ID        string    `json:"id"`
	Source    string    `json:"source" badgerhold:"index"`  // Path the document was first indexed from
	UserID    string    `json:"user_id" badgerhold:"index"` // Owner that first indexed it
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Empty     bool      `json:"empty"` // No text could be extracted; never returned by queries
	PageCount int       `json:"page_count"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Searchable reports whether the entry can take part in similarity queries
func (e *IndexedEntry) Searchable() bool {
	return !e.Empty && len(e.Embedding) > 0
}

// IndexFilter restricts a query to entries whose metadata matches every non-empty field
type IndexFilter struct {
	DocumentID string
	Source     string
	UserID     string
}

// Matches reports whether the entry satisfies the filter
func (f IndexFilter) Matches(e *IndexedEntry) bool {
	if f.DocumentID != "" && e.ID != f.DocumentID {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	return true
}

// Passage is one ranked retrieval result
type Passage struct {
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// DocumentSummary describes an indexed document without its text or vector
type DocumentSummary struct {
	ID        string    `json:"id" yaml:"id"`
	Source    string    `json:"source" yaml:"source"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Empty     bool      `json:"empty" yaml:"empty"`
	TextChars int       `json:"text_chars" yaml:"text_chars"`
	IndexedAt time.Time `json:"indexed_at" yaml:"indexed_at"`
}

// Summary returns the summary view of the entry
func (e *IndexedEntry) Summary() DocumentSummary {
	return DocumentSummary{
		ID:        e.ID,
		Source:    e.Source,
		UserID:    e.UserID,
		Empty:     e.Empty,
		TextChars: len(e.Text),
		IndexedAt: e.IndexedAt,
	}
}
