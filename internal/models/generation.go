package models

import (
	"time"
)

// TaskKind names the kind of study content a request generates
type TaskKind string

const (
	TaskKindNotes TaskKind = "notes"
	TaskKindQuiz  TaskKind = "quiz"
)

// GenerationRecord is the persisted result of one generation request.
// Records are keyed by the deterministic request ID and overwritten only on forced regeneration.
type GenerationRecord struct {
	RequestID   string    `json:"request_id" yaml:"request_id"`
	Kind        TaskKind  `json:"kind" yaml:"kind"`
	Topic       string    `json:"topic" yaml:"topic"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	DetailLevel string    `json:"detail_level,omitempty" yaml:"detail_level,omitempty"`
	QuizType    string    `json:"type,omitempty" yaml:"type,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	DocumentID  string    `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Text        string    `json:"text" yaml:"text"`
	Markdown    string    `json:"markdown,omitempty" yaml:"markdown,omitempty"` // Raw notes markup, kept for PDF export
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}
