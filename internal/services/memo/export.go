package memo

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/studygen/internal/models"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// HistoryEntry is the exported view of one generation record. Notes and quizzes
// land in separate fields so the notes history keeps its familiar shape.
type HistoryEntry struct {
	Topic       string    `json:"topic" yaml:"topic"`
	DetailLevel string    `json:"detail_level,omitempty" yaml:"detail_level,omitempty"`
	QuizType    string    `json:"type,omitempty" yaml:"type,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	Quiz        string    `json:"quiz,omitempty" yaml:"quiz,omitempty"`
	RequestID   string    `json:"request_id" yaml:"request_id"`
	DocumentID  string    `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewHistoryEntry converts a record into its export view
func NewHistoryEntry(record models.GenerationRecord) HistoryEntry {
	entry := HistoryEntry{
		Topic:       record.Topic,
		DetailLevel: record.DetailLevel,
		QuizType:    record.QuizType,
		Difficulty:  record.Difficulty,
		UserID:      record.UserID,
		RequestID:   record.RequestID,
		DocumentID:  record.DocumentID,
		UpdatedAt:   record.UpdatedAt,
	}
	if record.Kind == models.TaskKindQuiz {
		entry.Quiz = record.Text
	} else {
		entry.Notes = record.Text
	}
	return entry
}

// ExportHistory writes records as a JSON array or YAML sequence. A non-empty
// userID keeps only that user's records.
func ExportHistory(w io.Writer, records []models.GenerationRecord, format, userID string) error {
	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		if userID != "" && record.UserID != userID {
			continue
		}
		entries = append(entries, NewHistoryEntry(record))
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case FormatYAML, "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(entries); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported export format: %s (expected 'json' or 'yaml')", format)
	}
}
