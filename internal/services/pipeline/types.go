package pipeline

import (
	"github.com/ternarybob/studygen/internal/services/prompt"
)

// Status discriminates the outcome of a run
type Status string

const (
	StatusOK               Status = "ok"
	StatusNoContent        Status = "no_content"
	StatusInvalidParameter Status = "invalid_parameter"
	StatusUpstreamError    Status = "upstream_error"
)

// DetailTimeout is the detail reported when a run exceeds its timeout
const DetailTimeout = "upstream timeout"

// Request is one generation run
type Request struct {
	DocumentPath    string      `json:"document_path" validate:"required"`
	Topic           string      `json:"topic" validate:"required,max=1000"`
	Task            prompt.Task `json:"task" validate:"required"`
	UserID          string      `json:"user_id" validate:"required,max=256"`
	ForceRegenerate bool        `json:"force_regenerate"`
}

// Result is always returned by Run; Status says which fields are meaningful
type Result struct {
	Status     Status `json:"status"`
	Text       string `json:"text,omitempty"`
	Markdown   string `json:"markdown,omitempty"` // notes as generated, before CleanNotes
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	RunID      string `json:"run_id"`
}

// OK reports whether the run produced text
func (r *Result) OK() bool {
	return r.Status == StatusOK
}
