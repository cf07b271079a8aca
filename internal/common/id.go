package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique pipeline run ID with the "run_" prefix.
// Run IDs correlate log lines and are never part of a cache key.
func NewRunID() string {
	return "run_" + uuid.New().String()
}
