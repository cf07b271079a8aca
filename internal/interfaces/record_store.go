package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/studygen/internal/models"
)

// ErrRecordNotFound is returned when no generation record exists for a request ID
var ErrRecordNotFound = errors.New("generation record not found")

// RecordStore persists generation records by request ID (last-write-wins)
type RecordStore interface {
	Get(ctx context.Context, requestID string) (*models.GenerationRecord, error)
	Put(ctx context.Context, record *models.GenerationRecord) error
	Exists(ctx context.Context, requestID string) (bool, error)
	List(ctx context.Context) ([]models.GenerationRecord, error)
}
