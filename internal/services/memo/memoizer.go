// Package memo caches generation results per (user, topic, task parameters).
package memo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/models"
)

// Memoizer looks up and records generation results by request id
type Memoizer struct {
	store  interfaces.RecordStore
	locker interfaces.KeyedLocker
	logger arbor.ILogger
}

func NewMemoizer(store interfaces.RecordStore, locker interfaces.KeyedLocker, logger arbor.ILogger) *Memoizer {
	return &Memoizer{store: store, locker: locker, logger: logger}
}

// Lookup returns the stored record for requestID, or nil when there is none
func (m *Memoizer) Lookup(ctx context.Context, requestID string) (*models.GenerationRecord, error) {
	record, err := m.store.Get(ctx, requestID)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Persist overwrites the record for record.RequestID. CreatedAt survives overwrites.
func (m *Memoizer) Persist(ctx context.Context, record *models.GenerationRecord) error {
	unlock, err := m.locker.Lock(ctx, "record:"+record.RequestID)
	if err != nil {
		return fmt.Errorf("failed to lock record %s: %w", record.RequestID, err)
	}
	defer unlock()

	now := time.Now()
	record.CreatedAt = now
	if previous, err := m.Lookup(ctx, record.RequestID); err != nil {
		return err
	} else if previous != nil {
		record.CreatedAt = previous.CreatedAt
	}
	record.UpdatedAt = now

	if err := m.store.Put(ctx, record); err != nil {
		return err
	}

	m.logger.Debug().
		Str("request_id", record.RequestID).
		Str("kind", string(record.Kind)).
		Str("user_id", record.UserID).
		Msg("Generation record persisted")
	return nil
}

// Records returns every stored record, oldest first
func (m *Memoizer) Records(ctx context.Context) ([]models.GenerationRecord, error) {
	return m.store.List(ctx)
}
