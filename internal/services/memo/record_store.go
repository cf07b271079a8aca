package memo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/models"
)

// RecordKeyPrefix namespaces generation records inside the key/value store
const RecordKeyPrefix = "generation:"

// KVRecordStore stores generation records as JSON values in a KeyValueStorage
type KVRecordStore struct {
	kv interfaces.KeyValueStorage
}

var _ interfaces.RecordStore = (*KVRecordStore)(nil)

func NewKVRecordStore(kv interfaces.KeyValueStorage) *KVRecordStore {
	return &KVRecordStore{kv: kv}
}

func recordKey(requestID string) string {
	return RecordKeyPrefix + requestID
}

func (s *KVRecordStore) Get(ctx context.Context, requestID string) (*models.GenerationRecord, error) {
	value, err := s.kv.Get(ctx, recordKey(requestID))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation record: %w", err)
	}

	var record models.GenerationRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, fmt.Errorf("failed to decode generation record %s: %w", requestID, err)
	}
	return &record, nil
}

func (s *KVRecordStore) Put(ctx context.Context, record *models.GenerationRecord) error {
	if record.RequestID == "" {
		return fmt.Errorf("generation record requires a request id")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode generation record: %w", err)
	}
	description := fmt.Sprintf("%s for %q (user %s)", record.Kind, record.Topic, record.UserID)
	if err := s.kv.Set(ctx, recordKey(record.RequestID), string(data), description); err != nil {
		return fmt.Errorf("failed to store generation record: %w", err)
	}
	return nil
}

func (s *KVRecordStore) Exists(ctx context.Context, requestID string) (bool, error) {
	return s.kv.Exists(ctx, recordKey(requestID))
}

// List returns every record, oldest first
func (s *KVRecordStore) List(ctx context.Context) ([]models.GenerationRecord, error) {
	pairs, err := s.kv.ListByPrefix(ctx, RecordKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation records: %w", err)
	}

	records := make([]models.GenerationRecord, 0, len(pairs))
	for _, pair := range pairs {
		var record models.GenerationRecord
		if err := json.Unmarshal([]byte(pair.Value), &record); err != nil {
			return nil, fmt.Errorf("failed to decode generation record %s: %w", strings.TrimPrefix(pair.Key, RecordKeyPrefix), err)
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].RequestID < records[j].RequestID
	})
	return records, nil
}
