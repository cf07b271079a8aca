package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// IndexStorage implements the DocumentIndex interface for Badger.
// Entries are stored whole and ranked in memory after a badgerhold filter.
type IndexStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewIndexStorage creates a new IndexStorage instance
func NewIndexStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentIndex {
	return &IndexStorage{
		db:     db,
		logger: logger,
	}
}

func (s *IndexStorage) ListIDs(ctx context.Context) ([]string, error) {
	var entries []models.IndexedEntry
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list index ids: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return ids, nil
}

func (s *IndexStorage) Has(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add inserts the entry unless its ID already exists
func (s *IndexStorage) Add(ctx context.Context, entry *models.IndexedEntry) (bool, error) {
	if entry.ID == "" {
		return false, fmt.Errorf("index entry id cannot be empty")
	}

	err := s.db.Store().Insert(entry.ID, entry)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		s.logger.Debug().Str("document_id", entry.ID).Msg("Index entry already present, skipping insert")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert index entry: %w", err)
	}
	return true, nil
}

func (s *IndexStorage) Get(ctx context.Context, id string) (*models.IndexedEntry, error) {
	var entry models.IndexedEntry
	err := s.db.Store().Get(id, &entry)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index entry: %w", err)
	}
	return &entry, nil
}

// Query ranks entries matching filter by cosine similarity to vector
func (s *IndexStorage) Query(ctx context.Context, vector []float32, k int, minScore float64, filter models.IndexFilter) ([]models.Passage, error) {
	var entries []models.IndexedEntry

	if filter.DocumentID != "" {
		entry, err := s.Get(ctx, filter.DocumentID)
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return []models.Passage{}, nil
		}
		if err != nil {
			return nil, err
		}
		entries = []models.IndexedEntry{*entry}
	} else {
		if err := s.db.Store().Find(&entries, filterQuery(filter)); err != nil {
			return nil, fmt.Errorf("failed to query index: %w", err)
		}
	}

	return common.RankEntries(entries, vector, k, minScore, filter), nil
}

// filterQuery builds a badgerhold query over the indexed metadata fields; nil selects all
func filterQuery(filter models.IndexFilter) *badgerhold.Query {
	var query *badgerhold.Query
	if filter.Source != "" {
		query = badgerhold.Where("Source").Eq(filter.Source)
	}
	if filter.UserID != "" {
		if query == nil {
			query = badgerhold.Where("UserID").Eq(filter.UserID)
		} else {
			query = query.And("UserID").Eq(filter.UserID)
		}
	}
	return query
}

func (s *IndexStorage) Purge(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.IndexedEntry{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to purge index entry: %w", err)
	}
	s.logger.Info().Str("document_id", id).Msg("Purged index entry")
	return nil
}

func (s *IndexStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.IndexedEntry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count index entries: %w", err)
	}
	return int(count), nil
}

func (s *IndexStorage) List(ctx context.Context) ([]models.DocumentSummary, error) {
	var entries []models.IndexedEntry
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].IndexedAt.Before(entries[j].IndexedAt)
	})
	summaries := make([]models.DocumentSummary, 0, len(entries))
	for i := range entries {
		summaries = append(summaries, entries[i].Summary())
	}
	return summaries, nil
}
