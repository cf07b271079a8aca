package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/models"
)

// IndexStorage implements the DocumentIndex interface for SQLite.
// Metadata filters run in SQL; similarity ranking runs in memory.
type IndexStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewIndexStorage creates a new IndexStorage instance
func NewIndexStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.DocumentIndex {
	return &IndexStorage{
		db:     db,
		logger: logger,
	}
}

const entryColumns = `id, source, user_id, text, embedding, empty, page_count, indexed_at`

func (s *IndexStorage) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.db.QueryContext(ctx, `SELECT id FROM document_index ORDER BY indexed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list index ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *IndexStorage) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.db.QueryRowContext(ctx, `SELECT 1 FROM document_index WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check index entry: %w", err)
	}
	return true, nil
}

// Add inserts the entry unless its ID already exists
func (s *IndexStorage) Add(ctx context.Context, entry *models.IndexedEntry) (bool, error) {
	if entry.ID == "" {
		return false, fmt.Errorf("index entry id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	indexedAt := entry.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}

	result, err := s.db.db.ExecContext(ctx, `
		INSERT INTO document_index (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, entry.ID, entry.Source, entry.UserID, entry.Text, encodeVector(entry.Embedding),
		boolToInt(entry.Empty), entry.PageCount, indexedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to insert index entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		s.logger.Debug().Str("document_id", entry.ID).Msg("Index entry already present, skipping insert")
		return false, nil
	}
	return true, nil
}

func (s *IndexStorage) Get(ctx context.Context, id string) (*models.IndexedEntry, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM document_index WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index entry: %w", err)
	}
	return entry, nil
}

// Query ranks entries matching filter by cosine similarity to vector
func (s *IndexStorage) Query(ctx context.Context, vector []float32, k int, minScore float64, filter models.IndexFilter) ([]models.Passage, error) {
	var conditions []string
	var args []interface{}
	conditions = append(conditions, "empty = 0")
	if filter.DocumentID != "" {
		conditions = append(conditions, "id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := `SELECT ` + entryColumns + ` FROM document_index WHERE ` + strings.Join(conditions, " AND ")
	entries, err := s.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	return common.RankEntries(entries, vector, k, minScore, filter), nil
}

func (s *IndexStorage) Purge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx, `DELETE FROM document_index WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to purge index entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return interfaces.ErrKeyNotFound
	}
	s.logger.Info().Str("document_id", id).Msg("Purged index entry")
	return nil
}

func (s *IndexStorage) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_index`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count index entries: %w", err)
	}
	return count, nil
}

func (s *IndexStorage) List(ctx context.Context) ([]models.DocumentSummary, error) {
	entries, err := s.queryEntries(ctx, `SELECT `+entryColumns+` FROM document_index ORDER BY indexed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	summaries := make([]models.DocumentSummary, 0, len(entries))
	for i := range entries {
		summaries = append(summaries, entries[i].Summary())
	}
	return summaries, nil
}

func (s *IndexStorage) queryEntries(ctx context.Context, query string, args ...interface{}) ([]models.IndexedEntry, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.IndexedEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*models.IndexedEntry, error) {
	var entry models.IndexedEntry
	var blob []byte
	var empty int
	var indexedAt int64
	err := row.Scan(&entry.ID, &entry.Source, &entry.UserID, &entry.Text, &blob, &empty, &entry.PageCount, &indexedAt)
	if err != nil {
		return nil, err
	}
	entry.Embedding = decodeVector(blob)
	entry.Empty = empty != 0
	entry.IndexedAt = time.UnixMilli(indexedAt)
	return &entry, nil
}

// encodeVector packs a vector as little-endian float32 values; nil stays NULL
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
