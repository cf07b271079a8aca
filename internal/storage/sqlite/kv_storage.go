package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/interfaces"
)

// KVStorage implements the KeyValueStorage interface for SQLite.
// Timestamps are stored as unix milliseconds.
type KVStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex // Prevents SQLITE_BUSY errors on concurrent writes
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a value by key
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := s.GetPair(ctx, key)
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

// GetPair retrieves a full KeyValuePair by key
func (s *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	query := `
		SELECT key, value, description, created_at, updated_at
		FROM key_value_store
		WHERE key = ?
	`

	row := s.db.db.QueryRowContext(ctx, query, strings.TrimSpace(key))
	pair, err := scanPair(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	return pair, nil
}

// Set inserts or updates a key/value pair
func (s *KVStorage) Set(ctx context.Context, key string, value string, description string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	query := `
		INSERT INTO key_value_store (key, value, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = excluded.description,
			updated_at = excluded.updated_at
	`

	_, err := s.db.db.ExecContext(ctx, query, key, value, description, now, now)
	if err != nil {
		return fmt.Errorf("failed to set key/value: %w", err)
	}

	return nil
}

// Exists reports whether a key is present
func (s *KVStorage) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.db.QueryRowContext(ctx, `SELECT 1 FROM key_value_store WHERE key = ?`, strings.TrimSpace(key)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return true, nil
}

// Delete removes a key/value pair
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx, `DELETE FROM key_value_store WHERE key = ?`, strings.TrimSpace(key))
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return interfaces.ErrKeyNotFound
	}

	return nil
}

// List returns all key/value pairs ordered by updated_at DESC
func (s *KVStorage) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	query := `
		SELECT key, value, description, created_at, updated_at
		FROM key_value_store
		ORDER BY updated_at DESC, key
	`
	return s.queryPairs(ctx, query)
}

// ListByPrefix returns the pairs whose key starts with prefix, ordered by updated_at DESC
func (s *KVStorage) ListByPrefix(ctx context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	query := `
		SELECT key, value, description, created_at, updated_at
		FROM key_value_store
		WHERE key LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC, key
	`
	return s.queryPairs(ctx, query, escapeLike(strings.TrimSpace(prefix))+"%")
}

func (s *KVStorage) queryPairs(ctx context.Context, query string, args ...interface{}) ([]interfaces.KeyValuePair, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}
	defer rows.Close()

	pairs := []interfaces.KeyValuePair{}
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		pairs = append(pairs, *pair)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return pairs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPair(row rowScanner) (*interfaces.KeyValuePair, error) {
	var pair interfaces.KeyValuePair
	var createdAt, updatedAt int64
	if err := row.Scan(&pair.Key, &pair.Value, &pair.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	pair.CreatedAt = time.UnixMilli(createdAt)
	pair.UpdatedAt = time.UnixMilli(updatedAt)
	return &pair, nil
}

// escapeLike escapes LIKE wildcards so the prefix matches literally
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
