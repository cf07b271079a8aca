package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
)

// setupTestDB opens a badger database in a temp dir and closes it on cleanup
func setupTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")}
	db, err := NewBadgerDB(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestKVStorage_SetAndGet(t *testing.T) {
	storage := NewKVStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "gemini_api_key", "secret", "Gemini key"))

	value, err := storage.Get(ctx, "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "secret", value)

	pair, err := storage.GetPair(ctx, "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "Gemini key", pair.Description)
	assert.False(t, pair.CreatedAt.IsZero())
}

func TestKVStorage_SetOverwritesAndPreservesCreatedAt(t *testing.T) {
	storage := NewKVStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "k", "v1", ""))
	first, err := storage.GetPair(ctx, "k")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, storage.Set(ctx, "k", "v2", ""))

	second, err := storage.GetPair(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Value)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestKVStorage_NotFound(t *testing.T) {
	storage := NewKVStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := storage.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	exists, err := storage.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, storage.Delete(ctx, "missing"), interfaces.ErrKeyNotFound)
}

func TestKVStorage_ListByPrefix(t *testing.T) {
	storage := NewKVStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "generation:aaa", "1", ""))
	require.NoError(t, storage.Set(ctx, "generation:bbb", "2", ""))
	require.NoError(t, storage.Set(ctx, "gemini_api_key", "3", ""))
	require.NoError(t, storage.Set(ctx, "generation.x", "4", ""))

	pairs, err := storage.ListByPrefix(ctx, "generation:")
	require.NoError(t, err)
	assert.Len(t, pairs, 2)

	all, err := storage.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, storage.Delete(ctx, "generation:aaa"))
	exists, err := storage.Exists(ctx, "generation:aaa")
	require.NoError(t, err)
	assert.False(t, exists)
}
