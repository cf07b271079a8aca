package memo

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/locks"
	"github.com/ternarybob/studygen/internal/models"
	"github.com/ternarybob/studygen/internal/storage/sqlite"
)

func setupStore(t *testing.T) *KVRecordStore {
	t.Helper()
	manager, err := sqlite.NewManager(arbor.NewLogger(), &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "memo.db"),
		BusyTimeoutMS: 1000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewKVRecordStore(manager.KeyValueStorage())
}

func TestRequestID_Deterministic(t *testing.T) {
	base := RequestID("alice", models.TaskKindNotes, "cells", "very detailed")
	assert.Equal(t, base, RequestID("alice", models.TaskKindNotes, "cells", "very detailed"))
	assert.Len(t, base, 64)

	variants := []string{
		RequestID("bob", models.TaskKindNotes, "cells", "very detailed"),
		RequestID("alice", models.TaskKindQuiz, "cells", "very detailed"),
		RequestID("alice", models.TaskKindNotes, "Cells", "very detailed"),
		RequestID("alice", models.TaskKindNotes, "cells", "small overview"),
		RequestID("alice", models.TaskKindNotes, "cells", "very detailed", "extra"),
	}
	seen := map[string]bool{base: true}
	for _, id := range variants {
		assert.False(t, seen[id], "changing any field must change the id")
		seen[id] = true
	}
}

func TestRequestID_FieldBoundaries(t *testing.T) {
	assert.NotEqual(t,
		RequestID("ab", models.TaskKindQuiz, "c", "mcq", "easy"),
		RequestID("a", models.TaskKindQuiz, "bc", "mcq", "easy"),
	)
}

func TestKVRecordStore_RoundTripAndList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	older := &models.GenerationRecord{RequestID: "r1", Kind: models.TaskKindNotes, Topic: "cells", UserID: "alice", Text: "notes", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.GenerationRecord{RequestID: "r2", Kind: models.TaskKindQuiz, Topic: "atoms", UserID: "bob", Text: "Q1.", CreatedAt: time.Now()}
	require.NoError(t, store.Put(ctx, newer))
	require.NoError(t, store.Put(ctx, older))

	exists, err := store.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "notes", got.Text)
	assert.Equal(t, "alice", got.UserID)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].RequestID)
	assert.Equal(t, "r2", records[1].RequestID)

	assert.Error(t, store.Put(ctx, &models.GenerationRecord{}))
}

func TestMemoizer_LookupAndPersist(t *testing.T) {
	memo := NewMemoizer(setupStore(t), locks.NewKeyedMutex(), arbor.NewLogger())
	ctx := context.Background()

	record, err := memo.Lookup(ctx, "req")
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, memo.Persist(ctx, &models.GenerationRecord{RequestID: "req", Kind: models.TaskKindNotes, Text: "first"}))
	first, err := memo.Lookup(ctx, "req")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "first", first.Text)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, memo.Persist(ctx, &models.GenerationRecord{RequestID: "req", Kind: models.TaskKindNotes, Text: "second"}))
	second, err := memo.Lookup(ctx, "req")
	require.NoError(t, err)
	assert.Equal(t, "second", second.Text)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "overwrite keeps the creation time")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	records, err := memo.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExportHistory(t *testing.T) {
	records := []models.GenerationRecord{
		{RequestID: "r1", Kind: models.TaskKindNotes, Topic: "cells", DetailLevel: "small overview", UserID: "alice", Text: "Cells are small"},
		{RequestID: "r2", Kind: models.TaskKindQuiz, Topic: "atoms", QuizType: "mcq", Difficulty: "easy", UserID: "bob", Text: "Q1. ..."},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportHistory(&buf, records, FormatJSON, ""))

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "cells", entries[0]["topic"])
	assert.Equal(t, "small overview", entries[0]["detail_level"])
	assert.Equal(t, "alice", entries[0]["user_id"])
	assert.Equal(t, "Cells are small", entries[0]["notes"])
	assert.Equal(t, "Q1. ...", entries[1]["quiz"])
	assert.NotContains(t, entries[1], "notes")

	buf.Reset()
	require.NoError(t, ExportHistory(&buf, records, FormatYAML, "bob"))
	var filtered []HistoryEntry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "atoms", filtered[0].Topic)
	assert.Equal(t, "mcq", filtered[0].QuizType)

	assert.Error(t, ExportHistory(&buf, records, "csv", ""))
}
