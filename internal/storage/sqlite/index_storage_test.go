package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/models"
)

func TestIndexStorage_AddIsIdempotent(t *testing.T) {
	index := NewIndexStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	entry := &models.IndexedEntry{ID: "hash-a", Source: "a.pdf", UserID: "u1", Text: "cells", Embedding: []float32{1, 0}, IndexedAt: time.Now()}

	added, err := index.Add(ctx, entry)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = index.Add(ctx, &models.IndexedEntry{ID: "hash-a", Source: "renamed.pdf", Text: "other"})
	require.NoError(t, err)
	assert.False(t, added)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := index.Get(ctx, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", stored.Source)
	assert.Equal(t, "cells", stored.Text)
}

func TestIndexStorage_QueryScopesByFilter(t *testing.T) {
	index := NewIndexStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := index.Add(ctx, &models.IndexedEntry{ID: "a", Source: "a.pdf", UserID: "u1", Text: "alpha", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	_, err = index.Add(ctx, &models.IndexedEntry{ID: "b", Source: "b.pdf", UserID: "u2", Text: "beta", Embedding: []float32{0.6, 0.8}})
	require.NoError(t, err)

	passages, err := index.Query(ctx, []float32{1, 0}, 3, 0, models.IndexFilter{})
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "a", passages[0].DocumentID)

	passages, err = index.Query(ctx, []float32{1, 0}, 3, 0, models.IndexFilter{DocumentID: "b"})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "beta", passages[0].Text)

	passages, err = index.Query(ctx, []float32{1, 0}, 3, 0, models.IndexFilter{UserID: "u2", Source: "b.pdf"})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "b", passages[0].DocumentID)

	passages, err = index.Query(ctx, []float32{1, 0}, 3, 0, models.IndexFilter{DocumentID: "missing"})
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestIndexStorage_PurgeAndList(t *testing.T) {
	index := NewIndexStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	now := time.Now()
	_, err := index.Add(ctx, &models.IndexedEntry{ID: "a", Source: "a.pdf", IndexedAt: now})
	require.NoError(t, err)
	_, err = index.Add(ctx, &models.IndexedEntry{ID: "b", Source: "b.pdf", Empty: true, IndexedAt: now.Add(time.Second)})
	require.NoError(t, err)

	summaries, err := index.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "a", summaries[0].ID)
	assert.True(t, summaries[1].Empty)

	ids, err := index.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, index.Purge(ctx, "a"))
	assert.ErrorIs(t, index.Purge(ctx, "a"), interfaces.ErrKeyNotFound)

	has, err := index.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestIndexStorage_EmbeddingRoundTrip(t *testing.T) {
	index := NewIndexStorage(setupTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	vector := []float32{0.125, -1.5, 3.25}
	_, err := index.Add(ctx, &models.IndexedEntry{ID: "v", Source: "v.pdf", Text: "vec", Embedding: vector, PageCount: 4})
	require.NoError(t, err)

	stored, err := index.Get(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, vector, stored.Embedding)
	assert.Equal(t, 4, stored.PageCount)
	assert.False(t, stored.IndexedAt.IsZero())
}
