package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	hash, err := ContentHash(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)
}

func TestHashCache_RehashesChangedFile(t *testing.T) {
	cache := NewHashCache()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0644))

	first, err := cache.Hash(path)
	require.NoError(t, err)
	cached, err := cache.Hash(path)
	require.NoError(t, err)
	assert.Equal(t, first, cached)
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, os.WriteFile(path, []byte("second version"), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := cache.Hash(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	// The rewritten file replaces its entry
	assert.Equal(t, 1, cache.Len())

	for i := 0; i < 5; i++ {
		later = later.Add(time.Minute)
		require.NoError(t, os.Chtimes(path, later, later))
		_, err = cache.Hash(path)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestHashCache_Errors(t *testing.T) {
	cache := NewHashCache()
	dir := t.TempDir()

	_, err := cache.Hash(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)

	_, err = cache.Hash(dir)
	assert.Error(t, err)
}
