package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
)

func TestNewStorageManager_Backends(t *testing.T) {
	for _, storageType := range []string{"badger", "sqlite"} {
		t.Run(storageType, func(t *testing.T) {
			config := common.NewDefaultConfig()
			config.Storage.Type = storageType
			config.Storage.Badger.Path = filepath.Join(t.TempDir(), "badger")
			config.Storage.SQLite.Path = filepath.Join(t.TempDir(), "studygen.db")

			manager, err := NewStorageManager(arbor.NewLogger(), config)
			require.NoError(t, err)
			defer manager.Close()

			ctx := context.Background()
			require.NoError(t, manager.KeyValueStorage().Set(ctx, "k", "v", ""))
			value, err := manager.KeyValueStorage().Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", value)

			count, err := manager.DocumentIndex().Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	}
}

func TestNewStorageManager_Unsupported(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Storage.Type = "postgres"

	_, err := NewStorageManager(arbor.NewLogger(), config)
	assert.Error(t, err)
}
