package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/novelsync/config"
)

func TestInit(t *testing.T) {
	t.Run("创建数据库并迁移", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "data", "test.db")
		db, err := Init(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
		require.NoError(t, err)

		for _, table := range []string{"novels", "folders", "tags", "settings", "kv_store", "sync_logs"} {
			assert.True(t, db.Migrator().HasTable(table), table)
		}
		assert.True(t, db.Migrator().HasIndex(&Novel{}, "idx_novels_folder_updated"))
	})

	t.Run("不支持的驱动", func(t *testing.T) {
		_, err := Init(config.DatabaseConfig{Driver: "postgres"})
		assert.Error(t, err)
	})
}
