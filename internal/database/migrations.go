package database

import (
	"fmt"

	"github.com/weiwangfds/novelsync/internal/logger"
	"gorm.io/gorm"
)

// Migrate 迁移全部表结构并创建复合索引
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Novel{},
		&Folder{},
		&Tag{},
		&Setting{},
		&KeyValue{},
		&SyncLog{},
	)
	if err != nil {
		return err
	}

	indexes := []string{
		// 文件夹内按修改时间列出作品
		"CREATE INDEX IF NOT EXISTS idx_novels_folder_updated ON novels(folder_id, updated_at DESC)",
		// 查找尚未同步的作品
		"CREATE INDEX IF NOT EXISTS idx_novels_last_sync ON novels(last_sync_at)",
		// 同步日志按操作类型倒序查询
		"CREATE INDEX IF NOT EXISTS idx_sync_logs_op_created ON sync_logs(operation, created_at DESC)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	logger.Debugf("[数据库] 表结构迁移完成")
	return nil
}
