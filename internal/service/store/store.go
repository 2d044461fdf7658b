// Package store 实现本地数据存储
// 同步核心只通过 ReadEntity/WriteEntity/ReadAllEntities/ReadSettingsBundle/WriteSettingsBundle 访问本地数据
// 并发写入方(自动保存、拉取合并)使用按版本比较的 UpdateEntity 和只插入的 InsertEntity
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/novelsync/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEntityNotFound 作品不存在
var ErrEntityNotFound = errors.New("novel not found")

// SettingsBundle 设置与元数据包(文件夹、标签、设置项)
type SettingsBundle struct {
	Folders  []database.Folder `json:"folders"`
	Tags     []database.Tag    `json:"tags"`
	Settings map[string]string `json:"settings"`
}

// Store 本地存储
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New 创建本地存储
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// ReadEntity 读取作品
func (s *Store) ReadEntity(ctx context.Context, id string) (*database.Novel, error) {
	var novel database.Novel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&novel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read novel %s: %w", id, err)
	}
	return &novel, nil
}

// WriteEntity 整体写入作品(不存在则插入)
// 版本号与修改时间由调用方决定，这里原样保存；已存储的版本更高时不覆盖
func (s *Store) WriteEntity(ctx context.Context, novel *database.Novel) error {
	if err := validate(novel); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		UpdateAll: true,
		Where:     clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "novels.version <= excluded.version"}}},
	}).Create(novel).Error
	if err != nil {
		return fmt.Errorf("failed to write novel %s: %w", novel.ID, err)
	}
	return nil
}

// UpdateEntity 只在已存储版本仍为 expected 时覆盖作品
// 作品已被删除或被其他写入方修改时返回 false，不会插入新行
func (s *Store) UpdateEntity(ctx context.Context, novel *database.Novel, expected int64) (bool, error) {
	if err := validate(novel); err != nil {
		return false, err
	}
	if novel.Version < expected {
		return false, fmt.Errorf("novel %s version %d is lower than stored %d", novel.ID, novel.Version, expected)
	}
	result := s.db.WithContext(ctx).Model(&database.Novel{}).
		Where("id = ? AND version = ?", novel.ID, expected).
		Select("*").Omit("id", "created_at").
		Updates(novel)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update novel %s: %w", novel.ID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// InsertEntity 插入本地不存在的作品，同ID已存在时不做修改并返回 false
func (s *Store) InsertEntity(ctx context.Context, novel *database.Novel) (bool, error) {
	if err := validate(novel); err != nil {
		return false, err
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(novel)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert novel %s: %w", novel.ID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func validate(novel *database.Novel) error {
	if novel.ID == "" {
		return errors.New("novel id must not be empty")
	}
	if novel.Version < 1 {
		return fmt.Errorf("novel %s has invalid version %d", novel.ID, novel.Version)
	}
	return nil
}

// ReadAllEntities 读取全部作品，按修改时间倒序
func (s *Store) ReadAllEntities(ctx context.Context) ([]database.Novel, error) {
	var novels []database.Novel
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&novels).Error; err != nil {
		return nil, fmt.Errorf("failed to list novels: %w", err)
	}
	return novels, nil
}

// ReadSettingsBundle 读取文件夹、标签和设置项
func (s *Store) ReadSettingsBundle(ctx context.Context) (*SettingsBundle, error) {
	bundle := &SettingsBundle{Settings: map[string]string{}}
	db := s.db.WithContext(ctx)

	if err := db.Order("created_at").Find(&bundle.Folders).Error; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	if err := db.Order("created_at").Find(&bundle.Tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	var settings []database.Setting
	if err := db.Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	for _, st := range settings {
		bundle.Settings[st.Key] = st.Value
	}
	return bundle, nil
}

// WriteSettingsBundle 在一个事务内写入设置包，同ID记录被覆盖
func (s *Store) WriteSettingsBundle(ctx context.Context, bundle *SettingsBundle) error {
	if bundle == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := func() *gorm.DB { return tx.Clauses(clause.OnConflict{UpdateAll: true}) }
		if len(bundle.Folders) > 0 {
			if err := upsert().Create(&bundle.Folders).Error; err != nil {
				return fmt.Errorf("failed to write folders: %w", err)
			}
		}
		if len(bundle.Tags) > 0 {
			if err := upsert().Create(&bundle.Tags).Error; err != nil {
				return fmt.Errorf("failed to write tags: %w", err)
			}
		}
		if len(bundle.Settings) > 0 {
			rows := make([]database.Setting, 0, len(bundle.Settings))
			for k, v := range bundle.Settings {
				rows = append(rows, database.Setting{Key: k, Value: v})
			}
			if err := upsert().Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to write settings: %w", err)
			}
		}
		return nil
	})
}

// CreateNovel 新建作品，版本号为1
func (s *Store) CreateNovel(ctx context.Context, title, folderID string, tags []string) (*database.Novel, error) {
	now := s.now()
	novel := &database.Novel{
		ID:        uuid.New().String(),
		Title:     title,
		FolderID:  folderID,
		Tags:      tags,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if novel.Tags == nil {
		novel.Tags = []string{}
	}
	if err := s.db.WithContext(ctx).Create(novel).Error; err != nil {
		return nil, fmt.Errorf("failed to create novel: %w", err)
	}
	return novel, nil
}

// DeleteNovel 删除作品，不存在返回 ErrEntityNotFound
func (s *Store) DeleteNovel(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Novel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete novel %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// MarkSynced 标记作品已同步
// 只有版本号未变时才更新，推送期间的新编辑不会被误标为已同步
func (s *Store) MarkSynced(ctx context.Context, id string, version int64, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&database.Novel{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{"last_sync_at": at, "is_syncing": false})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark novel %s synced: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CreateFolder 新建文件夹
func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (*database.Folder, error) {
	now := s.now()
	folder := &database.Folder{ID: uuid.New().String(), Name: name, ParentID: parentID, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Create(folder).Error; err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

// CreateTag 新建标签
func (s *Store) CreateTag(ctx context.Context, name, color string) (*database.Tag, error) {
	tag := &database.Tag{ID: uuid.New().String(), Name: name, Color: color, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

// PutSettings 写入设置项
func (s *Store) PutSettings(ctx context.Context, settings map[string]string) error {
	return s.WriteSettingsBundle(ctx, &SettingsBundle{Settings: settings})
}

// AppendSyncLog 追加同步日志
func (s *Store) AppendSyncLog(ctx context.Context, entry *database.SyncLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}

// ListSyncLogs 按时间倒序列出最近的同步日志
func (s *Store) ListSyncLogs(ctx context.Context, limit int) ([]database.SyncLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var logs []database.SyncLog
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	return logs, nil
}

// Reset 清空全部用户数据
func (s *Store) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&database.Novel{}, &database.Folder{}, &database.Tag{}, &database.Setting{}, &database.SyncLog{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to reset local data: %w", err)
			}
		}
		return nil
	})
}
