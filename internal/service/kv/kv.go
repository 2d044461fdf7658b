// Package kv 提供本地持久化键值存储
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiwangfds/novelsync/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 键值存储接口
type Store interface {
	// Get 读取键值，不存在时返回 nil, nil
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 整体覆盖写入
	Set(ctx context.Context, key string, value []byte) error
	// Delete 删除键，不存在不报错
	Delete(ctx context.Context, key string) error
}

// GormStore 基于 gorm 的键值存储
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建键值存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row database.KeyValue
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	return []byte(row.Value), nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	row := database.KeyValue{Key: key, Value: string(value), UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set kv[%s]: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&database.KeyValue{}).Error; err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	return nil
}
