// Package database 定义本地持久化模型
// 本地库是数据的权威来源，云端只是镜像
package database

import (
	"time"
)

// Novel 作品(同步实体)
// Version 每次本地持久化写入严格加一，UpdatedAt 由写入方设置，不由 gorm 自动维护
type Novel struct {
	ID         string     `gorm:"primarykey;size:36" json:"id"`                 // UUID
	Title      string     `gorm:"size:255" json:"title"`                        // 标题
	Content    string     `gorm:"type:text" json:"content"`                     // 正文
	FolderID   string     `gorm:"size:36;index" json:"folder_id"`               // 所属文件夹，空为根目录
	Tags       []string   `gorm:"serializer:json" json:"tags"`                  // 标签ID列表
	Version    int64      `gorm:"not null;default:1" json:"version"`            // 版本号，从1开始
	CreatedAt  time.Time  `json:"created_at"`                                   // 创建时间
	UpdatedAt  time.Time  `gorm:"autoUpdateTime:false;index" json:"updated_at"` // 最后修改时间
	LastSyncAt *time.Time `json:"last_sync_at"`                                 // 最后同步时间
	IsSyncing  bool       `gorm:"default:false" json:"is_syncing"`              // 是否正在同步
}

// TableName 指定表名
func (Novel) TableName() string {
	return "novels"
}

// Folder 文件夹
type Folder struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ParentID  string    `gorm:"size:36;index" json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Folder) TableName() string {
	return "folders"
}

// Tag 标签
type Tag struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Color     string    `gorm:"size:20" json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Tag) TableName() string {
	return "tags"
}

// Setting 用户设置(键值)
type Setting struct {
	Key   string `gorm:"primarykey;size:100" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}

// KeyValue 内部持久化键值，保存凭据和配额窗口
type KeyValue struct {
	Key       string `gorm:"primarykey;size:100"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (KeyValue) TableName() string {
	return "kv_store"
}

// 同步操作类型
const (
	SyncOpPull   = "pull"
	SyncOpPush   = "push"
	SyncOpEntity = "entity"
	SyncOpDelete = "delete"
)

// 同步日志状态
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusSkipped = "skipped"
)

// SyncLog 同步日志
// 记录每次拉取、推送和单实体推送的结果，用于排查和界面展示
type SyncLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Operation string    `gorm:"not null;size:20;index" json:"operation"` // pull / push / entity / delete
	Target    string    `gorm:"size:255" json:"target"`                  // 远程文件名
	Status    string    `gorm:"not null;size:20" json:"status"`          // success / failed / skipped
	ErrorMsg  string    `gorm:"type:text" json:"error_msg"`
	Bytes     int64     `json:"bytes"`    // 传输字节数
	Duration  int64     `json:"duration"` // 耗时(毫秒)
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (SyncLog) TableName() string {
	return "sync_logs"
}
