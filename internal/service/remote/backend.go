// Package remote 把逻辑实体映射到云端文件
// 所有调用先经过配额计数，配额耗尽时不发起网络请求直接失败
package remote

import (
	"context"
	"time"
)

// FileRef 云端文件引用，只在一次同步周期内有效，不做缓存
type FileRef struct {
	FileID       string    `json:"file_id"`
	FileName     string    `json:"file_name"`
	ModifiedTime time.Time `json:"modified_time"`
	Size         int64     `json:"size"`
}

// Backend 云端存储后端
type Backend interface {
	// List 返回与 name 完全同名的文件，顺序由服务端决定
	List(ctx context.Context, name string) ([]FileRef, error)
	// Create 新建文件
	Create(ctx context.Context, name string, content []byte) (*FileRef, error)
	// Update 按ID覆盖文件内容
	Update(ctx context.Context, fileID string, content []byte) (*FileRef, error)
	// Download 读取文件原始内容
	Download(ctx context.Context, fileID string) ([]byte, error)
	// Delete 删除文件
	Delete(ctx context.Context, fileID string) error
}

// ConnectionTester 可以在登录时校验连通性的后端
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// Naming 云端文件命名规则
type Naming struct {
	EntityPrefix string
	BundleName   string
}

// EntityFile 单个作品对应的文件名
func (n Naming) EntityFile(id string) string {
	return n.EntityPrefix + id + ".json"
}
