package remote

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/weiwangfds/novelsync/internal/logger"
)

// ObjectInfo 对象元信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// objectInfoFromHeader 从响应头读取大小和修改时间
// 头部缺失或格式错误时对应字段保持零值，并记录调试日志
func objectInfoFromHeader(provider, key string, header http.Header) *ObjectInfo {
	info := &ObjectInfo{Key: key}
	if v := header.Get("Content-Length"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			logger.Debugf("[%s] 对象 %s 的 Content-Length 无法解析 %q: %v", provider, key, v, err)
		} else {
			info.Size = size
		}
	}
	if v := header.Get("Last-Modified"); v != "" {
		t, err := http.ParseTime(v)
		if err != nil {
			logger.Debugf("[%s] 对象 %s 的 Last-Modified 无法解析 %q: %v", provider, key, v, err)
		} else {
			info.LastModified = t
		}
	}
	return info
}

// ObjectStore 对象存储的最小操作集
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Stat 对象不存在时返回 nil, nil
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// ObjectBackend 基于对象存储的后端
// 文件名加前缀即对象键，同名文件最多一个，文件ID就是对象键
type ObjectBackend struct {
	store  ObjectStore
	prefix string
	now    func() time.Time
}

// NewObjectBackend 创建对象存储后端
func NewObjectBackend(store ObjectStore, prefix string) *ObjectBackend {
	return &ObjectBackend{store: store, prefix: prefix, now: time.Now}
}

func (b *ObjectBackend) key(name string) string {
	return b.prefix + name
}

func (b *ObjectBackend) List(ctx context.Context, name string) ([]FileRef, error) {
	info, err := b.store.Stat(ctx, b.key(name))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return []FileRef{{FileID: info.Key, FileName: name, ModifiedTime: info.LastModified, Size: info.Size}}, nil
}

func (b *ObjectBackend) Create(ctx context.Context, name string, content []byte) (*FileRef, error) {
	key := b.key(name)
	if err := b.store.Put(ctx, key, content); err != nil {
		return nil, err
	}
	return &FileRef{FileID: key, FileName: name, ModifiedTime: b.now(), Size: int64(len(content))}, nil
}

func (b *ObjectBackend) Update(ctx context.Context, fileID string, content []byte) (*FileRef, error) {
	if err := b.store.Put(ctx, fileID, content); err != nil {
		return nil, err
	}
	name := fileID[min(len(b.prefix), len(fileID)):]
	return &FileRef{FileID: fileID, FileName: name, ModifiedTime: b.now(), Size: int64(len(content))}, nil
}

func (b *ObjectBackend) Download(ctx context.Context, fileID string) ([]byte, error) {
	return b.store.Get(ctx, fileID)
}

func (b *ObjectBackend) Delete(ctx context.Context, fileID string) error {
	return b.store.Delete(ctx, fileID)
}

// TestConnection 检查存储桶可访问
func (b *ObjectBackend) TestConnection(ctx context.Context) error {
	return b.store.Ping(ctx)
}
