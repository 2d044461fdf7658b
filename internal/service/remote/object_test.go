package remote

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/novelsync/config"
	"github.com/weiwangfds/novelsync/internal/logger"
)

type mapStore struct {
	objects map[string][]byte
	pingErr error
}

func (m *mapStore) Put(_ context.Context, key string, content []byte) error {
	m.objects[key] = append([]byte(nil), content...)
	return nil
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (m *mapStore) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, nil
	}
	return &ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Unix(1700000000, 0)}, nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *mapStore) Ping(_ context.Context) error { return m.pingErr }

func TestObjectBackend(t *testing.T) {
	ctx := context.Background()
	store := &mapStore{objects: map[string][]byte{}}
	b := NewObjectBackend(store, "novelsync/")

	refs, err := b.List(ctx, "novel-a.json")
	require.NoError(t, err)
	assert.Empty(t, refs)

	ref, err := b.Create(ctx, "novel-a.json", []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, "novelsync/novel-a.json", ref.FileID)
	assert.Contains(t, store.objects, "novelsync/novel-a.json")

	refs, err = b.List(ctx, "novel-a.json")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "novel-a.json", refs[0].FileName)
	assert.Equal(t, int64(7), refs[0].Size)

	ref, err = b.Update(ctx, refs[0].FileID, []byte(`{"v":22}`))
	require.NoError(t, err)
	assert.Equal(t, "novel-a.json", ref.FileName)

	data, err := b.Download(ctx, ref.FileID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":22}`, string(data))

	require.NoError(t, b.Delete(ctx, ref.FileID))
	assert.Empty(t, store.objects)

	store.pingErr = errors.New("bucket gone")
	assert.Error(t, b.TestConnection(ctx))
}

func TestNewObjectStoreRejectsUnknownProvider(t *testing.T) {
	_, err := NewObjectStore(context.Background(), "ftp", config.ObjectConfig{}, nil)
	assert.Error(t, err)
}

func TestObjectInfoFromHeader(t *testing.T) {
	l := logger.GetLogger()
	level := l.GetLevel()
	l.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() { l.SetLevel(level) })
	hook := logtest.NewLocal(l)

	t.Run("正常响应头", func(t *testing.T) {
		h := http.Header{}
		h.Set("Content-Length", "42")
		h.Set("Last-Modified", "Wed, 01 May 2024 10:00:00 GMT")
		info := objectInfoFromHeader("测试", "k", h)
		assert.Equal(t, int64(42), info.Size)
		assert.True(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Equal(info.LastModified))
	})

	t.Run("格式错误时保留零值并记录调试日志", func(t *testing.T) {
		hook.Reset()
		h := http.Header{}
		h.Set("Content-Length", "abc")
		h.Set("Last-Modified", "yesterday")
		info := objectInfoFromHeader("测试", "k", h)
		assert.Zero(t, info.Size)
		assert.True(t, info.LastModified.IsZero())

		require.Len(t, hook.AllEntries(), 2)
		for _, e := range hook.AllEntries() {
			assert.Equal(t, logrus.DebugLevel, e.Level)
		}
		assert.Contains(t, hook.AllEntries()[0].Message, "Content-Length")
		assert.Contains(t, hook.AllEntries()[1].Message, "Last-Modified")
	})
}
