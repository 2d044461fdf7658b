package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
)

// fakeDrive 模拟 Drive v3 接口的最小子集
type fakeDrive struct {
	mu        sync.Mutex
	status    int
	errReason string
	uploads   []FileMetadata
	bodies    [][]byte
	methods   []string
	lastQuery string
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    f.status,
				"message": "fail",
				"errors":  []map[string]string{{"reason": f.errReason}},
			},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/drive/v3/files":
		f.lastQuery = r.URL.Query().Get("q")
		_, _ = io.WriteString(w, `{"files":[{"id":"f-1","name":"novel-a.json","modifiedTime":"2024-05-01T10:00:00Z","size":"12"}]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/drive/v3/files/f-1":
		_, _ = io.WriteString(w, `{"title":"x"}`)
	case r.Method == http.MethodDelete && r.URL.Path == "/drive/v3/files/f-1":
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Path == "/drive/v3/about":
		_, _ = io.WriteString(w, `{"user":{"displayName":"writer"}}`)
	case strings.HasPrefix(r.URL.Path, "/upload/drive/v3/files"):
		if r.URL.Query().Get("uploadType") != "multipart" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		meta, content, err := DecodeMultipart(body, r.Header.Get("Content-Type"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.uploads = append(f.uploads, meta)
		f.bodies = append(f.bodies, content)
		f.methods = append(f.methods, r.Method)
		id := "f-new"
		if r.Method == http.MethodPatch {
			id = strings.TrimPrefix(r.URL.Path, "/upload/drive/v3/files/")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": meta.Name, "modifiedTime": "2024-05-02T10:00:00Z"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestDrive(t *testing.T, space string) (*DriveBackend, *fakeDrive) {
	fake := &fakeDrive{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := NewDriveBackend(context.Background(), srv.Client(), DriveOptions{
		APIBaseURL:    srv.URL + "/drive/v3/",
		UploadBaseURL: srv.URL + "/upload/drive/v3",
		Space:         space,
	})
	require.NoError(t, err)
	return b, fake
}

func TestDriveBackend(t *testing.T) {
	ctx := context.Background()
	b, fake := newTestDrive(t, "appDataFolder")

	t.Run("按名称查询", func(t *testing.T) {
		refs, err := b.List(ctx, "novel-'a'.json")
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "f-1", refs[0].FileID)
		assert.Equal(t, int64(12), refs[0].Size)
		assert.Equal(t, 2024, refs[0].ModifiedTime.Year())
		assert.Equal(t, `name = 'novel-\'a\'.json' and trashed = false`, fake.lastQuery)
	})

	t.Run("新建使用multipart并放入应用目录", func(t *testing.T) {
		ref, err := b.Create(ctx, "novel-b.json", []byte(`{"id":"b"}`))
		require.NoError(t, err)
		assert.Equal(t, "f-new", ref.FileID)
		require.Len(t, fake.uploads, 1)
		assert.Equal(t, http.MethodPost, fake.methods[0])
		assert.Equal(t, "novel-b.json", fake.uploads[0].Name)
		assert.Equal(t, []string{"appDataFolder"}, fake.uploads[0].Parents)
		assert.JSONEq(t, `{"id":"b"}`, string(fake.bodies[0]))
	})

	t.Run("覆盖使用PATCH", func(t *testing.T) {
		ref, err := b.Update(ctx, "f-1", []byte(`{"id":"a"}`))
		require.NoError(t, err)
		assert.Equal(t, "f-1", ref.FileID)
		assert.Equal(t, http.MethodPatch, fake.methods[1])
	})

	t.Run("下载与删除", func(t *testing.T) {
		data, err := b.Download(ctx, "f-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"title":"x"}`, string(data))
		require.NoError(t, b.Delete(ctx, "f-1"))
		require.NoError(t, b.TestConnection(ctx))
	})
}

func TestDriveBackendErrors(t *testing.T) {
	ctx := context.Background()
	b, fake := newTestDrive(t, "drive")

	fake.status = http.StatusUnauthorized
	_, err := b.List(ctx, "a.json")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrAuth))
	_, err = b.Create(ctx, "a.json", []byte("{}"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrAuth))

	fake.status = http.StatusTooManyRequests
	_, err = b.Update(ctx, "f-1", []byte("{}"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrRateLimitExceeded))

	fake.status = http.StatusForbidden
	fake.errReason = "userRateLimitExceeded"
	_, err = b.Download(ctx, "f-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrRateLimitExceeded))

	fake.status = http.StatusInternalServerError
	fake.errReason = "backendError"
	_, err = b.Download(ctx, "f-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrRemoteRead))
	err = b.Delete(ctx, "f-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrRemoteWrite))
}
