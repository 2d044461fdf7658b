package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/novelsync/internal/database"
	"github.com/weiwangfds/novelsync/internal/database/dbtest"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/service/auth"
	"github.com/weiwangfds/novelsync/internal/service/autosave"
	"github.com/weiwangfds/novelsync/internal/service/credential"
	"github.com/weiwangfds/novelsync/internal/service/kv"
	"github.com/weiwangfds/novelsync/internal/service/orchestrator"
	"github.com/weiwangfds/novelsync/internal/service/ratelimit"
	"github.com/weiwangfds/novelsync/internal/service/remote"
	"github.com/weiwangfds/novelsync/internal/service/remote/remotetest"
	"github.com/weiwangfds/novelsync/internal/service/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	engine    *gin.Engine
	store     *store.Store
	backend   *remotetest.MemoryBackend
	orch      *orchestrator.Orchestrator
	scheduler *autosave.Scheduler
}

func setupEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	st := store.New(db)
	backend := remotetest.NewMemoryBackend()
	authorizer := auth.NewLeaseAuthorizer(backend, 30)
	orch := orchestrator.New(orchestrator.Options{
		Store:            st,
		Backend:          backend,
		Tracker:          ratelimit.NewTracker(1000),
		Credentials:      credential.NewStore(kv.NewGormStore(db)),
		Authorizer:       authorizer,
		Naming:           remote.Naming{EntityPrefix: "novel-", BundleName: "bundle.json"},
		OperationTimeout: 5 * time.Second,
	})
	scheduler := autosave.New(st, orch, time.Hour)
	t.Cleanup(func() {
		_ = scheduler.Close(context.Background())
		orch.Close()
	})

	novels := NewNovelHandler(st, scheduler, orch, "en-US")
	meta := NewMetaHandler(st, "en-US")
	syncH := NewSyncHandler(orch, scheduler, authorizer, nil, "en-US")

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/novels", novels.CreateNovel)
	api.GET("/novels", novels.ListNovels)
	api.GET("/novels/:id", novels.GetNovel)
	api.PATCH("/novels/:id", novels.UpdateNovel)
	api.POST("/novels/:id/save", novels.SaveNovel)
	api.DELETE("/novels/:id", novels.DeleteNovel)
	api.GET("/folders", meta.ListFolders)
	api.POST("/folders", meta.CreateFolder)
	api.GET("/settings", meta.GetSettings)
	api.PUT("/settings", meta.PutSettings)
	api.POST("/sync/signin", syncH.SignIn)
	api.POST("/sync/signout", syncH.SignOut)
	api.POST("/sync/manual", syncH.ManualSync)
	api.GET("/sync/status", syncH.Status)
	api.GET("/sync/quota", syncH.Quota)
	api.GET("/sync/logs", syncH.Logs)
	api.POST("/sync/online", syncH.Online)
	api.POST("/reset", syncH.Reset)
	r.GET("/oauth/callback", syncH.OAuthCallback)

	return &testEnv{engine: r, store: st, backend: backend, orch: orch, scheduler: scheduler}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestNovelEndpoints(t *testing.T) {
	e := setupEnv(t)

	w, env := e.do(t, http.MethodPost, "/api/v1/novels", gin.H{"title": "长夜"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created database.Novel
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, int64(1), created.Version)

	t.Run("缺少标题返回400", func(t *testing.T) {
		w, env := e.do(t, http.MethodPost, "/api/v1/novels", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int(apperrors.ErrInvalidParams), env.Code)
	})

	t.Run("编辑返回202并在保存后生效", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPatch, "/api/v1/novels/"+created.ID, gin.H{"content": "第一章"})
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.True(t, e.scheduler.Pending(created.ID))

		w, env := e.do(t, http.MethodPost, "/api/v1/novels/"+created.ID+"/save", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var saved database.Novel
		require.NoError(t, json.Unmarshal(env.Data, &saved))
		assert.Equal(t, "第一章", saved.Content)
		assert.Equal(t, int64(2), saved.Version)
		assert.False(t, e.scheduler.Pending(created.ID))
	})

	t.Run("编辑不存在的作品返回404", func(t *testing.T) {
		w, env := e.do(t, http.MethodPatch, "/api/v1/novels/missing", gin.H{"content": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, int(apperrors.ErrNotFound), env.Code)
	})

	t.Run("删除后读取返回404", func(t *testing.T) {
		w, _ := e.do(t, http.MethodDelete, "/api/v1/novels/"+created.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		w, _ = e.do(t, http.MethodGet, "/api/v1/novels/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMetaEndpoints(t *testing.T) {
	e := setupEnv(t)

	w, _ := e.do(t, http.MethodPost, "/api/v1/folders", gin.H{"name": "长篇"})
	require.Equal(t, http.StatusCreated, w.Code)
	w, env := e.do(t, http.MethodGet, "/api/v1/folders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var folders []database.Folder
	require.NoError(t, json.Unmarshal(env.Data, &folders))
	assert.Len(t, folders, 1)

	w, _ = e.do(t, http.MethodPut, "/api/v1/settings", map[string]string{"theme": "dark"})
	require.Equal(t, http.StatusOK, w.Code)
	_, env = e.do(t, http.MethodGet, "/api/v1/settings", nil)
	var settings map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, "dark", settings["theme"])
}

func TestSyncEndpoints(t *testing.T) {
	e := setupEnv(t)

	t.Run("未登录时手动同步返回401", func(t *testing.T) {
		w, env := e.do(t, http.MethodPost, "/api/v1/sync/manual", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, int(apperrors.ErrNotSignedIn), env.Code)
	})

	t.Run("对象存储登录直接完成", func(t *testing.T) {
		w, env := e.do(t, http.MethodPost, "/api/v1/sync/signin", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var st orchestrator.Status
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.True(t, st.IsSignedIn)
		assert.Equal(t, "signed_in", st.Phase)
	})

	t.Run("手动同步写入云端", func(t *testing.T) {
		_, err := e.store.CreateNovel(context.Background(), "同步", "", nil)
		require.NoError(t, err)
		w, _ := e.do(t, http.MethodPost, "/api/v1/sync/manual", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, e.backend.Count("bundle.json"))
	})

	t.Run("配额和日志", func(t *testing.T) {
		w, env := e.do(t, http.MethodGet, "/api/v1/sync/quota", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var q ratelimit.Quota
		require.NoError(t, json.Unmarshal(env.Data, &q))
		assert.Equal(t, 1000, q.DailyLimit)
		assert.Positive(t, q.Current)

		w, env = e.do(t, http.MethodGet, "/api/v1/sync/logs?limit=5", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var logs []database.SyncLog
		require.NoError(t, json.Unmarshal(env.Data, &logs))
		assert.NotEmpty(t, logs)
	})

	t.Run("网络状态上报", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, "/api/v1/sync/online", gin.H{"online": false})
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("没有浏览器登录时回调返回404", func(t *testing.T) {
		w, _ := e.do(t, http.MethodGet, "/oauth/callback?state=x&code=y", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("重置后退出登录并清空数据", func(t *testing.T) {
		w, env := e.do(t, http.MethodPost, "/api/v1/reset", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var st orchestrator.Status
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.False(t, st.IsSignedIn)

		novels, err := e.store.ReadAllEntities(context.Background())
		require.NoError(t, err)
		assert.Empty(t, novels)
	})
}
