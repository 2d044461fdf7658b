package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weiwangfds/novelsync/internal/database/dbtest"
	"github.com/weiwangfds/novelsync/internal/middleware"
)

func TestHealthAndCORS(t *testing.T) {
	// 只访问不依赖处理器的路由
	r := NewRouter(Handlers{}, dbtest.Open(t))

	t.Run("健康检查", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("预检允许PATCH", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/novels/n-1", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		w := httptest.NewRecorder()
		r.GetEngine().ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	})
}
