package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
)

func perform(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-1")
	fn(c)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestSuccessUsesCurrentTime(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	w, resp := perform(t, func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, fixed.Unix(), resp.Timestamp)
}

func TestErrorMapsCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperrors.New(apperrors.ErrRateLimitExceeded, ""), http.StatusTooManyRequests},
		{apperrors.New(apperrors.ErrSyncInProgress, ""), http.StatusConflict},
		{apperrors.New(apperrors.ErrAuth, ""), http.StatusUnauthorized},
		{apperrors.New(apperrors.ErrRemoteWrite, ""), http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w, resp := perform(t, func(c *gin.Context) { Error(c, tc.err, "en-US") })
		assert.Equal(t, tc.status, w.Code)
		assert.Equal(t, int(apperrors.CodeOf(tc.err)), resp.Code)
		assert.NotEmpty(t, resp.Message)
	}
}
