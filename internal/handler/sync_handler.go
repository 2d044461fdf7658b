package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/response"
	"github.com/weiwangfds/novelsync/internal/service/auth"
	"github.com/weiwangfds/novelsync/internal/service/autosave"
	"github.com/weiwangfds/novelsync/internal/service/orchestrator"
)

// Connectivity 接收界面上报的网络状态
type Connectivity interface {
	Notify(online bool)
}

// CallbackCompleter 能够处理浏览器授权回调的登录能力
type CallbackCompleter interface {
	HandleCallback(state, code, errMsg string) error
}

// SyncHandler 登录与同步处理器
type SyncHandler struct {
	orch      *orchestrator.Orchestrator
	scheduler *autosave.Scheduler
	authURLs  <-chan string
	callback  CallbackCompleter
	net       Connectivity
	lang      string

	// signInWait 登录接口等待授权地址或登录结果的最长时间
	signInWait time.Duration
}

// NewSyncHandler 创建处理器实例，net 可以为空
func NewSyncHandler(orch *orchestrator.Orchestrator, scheduler *autosave.Scheduler, authorizer auth.Authorizer, net Connectivity, lang string) *SyncHandler {
	h := &SyncHandler{
		orch:       orch,
		scheduler:  scheduler,
		net:        net,
		lang:       lang,
		signInWait: 10 * time.Second,
	}
	if p, ok := authorizer.(auth.URLPublisher); ok {
		h.authURLs = p.AuthURLs()
	}
	if cb, ok := authorizer.(CallbackCompleter); ok {
		h.callback = cb
	}
	return h
}

// SignIn 开始登录
// 需要浏览器授权时返回202和授权地址，登录在后台完成
// @Router /api/v1/sync/signin [post]
func (h *SyncHandler) SignIn(c *gin.Context) {
	if st := h.orch.Status(); st.IsSignedIn {
		response.Success(c, st)
		return
	}
	h.drainURLs()

	done := h.orch.SignInAsync()

	timer := time.NewTimer(h.signInWait)
	defer timer.Stop()
	select {
	case u := <-h.authURLs:
		response.Accepted(c, "authorization required", gin.H{"auth_url": u})
	case err := <-done:
		if err != nil {
			fail(c, err, language(c, h.lang))
			return
		}
		response.Success(c, h.orch.Status())
	case <-timer.C:
		response.Accepted(c, "sign-in in progress", h.orch.Status())
	}
}

func (h *SyncHandler) drainURLs() {
	for {
		select {
		case <-h.authURLs:
		default:
			return
		}
	}
}

// OAuthCallback 浏览器授权回调
// @Router /oauth/callback [get]
func (h *SyncHandler) OAuthCallback(c *gin.Context) {
	if h.callback == nil {
		response.NotFound(c, "no browser sign-in configured")
		return
	}
	err := h.callback.HandleCallback(c.Query("state"), c.Query("code"), c.Query("error"))
	if err != nil {
		logger.Warnf("[同步接口] 授权回调失败: %v", err)
		c.String(http.StatusBadRequest, "授权失败，请回到应用重试。")
		return
	}
	c.String(http.StatusOK, "授权完成，可以关闭此页面。")
}

// SignOut 退出登录
// @Router /api/v1/sync/signout [post]
func (h *SyncHandler) SignOut(c *gin.Context) {
	if err := h.orch.SignOut(c.Request.Context()); err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, h.orch.Status())
}

// ManualSync 手动同步
// @Router /api/v1/sync/manual [post]
func (h *SyncHandler) ManualSync(c *gin.Context) {
	if err := h.orch.ManualSync(c.Request.Context()); err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, h.orch.Status())
}

// Pull 立即拉取
// @Router /api/v1/sync/pull [post]
func (h *SyncHandler) Pull(c *gin.Context) {
	if err := h.orch.Pull(c.Request.Context()); err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, h.orch.Status())
}

// Status 同步状态
// @Router /api/v1/sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	response.Success(c, h.orch.Status())
}

// Quota 配额信息
// @Router /api/v1/sync/quota [get]
func (h *SyncHandler) Quota(c *gin.Context) {
	response.Success(c, h.orch.RateLimitInfo())
}

// Logs 最近的同步日志
// @Router /api/v1/sync/logs [get]
func (h *SyncHandler) Logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.orch.Logs(c.Request.Context(), limit)
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, logs)
}

// OnlineRequest 网络状态上报
type OnlineRequest struct {
	Online bool `json:"online"`
}

// Online 界面上报网络状态
// @Router /api/v1/sync/online [post]
func (h *SyncHandler) Online(c *gin.Context) {
	var req OnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if h.net != nil {
		h.net.Notify(req.Online)
	} else if req.Online {
		h.orch.HandleOnlineAsync()
	}
	response.Accepted(c, "ok", nil)
}

// Events 以SSE推送同步状态变化
// @Router /api/v1/sync/events [get]
func (h *SyncHandler) Events(c *gin.Context) {
	ch := make(chan orchestrator.Status, 16)
	unsubscribe := h.orch.Subscribe(func(s orchestrator.Status) {
		select {
		case ch <- s:
		default:
		}
	})
	defer unsubscribe()

	ctx := c.Request.Context()
	c.SSEvent("status", h.orch.Status())
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case s := <-ch:
			c.SSEvent("status", s)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// Reset 清空全部数据
// @Router /api/v1/reset [post]
func (h *SyncHandler) Reset(c *gin.Context) {
	h.scheduler.DiscardAll()
	if err := h.orch.ResetAll(c.Request.Context()); err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, h.orch.Status())
}
