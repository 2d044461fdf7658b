package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/novelsync/internal/response"
	"github.com/weiwangfds/novelsync/internal/service/autosave"
	"github.com/weiwangfds/novelsync/internal/service/orchestrator"
	"github.com/weiwangfds/novelsync/internal/service/store"
)

// NovelHandler 作品处理器
type NovelHandler struct {
	store     *store.Store
	scheduler *autosave.Scheduler
	sync      *orchestrator.Orchestrator
	lang      string
}

// NewNovelHandler 创建作品处理器实例
func NewNovelHandler(st *store.Store, scheduler *autosave.Scheduler, sync *orchestrator.Orchestrator, lang string) *NovelHandler {
	return &NovelHandler{store: st, scheduler: scheduler, sync: sync, lang: lang}
}

// CreateNovelRequest 新建作品请求
type CreateNovelRequest struct {
	Title    string   `json:"title" binding:"required"`
	FolderID string   `json:"folder_id"`
	Tags     []string `json:"tags"`
}

// CreateNovel 新建作品
// @Summary 新建作品
// @Tags 作品
// @Router /api/v1/novels [post]
func (h *NovelHandler) CreateNovel(c *gin.Context) {
	var req CreateNovelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	novel, err := h.store.CreateNovel(c.Request.Context(), req.Title, req.FolderID, req.Tags)
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}

	h.sync.PushEntityAsync(novel)
	response.Created(c, novel)
}

// ListNovels 列出全部作品
// @Router /api/v1/novels [get]
func (h *NovelHandler) ListNovels(c *gin.Context) {
	novels, err := h.store.ReadAllEntities(c.Request.Context())
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, novels)
}

// GetNovel 获取作品
// @Router /api/v1/novels/{id} [get]
func (h *NovelHandler) GetNovel(c *gin.Context) {
	novel, err := h.store.ReadEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, novel)
}

// UpdateNovel 提交编辑，防抖后保存
// @Summary 编辑作品(自动保存)
// @Description 合并到待保存内容并重置防抖定时器，返回202
// @Router /api/v1/novels/{id} [patch]
func (h *NovelHandler) UpdateNovel(c *gin.Context) {
	id := c.Param("id")
	var patch autosave.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := h.store.ReadEntity(c.Request.Context(), id); err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	h.scheduler.ScheduleSave(id, patch)
	response.Accepted(c, "scheduled", gin.H{"id": id})
}

// SaveNovel 立即保存
// @Router /api/v1/novels/{id}/save [post]
func (h *NovelHandler) SaveNovel(c *gin.Context) {
	novel, err := h.scheduler.Flush(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, novel)
}

// DeleteNovel 删除作品，本地删除总是生效，云端尽力删除
// @Router /api/v1/novels/{id} [delete]
func (h *NovelHandler) DeleteNovel(c *gin.Context) {
	id := c.Param("id")
	h.scheduler.Discard(id)
	if err := h.sync.DeleteEntity(c.Request.Context(), id); err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, gin.H{"id": id})
}
