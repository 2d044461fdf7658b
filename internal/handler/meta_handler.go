package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/novelsync/internal/response"
	"github.com/weiwangfds/novelsync/internal/service/store"
)

// MetaHandler 文件夹、标签和设置
type MetaHandler struct {
	store *store.Store
	lang  string
}

// NewMetaHandler 创建处理器实例
func NewMetaHandler(st *store.Store, lang string) *MetaHandler {
	return &MetaHandler{store: st, lang: lang}
}

// CreateFolderRequest 新建文件夹请求
type CreateFolderRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parent_id"`
}

// CreateTagRequest 新建标签请求
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

// ListFolders 列出文件夹
func (h *MetaHandler) ListFolders(c *gin.Context) {
	bundle, err := h.store.ReadSettingsBundle(c.Request.Context())
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, bundle.Folders)
}

// CreateFolder 新建文件夹
func (h *MetaHandler) CreateFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	folder, err := h.store.CreateFolder(c.Request.Context(), req.Name, req.ParentID)
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Created(c, folder)
}

// ListTags 列出标签
func (h *MetaHandler) ListTags(c *gin.Context) {
	bundle, err := h.store.ReadSettingsBundle(c.Request.Context())
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, bundle.Tags)
}

// CreateTag 新建标签
func (h *MetaHandler) CreateTag(c *gin.Context) {
	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	tag, err := h.store.CreateTag(c.Request.Context(), req.Name, req.Color)
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Created(c, tag)
}

// GetSettings 读取设置
func (h *MetaHandler) GetSettings(c *gin.Context) {
	bundle, err := h.store.ReadSettingsBundle(c.Request.Context())
	if err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	response.Success(c, bundle.Settings)
}

// PutSettings 写入设置项，未提交的键保持不变
func (h *MetaHandler) PutSettings(c *gin.Context) {
	var settings map[string]string
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.PutSettings(c.Request.Context(), settings); err != nil {
		fail(c, err, language(c, h.lang))
		return
	}
	h.GetSettings(c)
}
