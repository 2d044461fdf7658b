// Package handler 提供给界面层的HTTP接口
// 编辑、保存、删除作品以及登录和同步操作都从这里进入
package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/i18n"
	"github.com/weiwangfds/novelsync/internal/response"
	"github.com/weiwangfds/novelsync/internal/service/store"
)

// language 优先使用请求头中的语言，其次使用配置的默认语言
func language(c *gin.Context, fallback string) string {
	accept := strings.ToLower(c.GetHeader("Accept-Language"))
	switch {
	case strings.HasPrefix(accept, "en"):
		return i18n.LangEnUS
	case strings.HasPrefix(accept, "zh"):
		return i18n.LangZhCN
	}
	if i18n.GetInstance().IsSupportedLanguage(fallback) {
		return fallback
	}
	return i18n.GetInstance().GetDefaultLanguage()
}

// fail 作品不存在返回404，其余按错误码返回
func fail(c *gin.Context, err error, lang string) {
	if errors.Is(err, store.ErrEntityNotFound) {
		err = apperrors.Wrap(apperrors.ErrNotFound, "", err)
	}
	_ = c.Error(err)
	response.Error(c, err, lang)
}
