// Package response 统一的JSON响应格式
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
)

// Response 统一返回值结构体
type Response struct {
	// 状态码，0表示成功，非0为 internal/errors 中的错误码
	Code int `json:"code"`
	// 响应消息
	Message string `json:"message"`
	// 响应数据
	Data interface{} `json:"data,omitempty"`
	// 请求ID，用于链路追踪
	RequestID string `json:"request_id,omitempty"`
	// 时间戳
	Timestamp int64 `json:"timestamp"`
}

// now 便于测试时替换
var now = time.Now

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, int(apperrors.ErrSuccess), "success", data)
}

// Created 创建成功
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, int(apperrors.ErrSuccess), "created", data)
}

// Accepted 已接受，稍后处理
func Accepted(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusAccepted, int(apperrors.ErrSuccess), message, data)
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, int(apperrors.ErrInvalidParams), message, nil)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, message string) {
	write(c, http.StatusNotFound, int(apperrors.ErrNotFound), message, nil)
}

// Error 按应用错误码返回错误，消息使用 lang 对应的语言
func Error(c *gin.Context, err error, lang string) {
	code := apperrors.CodeOf(err)
	write(c, HTTPStatus(code), int(code), apperrors.Describe(err, lang), nil)
}

// HTTPStatus 错误码对应的HTTP状态码
func HTTPStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrSuccess:
		return http.StatusOK
	case apperrors.ErrInvalidParams:
		return http.StatusBadRequest
	case apperrors.ErrNotFound, apperrors.ErrRecordNotFound:
		return http.StatusNotFound
	case apperrors.ErrAuth, apperrors.ErrNotSignedIn:
		return http.StatusUnauthorized
	case apperrors.ErrSyncInProgress:
		return http.StatusConflict
	case apperrors.ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	case apperrors.ErrRemoteRead, apperrors.ErrRemoteWrite, apperrors.ErrDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: GetRequestID(c),
		Timestamp: now().Unix(),
	})
}

// GetRequestID 获取请求ID
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
