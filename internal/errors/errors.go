// Package errors 定义应用统一错误类型
// 同步相关错误(5000段)对应认证失败、远程读写失败、配额耗尽、远程数据解析失败
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/weiwangfds/novelsync/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess        ErrorCode = 0    // 成功
	ErrInternalServer ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams  ErrorCode = 1001 // 参数错误
	ErrNotFound       ErrorCode = 1004 // 资源未找到

	// 数据库相关错误码 (4000-4999)
	ErrDatabaseQuery  ErrorCode = 4001 // 数据库查询错误
	ErrDatabaseWrite  ErrorCode = 4003 // 数据库写入错误
	ErrRecordNotFound ErrorCode = 4006 // 记录未找到

	// 同步相关错误码 (5000-5999)
	ErrAuth              ErrorCode = 5000 // 凭据过期、无效或用户拒绝授权，只能重新登录恢复
	ErrRemoteRead        ErrorCode = 5001 // 远程读取失败，下次同步重试
	ErrRemoteWrite       ErrorCode = 5002 // 远程写入失败，下次同步重试
	ErrRateLimitExceeded ErrorCode = 5003 // 当日配额耗尽，窗口重置后恢复
	ErrDecode            ErrorCode = 5004 // 远程数据格式错误，视为无可用远程数据
	ErrSyncInProgress    ErrorCode = 5005 // 已有同步在进行
	ErrNotSignedIn       ErrorCode = 5006 // 未登录
)

// AppError 应用错误结构体
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，供 errors.Is/As 使用
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Is 同错误码的 AppError 视为相等
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// New 创建新的应用错误，消息为空时使用错误码对应的默认消息
func New(code ErrorCode, message string) *AppError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &AppError{Code: code, Message: message}
}

// Newf 按格式创建应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装原始错误
// 参数:
//   - code: 错误码
//   - message: 错误消息，为空时使用默认消息
//   - err: 原始错误
//
// 返回:
//   - *AppError: 应用错误
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := New(code, message)
	appErr.OriginalError = err
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// GetAppError 从错误链中取出最外层的应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode 判断错误链中是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	return err != nil && stderrors.Is(err, &AppError{Code: code})
}

// CodeOf 返回错误码，非应用错误返回 ErrInternalServer
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrSuccess
	}
	if appErr, ok := GetAppError(err); ok {
		return appErr.Code
	}
	return ErrInternalServer
}

var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:           "success",
	ErrInternalServer:    "internal_server_error",
	ErrInvalidParams:     "invalid_params",
	ErrNotFound:          "not_found",
	ErrDatabaseQuery:     "database_query",
	ErrDatabaseWrite:     "database_write",
	ErrRecordNotFound:    "record_not_found",
	ErrAuth:              "auth_error",
	ErrRemoteRead:        "remote_read_error",
	ErrRemoteWrite:       "remote_write_error",
	ErrRateLimitExceeded: "rate_limit_exceeded",
	ErrDecode:            "decode_error",
	ErrSyncInProgress:    "sync_in_progress",
	ErrNotSignedIn:       "not_signed_in",
}

// GetErrorMessage 获取错误码对应的默认语言消息
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 获取错误码对应的指定语言消息
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, ok := errorCodeToKeyMap[code]
	if !ok {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}

// Describe 返回面向用户的错误描述(本地化消息 + 原因)
func Describe(err error, lang string) string {
	if err == nil {
		return ""
	}
	appErr, ok := GetAppError(err)
	if !ok {
		return err.Error()
	}
	msg := GetErrorMessageWithLang(appErr.Code, lang)
	if appErr.Details != "" {
		return msg + ": " + appErr.Details
	}
	if appErr.Message != "" && appErr.Message != msg {
		return msg + ": " + appErr.Message
	}
	return msg
}
