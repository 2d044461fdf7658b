// Package middleware HTTP中间件
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/novelsync/internal/logger"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// LoggerMiddleware 日志中间件
type LoggerMiddleware struct {
	logger    *logrus.Logger
	skipPaths map[string]bool
}

// NewLoggerMiddleware 创建日志中间件实例，skipPaths 中的路径不记录
// 状态推送这类长连接请求应当跳过
func NewLoggerMiddleware(skipPaths ...string) *LoggerMiddleware {
	m := &LoggerMiddleware{
		logger:    logger.GetLogger(),
		skipPaths: make(map[string]bool, len(skipPaths)),
	}
	for _, p := range skipPaths {
		m.skipPaths[p] = true
	}
	return m
}

// RequestID 生成或透传请求ID
func (m *LoggerMiddleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger 请求日志，5xx 记为错误，4xx 记为警告
func (m *LoggerMiddleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if m.skipPaths[path] {
			return
		}
		status := c.Writer.Status()
		entry := m.logger.WithFields(logrus.Fields{
			"status":     status,
			"latency":    time.Since(start),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"raw_query":  raw,
			"size":       c.Writer.Size(),
			"request_id": c.GetString("request_id"),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("HTTP Request")
		case status >= 400:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	}
}
