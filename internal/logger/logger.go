// Package logger 提供全局日志实例
// 基于 logrus，文件输出通过 lumberjack 按大小和天数滚动
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志实例
var Logger *logrus.Logger

var initMu sync.Mutex

const timestampFormat = "2006-01-02 15:04:05"

// Config 日志配置结构体
type Config struct {
	// Level 日志级别 (debug, info, warn, error, fatal, panic)
	Level string `mapstructure:"level" json:"level"`
	// Format 日志格式 (json, text)
	Format string `mapstructure:"format" json:"format"`
	// Output 输出方式 (console, file, both)
	Output string `mapstructure:"output" json:"output"`
	// FilePath 日志文件路径
	FilePath string `mapstructure:"file_path" json:"file_path"`
	// MaxSize 单个日志文件最大大小(MB)，超过后滚动
	MaxSize int `mapstructure:"max_size" json:"max_size"`
	// MaxAge 滚动文件保留天数
	MaxAge int `mapstructure:"max_age" json:"max_age"`
	// MaxBackups 最大备份文件数
	MaxBackups int `mapstructure:"max_backups" json:"max_backups"`
	// Compress 是否gzip压缩滚动后的文件
	Compress bool `mapstructure:"compress" json:"compress"`
}

// DefaultConfig 返回默认日志配置
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "text",
		Output:     "console",
		FilePath:   "logs/novelsync.log",
		MaxSize:    50,
		MaxAge:     14,
		MaxBackups: 5,
		Compress:   true,
	}
}

// Init 初始化日志系统
// 参数:
//   - config: 日志配置，如果为nil则使用默认配置
//
// 返回值:
//   - error: 初始化错误
func Init(config *Config) error {
	initMu.Lock()
	defer initMu.Unlock()
	return initLocked(config)
}

func initLocked(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		l.Warnf("无效的日志级别 '%s'，使用默认级别 'info'", config.Level)
	}
	l.SetLevel(level)

	switch config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	default:
		if config.Format != "text" {
			l.Warnf("无效的日志格式 '%s'，使用默认格式 'text'", config.Format)
		}
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	}

	l.SetOutput(buildOutput(config, l))
	Logger = l

	// Gin 的默认输出也走 logrus
	ginWriter := &GinLogWriter{logger: l}
	gin.DefaultWriter = ginWriter
	gin.DefaultErrorWriter = ginWriter

	l.Debug("日志系统初始化完成")
	return nil
}

// buildOutput 根据输出方式构造 writer
func buildOutput(config *Config, l *logrus.Logger) io.Writer {
	switch config.Output {
	case "console":
		return os.Stdout
	case "file":
		return rollingFile(config)
	case "both":
		return io.MultiWriter(os.Stdout, rollingFile(config))
	default:
		l.Warnf("无效的输出方式 '%s'，使用默认方式 'console'", config.Output)
		return os.Stdout
	}
}

// rollingFile 返回滚动日志文件，目录由 lumberjack 在首次写入时创建
func rollingFile(config *Config) io.Writer {
	return &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxSize,
		MaxAge:     config.MaxAge,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
		LocalTime:  true,
	}
}

// GinLogWriter Gin日志写入器
type GinLogWriter struct {
	logger *logrus.Logger
}

// NewGinLogWriter 创建写入全局日志的Gin写入器
func NewGinLogWriter() *GinLogWriter {
	return &GinLogWriter{logger: GetLogger()}
}

// Write 实现io.Writer接口
func (w *GinLogWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(string(p))
	return len(p), nil
}

// GetLogger 获取日志实例，未初始化时使用默认配置
func GetLogger() *logrus.Logger {
	initMu.Lock()
	defer initMu.Unlock()
	if Logger == nil {
		if err := initLocked(nil); err != nil {
			return logrus.StandardLogger()
		}
	}
	return Logger
}

func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }

func Info(args ...interface{}) { GetLogger().Info(args...) }

func Infof(format string, args ...interface{}) { GetLogger().Infof(format, args...) }

func Warnf(format string, args ...interface{}) { GetLogger().Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// WithField 添加字段到日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段到日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
