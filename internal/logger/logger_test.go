package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		require.NoError(t, Init(nil))
		assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
		assert.IsType(t, &logrus.TextFormatter{}, Logger.Formatter)
	})

	t.Run("无效级别回退到info", func(t *testing.T) {
		require.NoError(t, Init(&Config{Level: "verbose", Format: "json", Output: "console"}))
		assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, Logger.Formatter)
	})

	t.Run("文件输出写入滚动文件", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "app.log")
		require.NoError(t, Init(&Config{Level: "debug", Format: "text", Output: "file", FilePath: path, MaxSize: 1}))

		Infof("[测试] hello %s", "world")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "[测试] hello world")
	})
}
