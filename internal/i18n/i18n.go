// Package i18n 提供国际化支持
// 同步状态中的错误文本按配置语言输出
package i18n

import (
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/novelsync/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包
	catalog = map[string]map[string]string{
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"not_found":             "资源未找到",
			"database_query":        "数据库查询错误",
			"database_write":        "数据库写入错误",
			"record_not_found":      "记录未找到",
			"auth_error":            "登录已失效，请重新登录",
			"remote_read_error":     "读取云端数据失败",
			"remote_write_error":    "写入云端数据失败",
			"rate_limit_exceeded":   "今日同步次数已用完",
			"decode_error":          "云端数据格式错误",
			"sync_in_progress":      "同步正在进行中",
			"not_signed_in":         "尚未登录云端存储",
			"unknown_error":         "未知错误",
		},
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"not_found":             "Resource Not Found",
			"database_query":        "Database Query Error",
			"database_write":        "Database Write Error",
			"record_not_found":      "Record Not Found",
			"auth_error":            "Session expired, please sign in again",
			"remote_read_error":     "Failed to read cloud data",
			"remote_write_error":    "Failed to write cloud data",
			"rate_limit_exceeded":   "Daily sync quota exhausted",
			"decode_error":          "Malformed cloud data",
			"sync_in_progress":      "Sync already in progress",
			"not_signed_in":         "Not signed in to cloud storage",
			"unknown_error":         "Unknown Error",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	mu          sync.RWMutex
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangZhCN,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器并注册语言包
func (i *I18n) initTranslators() {
	zhLocale := zh.New()
	uni := ut.New(zhLocale, zhLocale, en_US.New())

	langMappings := map[string]string{
		LangZhCN: "zh",
		LangEnUS: "en_US",
	}

	for lang, locale := range langMappings {
		trans, found := uni.GetTranslator(locale)
		if !found {
			logger.Errorf("[国际化] 未找到翻译器: %s (locale: %s)", lang, locale)
			continue
		}
		for key, text := range catalog[lang] {
			if err := trans.Add(key, text, false); err != nil {
				logger.Warnf("[国际化] 注册翻译失败 %s/%s: %v", lang, key, err)
			}
		}
		i.translators[lang] = trans
	}
}

// translator 返回语言对应的翻译器，不支持时回退到默认语言
func (i *I18n) translator(lang string) (ut.Translator, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if trans, ok := i.translators[lang]; ok {
		return trans, true
	}
	trans, ok := i.translators[i.defaultLang]
	return trans, ok
}

// Translate 根据键和语言获取翻译，未找到时返回键本身
func (i *I18n) Translate(key, lang string) string {
	trans, ok := i.translator(lang)
	if !ok {
		return key
	}
	text, err := trans.T(key)
	if err != nil {
		logger.Debugf("[国际化] 未找到翻译: %s, 语言: %s", key, lang)
		return key
	}
	return text
}

// FormatNumber 按语言格式化整数(千分位)
func (i *I18n) FormatNumber(n int, lang string) string {
	trans, ok := i.translator(lang)
	if !ok {
		return ""
	}
	return trans.FmtNumber(float64(n), 0)
}

// SetDefaultLanguage 设置默认语言，不支持的语言被忽略
func (i *I18n) SetDefaultLanguage(lang string) {
	if !i.IsSupportedLanguage(lang) {
		logger.Warnf("[国际化] 不支持的语言: %s", lang)
		return
	}
	i.mu.Lock()
	i.defaultLang = lang
	i.mu.Unlock()
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, exists := i.translators[lang]
	return exists
}
