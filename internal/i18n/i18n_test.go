package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	i := GetInstance()

	assert.Equal(t, "同步正在进行中", i.Translate("sync_in_progress", LangZhCN))
	assert.Equal(t, "Sync already in progress", i.Translate("sync_in_progress", LangEnUS))
	// 不支持的语言回退到默认语言
	assert.Equal(t, i.Translate("decode_error", i.GetDefaultLanguage()), i.Translate("decode_error", "fr-FR"))
	assert.Equal(t, "no_such_key", i.Translate("no_such_key", LangEnUS))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "12,345", GetInstance().FormatNumber(12345, LangEnUS))
}

func TestSetDefaultLanguageIgnoresUnsupported(t *testing.T) {
	i := GetInstance()
	before := i.GetDefaultLanguage()
	i.SetDefaultLanguage("xx")
	assert.Equal(t, before, i.GetDefaultLanguage())
	assert.True(t, i.IsSupportedLanguage(LangEnUS))
}
