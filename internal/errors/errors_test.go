package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weiwangfds/novelsync/internal/i18n"
)

func TestWrapAndIsCode(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("failed to push bundle: %w", Wrap(ErrRemoteWrite, "", cause))

	assert.True(t, IsCode(err, ErrRemoteWrite))
	assert.False(t, IsCode(err, ErrRemoteRead))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrRemoteWrite, CodeOf(err))
	assert.Equal(t, ErrInternalServer, CodeOf(cause))
	assert.Equal(t, ErrSuccess, CodeOf(nil))
}

func TestDescribe(t *testing.T) {
	err := Wrap(ErrRateLimitExceeded, "", stderrors.New("1000/1000"))
	assert.Equal(t, "Daily sync quota exhausted: 1000/1000", Describe(err, i18n.LangEnUS))
	assert.Equal(t, "今日同步次数已用完: 1000/1000", Describe(err, i18n.LangZhCN))
	assert.Equal(t, "plain", Describe(stderrors.New("plain"), i18n.LangEnUS))
	assert.Empty(t, Describe(nil, i18n.LangEnUS))
}

func TestNewUsesCatalogMessage(t *testing.T) {
	err := New(ErrAuth, "")
	assert.Equal(t, GetErrorMessage(ErrAuth), err.Message)
	assert.Equal(t, "未知错误", GetErrorMessageWithLang(ErrorCode(42), i18n.LangZhCN))
}
