// Package credential 管理云端访问凭据的持久化与有效性
// 过期凭据在读取时即被清除，永远不会返回给调用方
package credential

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/service/kv"
	"golang.org/x/oauth2"
)

// StorageKey 凭据在本地键值存储中的固定键
const StorageKey = "sync.credential"

// defaultLifetime 提供方未返回过期时间时的默认有效期
const defaultLifetime = time.Hour

// Credential 访问凭据
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FromToken 由 OAuth token 构造凭据
func FromToken(tok *oauth2.Token, now time.Time) *Credential {
	c := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = now.Add(defaultLifetime)
	}
	return c
}

// Token 转换为 OAuth token
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.ExpiresAt,
	}
}

// Store 凭据存储
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// Option 凭据存储选项
type Option func(*Store)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore 创建凭据存储
func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{kv: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadToken 读取凭据
// 不存在、格式错误或已过期都返回 nil；过期和格式错误的凭据会被清除
func (s *Store) LoadToken(ctx context.Context) *Credential {
	raw, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		logger.Errorf("[凭据存储] 读取凭据失败: %v", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil || c.AccessToken == "" {
		logger.Warnf("[凭据存储] 凭据格式错误，已忽略: %v", err)
		s.purge(ctx)
		return nil
	}
	if !s.IsValid(&c) {
		logger.Infof("[凭据存储] 凭据已于 %s 过期，已清除", c.ExpiresAt.Format(time.RFC3339))
		s.purge(ctx)
		return nil
	}
	return &c
}

// SaveToken 整体覆盖保存凭据
func (s *Store) SaveToken(ctx context.Context, c *Credential) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, StorageKey, raw)
}

// ClearToken 清除凭据
func (s *Store) ClearToken(ctx context.Context) error {
	return s.kv.Delete(ctx, StorageKey)
}

// IsValid 凭据未过期
func (s *Store) IsValid(c *Credential) bool {
	return c != nil && c.ExpiresAt.After(s.now())
}

func (s *Store) purge(ctx context.Context) {
	if err := s.ClearToken(ctx); err != nil {
		logger.Errorf("[凭据存储] 清除凭据失败: %v", err)
	}
}

// TokenSource 返回每次请求都重新读取存储的 oauth2.TokenSource
// 没有有效凭据时返回认证错误，不会刷新或复用过期凭据
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, store: s}
}

type storeTokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	c := ts.store.LoadToken(ts.ctx)
	if c == nil {
		return nil, apperrors.New(apperrors.ErrAuth, "no valid credential")
	}
	return c.Token(), nil
}
