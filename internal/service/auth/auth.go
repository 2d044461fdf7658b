// Package auth 提供登录能力
// 同步编排只依赖 Authorizer 接口，不关心授权页面如何展示
package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// Authorizer 登录能力
type Authorizer interface {
	// Authorize 完成一次授权，失败、拒绝或超时均返回 ErrAuth
	Authorize(ctx context.Context) (*oauth2.Token, error)
	// Revoke 撤销凭据
	Revoke(ctx context.Context, tok *oauth2.Token) error
}

// Refresher 支持用刷新令牌续期的登录能力
type Refresher interface {
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

// URLPublisher 需要用户在浏览器中打开授权地址的登录能力
type URLPublisher interface {
	AuthURLs() <-chan string
}
