package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/weiwangfds/novelsync/config"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

type callbackResult struct {
	code string
	err  error
}

type pendingFlow struct {
	state  string
	result chan callbackResult
}

// GoogleAuthorizer Google OAuth 授权
// 授权地址通过 AuthURLs 发布，浏览器回调到 /oauth/callback 后由 HandleCallback 完成
type GoogleAuthorizer struct {
	cfg            *oauth2.Config
	revokeURL      string
	consentTimeout time.Duration
	httpClient     *http.Client

	mu      sync.Mutex
	pending *pendingFlow
	urls    chan string
}

// GoogleOption 授权选项
type GoogleOption func(*GoogleAuthorizer)

// WithEndpoint 替换授权端点
func WithEndpoint(ep oauth2.Endpoint) GoogleOption {
	return func(a *GoogleAuthorizer) { a.cfg.Endpoint = ep }
}

// WithHTTPClient 指定换取令牌和撤销时使用的HTTP客户端
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(a *GoogleAuthorizer) { a.httpClient = c }
}

// NewGoogleAuthorizer 创建 Google 授权
func NewGoogleAuthorizer(cfg config.DriveConfig, opts ...GoogleOption) *GoogleAuthorizer {
	scope := drive.DriveFileScope
	if cfg.Space == "appDataFolder" {
		scope = drive.DriveAppdataScope
	}
	a := &GoogleAuthorizer{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{scope},
			Endpoint:     google.Endpoint,
		},
		revokeURL:      cfg.RevokeURL,
		consentTimeout: cfg.ConsentTimeout,
		urls:           make(chan string, 1),
	}
	if a.consentTimeout <= 0 {
		a.consentTimeout = 5 * time.Minute
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuthURLs 授权地址通道，只保留最新一个
func (a *GoogleAuthorizer) AuthURLs() <-chan string {
	return a.urls
}

// Authorize 发起授权并等待回调
func (a *GoogleAuthorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuth, "", err)
	}
	flow := &pendingFlow{state: state, result: make(chan callbackResult, 1)}

	a.mu.Lock()
	if a.pending != nil {
		a.pending.result <- callbackResult{err: fmt.Errorf("superseded by a new sign-in")}
	}
	a.pending = flow
	a.mu.Unlock()
	defer a.clear(flow)

	authURL := a.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	a.publish(authURL)
	logger.Infof("[Google授权] 请在浏览器中打开授权页面: %s", authURL)

	ctx, cancel := context.WithTimeout(ctx, a.consentTimeout)
	defer cancel()

	select {
	case res := <-flow.result:
		if res.err != nil {
			return nil, apperrors.Wrap(apperrors.ErrAuth, "", res.err)
		}
		tok, err := a.cfg.Exchange(a.clientContext(ctx), res.code)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrAuth, "", fmt.Errorf("failed to exchange code: %w", err))
		}
		logger.Infof("[Google授权] 授权成功，令牌有效期至 %s", tok.Expiry.Format(time.RFC3339))
		return tok, nil
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.ErrAuth, "", fmt.Errorf("consent not completed: %w", ctx.Err()))
	}
}

// HandleCallback 处理浏览器回调
// state 不匹配时不结束授权流程，用户仍可用正确的回调完成
func (a *GoogleAuthorizer) HandleCallback(state, code, errMsg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil || a.pending.state != state {
		return apperrors.New(apperrors.ErrAuth, "state mismatch or no pending sign-in")
	}
	res := callbackResult{code: code}
	switch {
	case errMsg != "":
		res.err = fmt.Errorf("consent denied: %s", errMsg)
	case code == "":
		res.err = fmt.Errorf("callback without code")
	}
	a.pending.result <- res
	a.pending = nil
	return res.err
}

// Refresh 用刷新令牌换取新的访问令牌
func (a *GoogleAuthorizer) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, apperrors.New(apperrors.ErrAuth, "no refresh token")
	}
	expired := &oauth2.Token{RefreshToken: tok.RefreshToken, Expiry: time.Unix(1, 0)}
	fresh, err := a.cfg.TokenSource(a.clientContext(ctx), expired).Token()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuth, "", fmt.Errorf("failed to refresh token: %w", err))
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	return fresh, nil
}

// Revoke 撤销令牌，优先撤销刷新令牌
func (a *GoogleAuthorizer) Revoke(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || a.revokeURL == "" {
		return nil
	}
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status: %s", resp.Status)
	}
	return nil
}

func (a *GoogleAuthorizer) publish(u string) {
	// 丢弃未被取走的旧地址
	select {
	case <-a.urls:
	default:
	}
	select {
	case a.urls <- u:
	default:
	}
}

func (a *GoogleAuthorizer) clear(flow *pendingFlow) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == flow {
		a.pending = nil
	}
}

func (a *GoogleAuthorizer) client() *http.Client {
	if a.httpClient != nil {
		return a.httpClient
	}
	return http.DefaultClient
}

func (a *GoogleAuthorizer) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
