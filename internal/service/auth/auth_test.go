package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/novelsync/config"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`)
		case "refresh_token":
			_, _ = io.WriteString(w, `{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`)
		}
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("token") == "" {
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGoogle(t *testing.T, timeout time.Duration) *GoogleAuthorizer {
	srv := newTokenServer(t)
	return NewGoogleAuthorizer(config.DriveConfig{
		ClientID:       "client",
		ClientSecret:   "secret",
		RedirectURL:    "http://127.0.0.1:8080/oauth/callback",
		RevokeURL:      srv.URL + "/revoke",
		ConsentTimeout: timeout,
	}, WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}), WithHTTPClient(srv.Client()))
}

type authResult struct {
	tok *oauth2.Token
	err error
}

func startAuthorize(a *GoogleAuthorizer) (<-chan authResult, string) {
	done := make(chan authResult, 1)
	go func() {
		tok, err := a.Authorize(context.Background())
		done <- authResult{tok, err}
	}()
	raw := <-a.AuthURLs()
	u, _ := url.Parse(raw)
	return done, u.Query().Get("state")
}

func TestGoogleAuthorizer(t *testing.T) {
	t.Run("回调成功后换取令牌", func(t *testing.T) {
		a := newGoogle(t, time.Minute)
		done, state := startAuthorize(a)
		require.NotEmpty(t, state)

		require.NoError(t, a.HandleCallback(state, "good-code", ""))
		res := <-done
		require.NoError(t, res.err)
		assert.Equal(t, "at-1", res.tok.AccessToken)
		assert.Equal(t, "rt-1", res.tok.RefreshToken)
		assert.False(t, res.tok.Expiry.IsZero())
	})

	t.Run("用户拒绝", func(t *testing.T) {
		a := newGoogle(t, time.Minute)
		done, state := startAuthorize(a)

		assert.Error(t, a.HandleCallback(state, "", "access_denied"))
		res := <-done
		assert.True(t, apperrors.IsCode(res.err, apperrors.ErrAuth))
	})

	t.Run("state不匹配不会结束流程", func(t *testing.T) {
		a := newGoogle(t, time.Minute)
		done, state := startAuthorize(a)

		err := a.HandleCallback("forged", "good-code", "")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrAuth))

		require.NoError(t, a.HandleCallback(state, "good-code", ""))
		res := <-done
		require.NoError(t, res.err)
	})

	t.Run("换取失败", func(t *testing.T) {
		a := newGoogle(t, time.Minute)
		done, state := startAuthorize(a)
		require.NoError(t, a.HandleCallback(state, "bad-code", ""))
		res := <-done
		assert.True(t, apperrors.IsCode(res.err, apperrors.ErrAuth))
	})

	t.Run("授权超时", func(t *testing.T) {
		a := newGoogle(t, 50*time.Millisecond)
		done, _ := startAuthorize(a)
		res := <-done
		assert.True(t, apperrors.IsCode(res.err, apperrors.ErrAuth))
		assert.Error(t, a.HandleCallback("any", "good-code", ""))
	})
}

func TestGoogleRefreshAndRevoke(t *testing.T) {
	ctx := context.Background()
	a := newGoogle(t, time.Minute)

	fresh, err := a.Refresh(ctx, &oauth2.Token{AccessToken: "at-1", RefreshToken: "rt-1"})
	require.NoError(t, err)
	assert.Equal(t, "at-2", fresh.AccessToken)
	assert.Equal(t, "rt-1", fresh.RefreshToken)

	_, err = a.Refresh(ctx, &oauth2.Token{AccessToken: "at-1"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrAuth))

	assert.NoError(t, a.Revoke(ctx, &oauth2.Token{AccessToken: "at-1", RefreshToken: "rt-1"}))
	assert.NoError(t, a.Revoke(ctx, nil))
}

type stubTester struct{ err error }

func (s stubTester) TestConnection(context.Context) error { return s.err }

func TestLeaseAuthorizer(t *testing.T) {
	ctx := context.Background()

	a := NewLeaseAuthorizer(stubTester{}, 7)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	tok, err := a.Authorize(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, now.Add(7*24*time.Hour), tok.Expiry)
	assert.NoError(t, a.Revoke(ctx, tok))

	_, err = NewLeaseAuthorizer(stubTester{err: errors.New("403")}, 7).Authorize(ctx)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrAuth))
}
