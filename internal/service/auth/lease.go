package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/service/remote"
	"golang.org/x/oauth2"
)

// LeaseAuthorizer 对象存储登录
// 对象存储使用配置中的访问密钥，登录只校验连通性并发放本地租约
type LeaseAuthorizer struct {
	tester remote.ConnectionTester
	lease  time.Duration
	now    func() time.Time
}

// NewLeaseAuthorizer 创建对象存储登录
func NewLeaseAuthorizer(tester remote.ConnectionTester, leaseDays int) *LeaseAuthorizer {
	if leaseDays <= 0 {
		leaseDays = 30
	}
	return &LeaseAuthorizer{
		tester: tester,
		lease:  time.Duration(leaseDays) * 24 * time.Hour,
		now:    time.Now,
	}
}

func (a *LeaseAuthorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	if a.tester != nil {
		if err := a.tester.TestConnection(ctx); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrAuth, "", fmt.Errorf("storage not reachable: %w", err))
		}
	}
	expiry := a.now().Add(a.lease)
	logger.Infof("[对象存储登录] 连接正常，租约有效期至 %s", expiry.Format(time.RFC3339))
	return &oauth2.Token{
		AccessToken: "lease-" + uuid.New().String(),
		TokenType:   "Lease",
		Expiry:      expiry,
	}, nil
}

// Revoke 租约只存在本地，清除凭据即失效
func (a *LeaseAuthorizer) Revoke(context.Context, *oauth2.Token) error {
	return nil
}
