package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/novelsync/config"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
)

// tencentStore 腾讯云COS
type tencentStore struct {
	client *cos.Client
}

func newTencentStore(cfg config.ObjectConfig, httpClient *http.Client) (*tencentStore, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	transport := &cos.AuthorizationTransport{SecretID: cfg.AccessKey, SecretKey: cfg.SecretKey}
	client := &http.Client{Transport: transport}
	if httpClient != nil {
		transport.Transport = httpClient.Transport
		client.Timeout = httpClient.Timeout
	}
	logger.Infof("[腾讯云COS] 已连接存储桶 %s", u.Host)
	return &tencentStore{client: cos.NewClient(&cos.BaseURL{BucketURL: u}, client)}, nil
}

func (s *tencentStore) Put(ctx context.Context, key string, content []byte) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: jsonMimeType},
	}
	if _, err := s.client.Object.Put(ctx, key, bytes.NewReader(content), opt); err != nil {
		return tencentError(fmt.Errorf("failed to upload %s to tencent cos: %w", key, err))
	}
	return nil
}

func (s *tencentStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, tencentError(fmt.Errorf("failed to download %s from tencent cos: %w", key, err))
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *tencentStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	resp, err := s.client.Object.Head(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, tencentError(fmt.Errorf("failed to head %s in tencent cos: %w", key, err))
	}
	info := objectInfoFromHeader("腾讯云COS", key, resp.Header)
	if resp.ContentLength >= 0 {
		info.Size = resp.ContentLength
	}
	return info, nil
}

func (s *tencentStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Object.Delete(ctx, key); err != nil {
		return tencentError(fmt.Errorf("failed to delete %s from tencent cos: %w", key, err))
	}
	return nil
}

func (s *tencentStore) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket.Head(ctx); err != nil {
		return tencentError(fmt.Errorf("failed to test tencent cos connection: %w", err))
	}
	return nil
}

func tencentError(err error) error {
	var cosErr *cos.ErrorResponse
	if errors.As(err, &cosErr) && cosErr.Response != nil && cosErr.Response.StatusCode == http.StatusForbidden {
		return apperrors.Wrap(apperrors.ErrAuth, "", err)
	}
	return err
}
