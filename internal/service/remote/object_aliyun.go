package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/novelsync/config"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
)

// aliyunStore 阿里云OSS
type aliyunStore struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
}

func newAliyunStore(cfg config.ObjectConfig, httpClient *http.Client) (*aliyunStore, error) {
	opts := []oss.ClientOption{}
	if httpClient != nil && httpClient.Timeout > 0 {
		sec := int64(httpClient.Timeout.Seconds())
		opts = append(opts, oss.Timeout(sec, sec))
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get aliyun oss bucket: %w", err)
	}
	logger.Infof("[阿里云OSS] 已连接存储桶 %s (%s)", cfg.Bucket, cfg.Endpoint)
	return &aliyunStore{client: client, bucket: bucket, bucketName: cfg.Bucket}, nil
}

func (s *aliyunStore) Put(ctx context.Context, key string, content []byte) error {
	err := s.bucket.PutObject(key, bytes.NewReader(content), oss.ContentType(jsonMimeType), oss.WithContext(ctx))
	if err != nil {
		return aliyunError(fmt.Errorf("failed to upload %s to aliyun oss: %w", key, err))
	}
	return nil
}

func (s *aliyunStore) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, aliyunError(fmt.Errorf("failed to download %s from aliyun oss: %w", key, err))
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *aliyunStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	exists, err := s.bucket.IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return nil, aliyunError(fmt.Errorf("failed to check %s in aliyun oss: %w", key, err))
	}
	if !exists {
		return nil, nil
	}
	header, err := s.bucket.GetObjectMeta(key, oss.WithContext(ctx))
	if err != nil {
		return nil, aliyunError(fmt.Errorf("failed to get meta of %s from aliyun oss: %w", key, err))
	}
	return objectInfoFromHeader("阿里云OSS", key, header), nil
}

func (s *aliyunStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return aliyunError(fmt.Errorf("failed to delete %s from aliyun oss: %w", key, err))
	}
	return nil
}

func (s *aliyunStore) Ping(ctx context.Context) error {
	if _, err := s.client.GetBucketInfo(s.bucketName, oss.WithContext(ctx)); err != nil {
		return aliyunError(fmt.Errorf("failed to test aliyun oss connection: %w", err))
	}
	return nil
}

// aliyunError 签名或权限错误归为认证错误
func aliyunError(err error) error {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) && (svcErr.StatusCode == http.StatusForbidden || svcErr.StatusCode == http.StatusUnauthorized) {
		return apperrors.Wrap(apperrors.ErrAuth, "", err)
	}
	return err
}
