package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/novelsync/config"
	"github.com/weiwangfds/novelsync/internal/logger"
)

// qiniuStore 七牛云Kodo
type qiniuStore struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	cfg          *storage.Config
	httpClient   *http.Client
}

func newQiniuStore(cfg config.ObjectConfig, httpClient *http.Client) (*qiniuStore, error) {
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)
	region, err := storage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	// 下载走存储桶绑定的域名
	domain := cfg.Endpoint
	if domain == "" {
		domain = fmt.Sprintf("%s.%s", cfg.Bucket, region.RsHost)
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger.Infof("[七牛云Kodo] 已连接存储桶 %s", cfg.Bucket)
	return &qiniuStore{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: domain,
		cfg:          &storage.Config{Region: region, UseHTTPS: true},
		httpClient:   httpClient,
	}, nil
}

func (s *qiniuStore) bucketManager() *storage.BucketManager {
	return storage.NewBucketManager(s.mac, s.cfg)
}

func (s *qiniuStore) Put(ctx context.Context, key string, content []byte) error {
	// scope 带上对象键才允许覆盖同名对象
	putPolicy := storage.PutPolicy{Scope: fmt.Sprintf("%s:%s", s.bucketName, key)}
	upToken := putPolicy.UploadToken(s.mac)

	uploader := storage.NewFormUploader(s.cfg)
	ret := storage.PutRet{}
	extra := storage.PutExtra{MimeType: jsonMimeType}
	err := uploader.Put(ctx, &ret, upToken, key, bytes.NewReader(content), int64(len(content)), &extra)
	if err != nil {
		return fmt.Errorf("failed to upload %s to qiniu kodo: %w", key, err)
	}
	return nil
}

func (s *qiniuStore) Get(ctx context.Context, key string) ([]byte, error) {
	deadline := time.Now().Add(time.Hour).Unix()
	privateURL := storage.MakePrivateURL(s.mac, s.bucketDomain, key, deadline)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from qiniu kodo: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s from qiniu kodo, status: %s", key, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (s *qiniuStore) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	info, err := s.bucketManager().Stat(s.bucketName, key)
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s in qiniu kodo: %w", key, err)
	}
	// PutTime 单位为100纳秒
	return &ObjectInfo{Key: key, Size: info.Fsize, LastModified: time.Unix(0, info.PutTime*100)}, nil
}

func (s *qiniuStore) Delete(_ context.Context, key string) error {
	if err := s.bucketManager().Delete(s.bucketName, key); err != nil {
		return fmt.Errorf("failed to delete %s from qiniu kodo: %w", key, err)
	}
	return nil
}

func (s *qiniuStore) Ping(_ context.Context) error {
	if _, _, _, _, err := s.bucketManager().ListFiles(s.bucketName, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}
	return nil
}
