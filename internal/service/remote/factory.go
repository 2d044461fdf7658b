package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/weiwangfds/novelsync/config"
	"golang.org/x/oauth2"
)

// NewBackend 按配置创建远程后端
// ts 只用于 Google Drive，对象存储使用配置中的访问密钥
func NewBackend(ctx context.Context, cfg config.RemoteConfig, ts oauth2.TokenSource, timeout time.Duration) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderGoogleDrive:
		client := &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		}
		return NewDriveBackend(ctx, client, DriveOptions{
			APIBaseURL:        cfg.Drive.APIBaseURL,
			UploadBaseURL:     cfg.Drive.UploadBaseURL,
			Space:             cfg.Drive.Space,
			RequestsPerSecond: cfg.Drive.RequestsPerSecond,
			Burst:             cfg.Drive.Burst,
		})
	}

	store, err := NewObjectStore(ctx, cfg.Provider, cfg.Object, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return NewObjectBackend(store, cfg.Object.Prefix), nil
}

// NewObjectStore 创建对象存储客户端
func NewObjectStore(ctx context.Context, provider string, cfg config.ObjectConfig, httpClient *http.Client) (ObjectStore, error) {
	switch provider {
	case config.ProviderAliyun:
		return newAliyunStore(cfg, httpClient)
	case config.ProviderTencent:
		return newTencentStore(cfg, httpClient)
	case config.ProviderQiniu:
		return newQiniuStore(cfg, httpClient)
	case config.ProviderS3:
		return newS3Store(ctx, cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported remote provider: %s", provider)
	}
}
