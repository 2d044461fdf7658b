package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const driveFileFields = "id,name,modifiedTime,size"

// DriveOptions Google Drive 后端参数
type DriveOptions struct {
	APIBaseURL        string
	UploadBaseURL     string
	Space             string // drive 或 appDataFolder
	RequestsPerSecond float64
	Burst             int
}

// DriveBackend Google Drive 后端
// 查询、下载、删除走 drive/v3 客户端，新建和覆盖使用两段式 multipart 请求
type DriveBackend struct {
	client     *http.Client
	svc        *drive.Service
	uploadBase string
	space      string
	limiter    *rate.Limiter
}

// NewDriveBackend 创建 Drive 后端，client 需自带认证
func NewDriveBackend(ctx context.Context, client *http.Client, opts DriveOptions) (*DriveBackend, error) {
	svcOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if opts.APIBaseURL != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(opts.APIBaseURL))
	}
	svc, err := drive.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	uploadBase := opts.UploadBaseURL
	if uploadBase == "" {
		uploadBase = "https://www.googleapis.com/upload/drive/v3/"
	}
	if !strings.HasSuffix(uploadBase, "/") {
		uploadBase += "/"
	}
	space := opts.Space
	if space == "" {
		space = "drive"
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &DriveBackend{
		client:     client,
		svc:        svc,
		uploadBase: uploadBase,
		space:      space,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// List 按名称查询，按创建时间升序，最早创建的排在第一个
func (b *DriveBackend) List(ctx context.Context, name string) ([]FileRef, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	res, err := b.svc.Files.List().
		Q(query).
		Spaces(b.space).
		Fields(googleapi.Field("files(" + driveFileFields + ")")).
		OrderBy("createdTime").
		PageSize(10).
		Context(ctx).
		Do()
	if err != nil {
		return nil, driveError(err, apperrors.ErrRemoteRead)
	}

	refs := make([]FileRef, 0, len(res.Files))
	for _, f := range res.Files {
		refs = append(refs, toFileRef(f))
	}
	return refs, nil
}

// Create 新建文件
func (b *DriveBackend) Create(ctx context.Context, name string, content []byte) (*FileRef, error) {
	meta := FileMetadata{Name: name, MimeType: jsonMimeType}
	if b.space == "appDataFolder" {
		meta.Parents = []string{"appDataFolder"}
	}
	return b.upload(ctx, http.MethodPost, b.uploadBase+"files", meta, content)
}

// Update 覆盖文件内容
func (b *DriveBackend) Update(ctx context.Context, fileID string, content []byte) (*FileRef, error) {
	meta := FileMetadata{MimeType: jsonMimeType}
	return b.upload(ctx, http.MethodPatch, b.uploadBase+"files/"+url.PathEscape(fileID), meta, content)
}

// Download 下载文件内容(alt=media)
func (b *DriveBackend) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := b.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, driveError(err, apperrors.ErrRemoteRead)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteRead, "", fmt.Errorf("failed to read file body: %w", err))
	}
	return data, nil
}

// Delete 删除文件
func (b *DriveBackend) Delete(ctx context.Context, fileID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := b.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return driveError(err, apperrors.ErrRemoteWrite)
	}
	return nil
}

// TestConnection 读取当前账户信息
func (b *DriveBackend) TestConnection(ctx context.Context) error {
	if _, err := b.svc.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		return driveError(err, apperrors.ErrRemoteRead)
	}
	return nil
}

func (b *DriveBackend) upload(ctx context.Context, method, endpoint string, meta FileMetadata, content []byte) (*FileRef, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, contentType, err := EncodeMultipart(meta, content)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("uploadType", "multipart")
	q.Set("fields", driveFileFields)
	req, err := http.NewRequestWithContext(ctx, method, endpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, driveError(err, apperrors.ErrRemoteWrite)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, driveError(err, apperrors.ErrRemoteWrite)
	}

	var f drive.File
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteWrite, "", fmt.Errorf("failed to decode upload response: %w", err))
	}
	logger.Debugf("[Google Drive] %s %s -> %s (%d bytes)", method, f.Name, f.Id, len(content))
	ref := toFileRef(&f)
	return &ref, nil
}

// driveError 把 Drive 错误归类: 401 为认证错误，429 或 403 限流原因为配额错误
func driveError(err error, fallback apperrors.ErrorCode) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return apperrors.Wrap(apperrors.ErrAuth, "", err)
		case gerr.Code == http.StatusTooManyRequests:
			return apperrors.Wrap(apperrors.ErrRateLimitExceeded, "", err)
		case gerr.Code == http.StatusForbidden && isRateLimitReason(gerr):
			return apperrors.Wrap(apperrors.ErrRateLimitExceeded, "", err)
		}
		return apperrors.Wrap(fallback, "", err)
	}
	// 凭据源返回的认证错误保持原样
	if _, ok := apperrors.GetAppError(err); ok {
		return err
	}
	return apperrors.Wrap(fallback, "", err)
}

func isRateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

func toFileRef(f *drive.File) FileRef {
	ref := FileRef{FileID: f.Id, FileName: f.Name, Size: f.Size}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		ref.ModifiedTime = t
	}
	return ref
}

// escapeQuery 转义 Drive 查询字符串中的反斜杠和单引号
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
