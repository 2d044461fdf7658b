package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/service/ratelimit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 云端文件解析器
type Resolver struct {
	backend Backend
	tracker *ratelimit.Tracker
	tracer  trace.Tracer
}

// NewResolver 创建解析器，tracker 为空时不限制配额
func NewResolver(backend Backend, tracker *ratelimit.Tracker) *Resolver {
	return &Resolver{
		backend: backend,
		tracker: tracker,
		tracer:  otel.Tracer("novelsync/remote"),
	}
}

// FindByName 按名称精确查找，多个同名文件时取服务端返回的第一个
func (r *Resolver) FindByName(ctx context.Context, name string) (ref *FileRef, err error) {
	ctx, span := r.tracer.Start(ctx, "remote.find", trace.WithAttributes(attribute.String("remote.file_name", name)))
	defer func() { endSpan(span, err) }()

	if err := r.acquire(); err != nil {
		return nil, err
	}
	files, err := r.backend.List(ctx, name)
	if err != nil {
		return nil, classify(err, apperrors.ErrRemoteRead, "list "+name)
	}
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		logger.Warnf("[远程文件] 发现 %d 个同名文件 %s，使用第一个 %s", len(files), name, files[0].FileID)
	}
	span.SetAttributes(attribute.String("remote.file_id", files[0].FileID))
	return &files[0], nil
}

// Upload 新建文件
func (r *Resolver) Upload(ctx context.Context, name string, content []byte) (ref *FileRef, err error) {
	ctx, span := r.tracer.Start(ctx, "remote.upload", trace.WithAttributes(
		attribute.String("remote.file_name", name),
		attribute.Int("remote.bytes", len(content)),
	))
	defer func() { endSpan(span, err) }()

	if err := r.acquire(); err != nil {
		return nil, err
	}
	ref, err = r.backend.Create(ctx, name, content)
	if err != nil {
		return nil, classify(err, apperrors.ErrRemoteWrite, "create "+name)
	}
	return ref, nil
}

// Update 按ID覆盖文件
func (r *Resolver) Update(ctx context.Context, fileID string, content []byte) (ref *FileRef, err error) {
	ctx, span := r.tracer.Start(ctx, "remote.update", trace.WithAttributes(
		attribute.String("remote.file_id", fileID),
		attribute.Int("remote.bytes", len(content)),
	))
	defer func() { endSpan(span, err) }()

	if err := r.acquire(); err != nil {
		return nil, err
	}
	ref, err = r.backend.Update(ctx, fileID, content)
	if err != nil {
		return nil, classify(err, apperrors.ErrRemoteWrite, "update "+fileID)
	}
	return ref, nil
}

// Download 读取文件内容
func (r *Resolver) Download(ctx context.Context, fileID string) (data []byte, err error) {
	ctx, span := r.tracer.Start(ctx, "remote.download", trace.WithAttributes(attribute.String("remote.file_id", fileID)))
	defer func() { endSpan(span, err) }()

	if err := r.acquire(); err != nil {
		return nil, err
	}
	data, err = r.backend.Download(ctx, fileID)
	if err != nil {
		return nil, classify(err, apperrors.ErrRemoteRead, "download "+fileID)
	}
	return data, nil
}

// SyncEntity 查找同名文件，存在则覆盖，不存在则新建
func (r *Resolver) SyncEntity(ctx context.Context, name string, content []byte) (*FileRef, error) {
	existing, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.Update(ctx, existing.FileID, content)
	}
	return r.Upload(ctx, name, content)
}

// SyncJSON 序列化后执行 SyncEntity
func (r *Resolver) SyncJSON(ctx context.Context, name string, v interface{}) (*FileRef, error) {
	content, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return r.SyncEntity(ctx, name, content)
}

// FetchJSON 按名称下载并解析JSON
// 文件不存在时返回 false；内容无法解析时返回 ErrDecode
func (r *Resolver) FetchJSON(ctx context.Context, name string, v interface{}) (bool, error) {
	ref, err := r.FindByName(ctx, name)
	if err != nil || ref == nil {
		return false, err
	}
	data, err := r.Download(ctx, ref.FileID)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, apperrors.Wrap(apperrors.ErrDecode, "", fmt.Errorf("%s: %w", name, err))
	}
	return true, nil
}

// DeleteByName 删除全部同名文件，不存在时直接返回
func (r *Resolver) DeleteByName(ctx context.Context, name string) (err error) {
	ctx, span := r.tracer.Start(ctx, "remote.delete", trace.WithAttributes(attribute.String("remote.file_name", name)))
	defer func() { endSpan(span, err) }()

	if err := r.acquire(); err != nil {
		return err
	}
	files, err := r.backend.List(ctx, name)
	if err != nil {
		return classify(err, apperrors.ErrRemoteRead, "list "+name)
	}
	for _, f := range files {
		if err := r.acquire(); err != nil {
			return err
		}
		if err := r.backend.Delete(ctx, f.FileID); err != nil {
			return classify(err, apperrors.ErrRemoteWrite, "delete "+f.FileID)
		}
	}
	return nil
}

// acquire 占用一次配额
func (r *Resolver) acquire() error {
	if r.tracker == nil || r.tracker.Allow() {
		return nil
	}
	q := r.tracker.CheckQuota()
	return apperrors.Wrap(apperrors.ErrRateLimitExceeded, "",
		fmt.Errorf("%d/%d calls used, resets in %s", q.Current, q.DailyLimit, q.TimeUntilReset.Round(time.Second)))
}

// classify 已分类的应用错误原样返回，其余按操作归为读或写错误
func classify(err error, code apperrors.ErrorCode, op string) error {
	if _, ok := apperrors.GetAppError(err); ok {
		return err
	}
	return apperrors.Wrap(code, "", fmt.Errorf("%s: %w", op, err))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
