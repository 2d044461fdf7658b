// Package autosave 合并连续编辑，防抖后写入本地并尽力推送到云端
package autosave

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weiwangfds/novelsync/internal/database"
	"github.com/weiwangfds/novelsync/internal/logger"
)

// EntityStore 自动保存需要的本地存储能力
// UpdateEntity 只在已存储版本等于 expected 时写入，行不存在时不插入
type EntityStore interface {
	ReadEntity(ctx context.Context, id string) (*database.Novel, error)
	UpdateEntity(ctx context.Context, novel *database.Novel, expected int64) (bool, error)
}

// maxCommitAttempts 保存期间作品被其他写入方修改时的最大重试次数
const maxCommitAttempts = 5

// Pusher 单个作品的云端推送
type Pusher interface {
	PushEntity(ctx context.Context, novel *database.Novel) error
}

type pending struct {
	patch Patch
	timer *time.Timer
	gen   uint64
}

// Scheduler 每个作品最多一个待执行的定时器和一份待写入的补丁
type Scheduler struct {
	store       EntityStore
	pusher      Pusher
	delay       time.Duration
	pushTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]*pending
	locks   map[string]*sync.Mutex
	pushes  sync.WaitGroup
}

// Option 调度器选项
type Option func(*Scheduler)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithPushTimeout 单次推送的超时
func WithPushTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.pushTimeout = d }
}

// New 创建调度器，pusher 可以为空(仅本地保存)
func New(store EntityStore, pusher Pusher, delay time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:       store,
		pusher:      pusher,
		delay:       delay,
		pushTimeout: 2 * time.Minute,
		now:         time.Now,
		pending:     map[string]*pending{},
		locks:       map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleSave 合并补丁并重置防抖定时器
func (s *Scheduler) ScheduleSave(id string, patch Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		p = &pending{}
		s.pending[id] = p
	}
	p.patch.Merge(patch)
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(s.delay, func() { s.fire(id, gen) })
}

// Flush 取消定时器并立即保存，没有待写入内容时同样写入一次
func (s *Scheduler) Flush(ctx context.Context, id string) (*database.Novel, error) {
	return s.commit(ctx, id, s.take(id))
}

// FlushAll 立即保存所有待写入的作品
func (s *Scheduler) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if _, err := s.Flush(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Discard 丢弃待写入的补丁，作品被删除时调用
func (s *Scheduler) Discard(id string) {
	s.take(id)
}

// DiscardAll 丢弃全部待写入的补丁
func (s *Scheduler) DiscardAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

// Pending 是否有待写入的补丁
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// Close 保存所有待写入内容并等待推送结束
func (s *Scheduler) Close(ctx context.Context) error {
	err := s.FlushAll(ctx)
	done := make(chan struct{})
	go func() {
		s.pushes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warnf("[自动保存] 等待推送结束超时")
	}
	return err
}

func (s *Scheduler) take(id string) Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok {
		return Patch{}
	}
	p.timer.Stop()
	delete(s.pending, id)
	return p.patch
}

func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	if _, err := s.commit(context.Background(), id, p.patch); err != nil {
		logger.Errorf("[自动保存] 保存作品 %s 失败: %v", id, err)
	}
}

func (s *Scheduler) entityLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// commit 读取当前版本，应用补丁，版本加一后按版本比较写入本地，再异步推送
// 读取之后作品被拉取合并覆盖时基于新版本重新应用补丁；作品已被删除时放弃保存
func (s *Scheduler) commit(ctx context.Context, id string, patch Patch) (*database.Novel, error) {
	l := s.entityLock(id)
	l.Lock()
	defer l.Unlock()

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		current, err := s.store.ReadEntity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load novel %s: %w", id, err)
		}
		updated := *current
		updated.Tags = append([]string{}, current.Tags...)
		patch.Apply(&updated)
		updated.Version = current.Version + 1
		updated.UpdatedAt = s.now()
		updated.IsSyncing = false

		ok, err := s.store.UpdateEntity(ctx, &updated, current.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to save novel %s: %w", id, err)
		}
		if !ok {
			logger.Debugf("[自动保存] 作品 %s 在保存期间被修改，基于最新版本重试", id)
			continue
		}
		logger.Debugf("[自动保存] 作品 %s 已保存，版本 %d", id, updated.Version)

		if s.pusher != nil {
			snapshot := updated
			snapshot.Tags = append([]string{}, updated.Tags...)
			s.pushes.Add(1)
			go s.push(&snapshot)
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("failed to save novel %s: modified concurrently %d times", id, maxCommitAttempts)
}

func (s *Scheduler) push(novel *database.Novel) {
	defer s.pushes.Done()
	ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
	defer cancel()
	if err := s.pusher.PushEntity(ctx, novel); err != nil {
		logger.Warnf("[自动保存] 作品 %s 推送失败，本地已保存: %v", novel.ID, err)
	}
}
