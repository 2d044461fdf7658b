// Package ratelimit 统计云端调用次数，按24小时窗口限制每日配额
// 只统计经过本组件的调用，进程外或绕过本组件的调用不在统计范围内
package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/service/kv"
)

// WindowLength 配额窗口长度
const WindowLength = 24 * time.Hour

// StorageKey 窗口在本地键值存储中的键
const StorageKey = "sync.rate_window"

// Window 配额窗口
type Window struct {
	RequestCount int       `json:"request_count"`
	WindowStart  time.Time `json:"window_start"`
	DailyLimit   int       `json:"daily_limit"`
}

// Quota 配额快照
type Quota struct {
	Current        int           `json:"current"`
	DailyLimit     int           `json:"daily_limit"`
	WindowStart    time.Time     `json:"window_start"`
	TimeUntilReset time.Duration `json:"-"`
	ResetInSeconds int64         `json:"reset_in_seconds"`
}

// Exhausted 配额是否已用完
func (q Quota) Exhausted() bool {
	return q.Current >= q.DailyLimit
}

// Tracker 调用计数器
type Tracker struct {
	mu     sync.Mutex
	window Window
	now    func() time.Time
	kv     kv.Store
}

// Option 计数器选项
type Option func(*Tracker)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithPersistence 窗口写入本地键值存储，重启后计数不清零
func WithPersistence(store kv.Store) Option {
	return func(t *Tracker) { t.kv = store }
}

// NewTracker 创建计数器
func NewTracker(dailyLimit int, opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.window = Window{WindowStart: t.now(), DailyLimit: dailyLimit}
	return t
}

// Load 恢复持久化的窗口，每日上限以当前配置为准
func (t *Tracker) Load(ctx context.Context) {
	if t.kv == nil {
		return
	}
	raw, err := t.kv.Get(ctx, StorageKey)
	if err != nil || raw == nil {
		if err != nil {
			logger.Warnf("[配额] 读取配额窗口失败，使用新窗口: %v", err)
		}
		return
	}
	var w Window
	if err := json.Unmarshal(raw, &w); err != nil {
		logger.Warnf("[配额] 配额窗口格式错误，使用新窗口: %v", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	w.DailyLimit = t.window.DailyLimit
	if w.RequestCount > w.DailyLimit {
		w.RequestCount = w.DailyLimit
	}
	t.window = w
	t.rollLocked()
}

// RecordCall 记录一次调用，窗口过期时先滚动
func (t *Tracker) RecordCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked()
	if t.window.RequestCount < t.window.DailyLimit {
		t.window.RequestCount++
	}
	t.persistLocked()
}

// Allow 检查配额并在允许时记录调用，检查与记录不可分割
func (t *Tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked()
	if t.window.RequestCount >= t.window.DailyLimit {
		return false
	}
	t.window.RequestCount++
	t.persistLocked()
	return true
}

// CheckQuota 返回只读快照
func (t *Tracker) CheckQuota() Quota {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked()

	until := t.window.WindowStart.Add(WindowLength).Sub(t.now())
	if until < 0 {
		until = 0
	}
	return Quota{
		Current:        t.window.RequestCount,
		DailyLimit:     t.window.DailyLimit,
		WindowStart:    t.window.WindowStart,
		TimeUntilReset: until,
		ResetInSeconds: int64(until / time.Second),
	}
}

func (t *Tracker) rollLocked() {
	now := t.now()
	if now.Sub(t.window.WindowStart) >= WindowLength {
		t.window.RequestCount = 0
		t.window.WindowStart = now
	}
}

func (t *Tracker) persistLocked() {
	if t.kv == nil {
		return
	}
	raw, err := json.Marshal(t.window)
	if err != nil {
		return
	}
	if err := t.kv.Set(context.Background(), StorageKey, raw); err != nil {
		logger.Warnf("[配额] 保存配额窗口失败: %v", err)
	}
}
