package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/novelsync/internal/database/dbtest"
	"github.com/weiwangfds/novelsync/internal/service/kv"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func TestTracker(t *testing.T) {
	t.Run("达到上限后拒绝", func(t *testing.T) {
		clock := newClock()
		tr := NewTracker(100, WithClock(clock.Now))
		for i := 0; i < 100; i++ {
			tr.RecordCall()
		}
		q := tr.CheckQuota()
		assert.Equal(t, 100, q.Current)
		assert.True(t, q.Exhausted())
		assert.False(t, tr.Allow())

		// 计数不会超过上限
		tr.RecordCall()
		assert.Equal(t, 100, tr.CheckQuota().Current)
	})

	t.Run("窗口满24小时后重置", func(t *testing.T) {
		clock := newClock()
		tr := NewTracker(2, WithClock(clock.Now))
		assert.True(t, tr.Allow())
		assert.True(t, tr.Allow())
		assert.False(t, tr.Allow())

		clock.Advance(23 * time.Hour)
		q := tr.CheckQuota()
		assert.Equal(t, time.Hour, q.TimeUntilReset)
		assert.Equal(t, int64(3600), q.ResetInSeconds)

		clock.Advance(time.Hour)
		assert.Equal(t, 0, tr.CheckQuota().Current)
		assert.True(t, tr.Allow())
	})

	t.Run("持久化后恢复计数", func(t *testing.T) {
		ctx := context.Background()
		clock := newClock()
		store := kv.NewGormStore(dbtest.Open(t))

		first := NewTracker(10, WithClock(clock.Now), WithPersistence(store))
		first.RecordCall()
		first.RecordCall()

		clock.Advance(time.Hour)
		second := NewTracker(5, WithClock(clock.Now), WithPersistence(store))
		second.Load(ctx)
		q := second.CheckQuota()
		assert.Equal(t, 2, q.Current)
		assert.Equal(t, 5, q.DailyLimit)
		assert.Equal(t, 23*time.Hour, q.TimeUntilReset)
	})

	t.Run("损坏的持久化数据被忽略", func(t *testing.T) {
		ctx := context.Background()
		store := kv.NewGormStore(dbtest.Open(t))
		require.NoError(t, store.Set(ctx, StorageKey, []byte("??")))

		tr := NewTracker(3, WithPersistence(store))
		tr.Load(ctx)
		assert.Equal(t, 0, tr.CheckQuota().Current)
	})
}
