package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weiwangfds/novelsync/internal/database"
)

var (
	t1  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2  = t1.Add(time.Hour)
	t3  = t1.Add(3 * time.Hour)
	t5  = t1.Add(5 * time.Hour)
	now = t1.Add(24 * time.Hour)
)

func TestResolve(t *testing.T) {
	t.Run("云端版本更高时云端胜出", func(t *testing.T) {
		local := database.Novel{ID: "x", Version: 3, UpdatedAt: t2, Title: "local"}
		remote := database.Novel{ID: "x", Version: 5, UpdatedAt: t1, Title: "remote"}

		got := Resolve(local, remote, now)
		assert.Equal(t, int64(5), got.Version)
		assert.Equal(t, "remote", got.Title)
		assert.Equal(t, now, *got.LastSyncAt)
		assert.False(t, got.IsSyncing)
	})

	t.Run("与参数顺序无关地选择高版本", func(t *testing.T) {
		a := database.Novel{ID: "x", Version: 2, Title: "a"}
		b := database.Novel{ID: "x", Version: 9, Title: "b"}
		assert.Equal(t, "b", Resolve(a, b, now).Title)
		assert.Equal(t, "b", Resolve(b, a, now).Title)
	})

	t.Run("版本相同返回本地", func(t *testing.T) {
		local := database.Novel{ID: "x", Version: 4, UpdatedAt: t1, Title: "local", IsSyncing: true}
		remote := database.Novel{ID: "x", Version: 4, UpdatedAt: t5, Title: "remote"}

		got := Resolve(local, remote, now)
		assert.Equal(t, "local", got.Title)
		assert.False(t, got.IsSyncing)
	})

	t.Run("不修改输入", func(t *testing.T) {
		local := database.Novel{ID: "x", Version: 1, Tags: []string{"a"}}
		remote := database.Novel{ID: "x", Version: 1}
		got := Resolve(local, remote, now)
		got.Tags[0] = "changed"
		assert.Nil(t, local.LastSyncAt)
		assert.Equal(t, "a", local.Tags[0])
	})
}

func TestResolveConflict(t *testing.T) {
	t.Run("同版本修改时间较晚者胜出", func(t *testing.T) {
		local := database.Novel{ID: "x", Version: 4, UpdatedAt: t5, Title: "local"}
		remote := database.Novel{ID: "x", Version: 4, UpdatedAt: t3, Title: "remote"}
		assert.Equal(t, "local", ResolveConflict(local, remote, now).Title)

		remote.UpdatedAt = t5.Add(time.Second)
		assert.Equal(t, "remote", ResolveConflict(local, remote, now).Title)
	})

	t.Run("时间也相同时本地胜出且结果稳定", func(t *testing.T) {
		local := database.Novel{ID: "x", Version: 4, UpdatedAt: t3, Title: "local"}
		remote := database.Novel{ID: "x", Version: 4, UpdatedAt: t3, Title: "remote"}
		for i := 0; i < 3; i++ {
			assert.Equal(t, "local", ResolveConflict(local, remote, now).Title)
		}
	})

	t.Run("版本不同时仍按版本", func(t *testing.T) {
		local := database.Novel{ID: "x", Version: 6, UpdatedAt: t1}
		remote := database.Novel{ID: "x", Version: 5, UpdatedAt: t5}
		assert.Equal(t, int64(6), ResolveConflict(local, remote, now).Version)
	})
}

func TestIsCandidate(t *testing.T) {
	base := database.Novel{ID: "x", Version: 2, UpdatedAt: t1, Title: "a", Tags: []string{"t"}}

	same := base
	assert.False(t, IsCandidate(&base, &same))

	edited := base
	edited.Content = "diverged"
	assert.True(t, IsCandidate(&base, &edited))

	retagged := base
	retagged.Tags = []string{"u"}
	assert.True(t, IsCandidate(&base, &retagged))

	newer := base
	newer.Version = 3
	newer.Content = "diverged"
	assert.False(t, IsCandidate(&base, &newer))
}
