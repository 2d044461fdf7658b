// Package conflict 决定本地与云端同一作品的胜出版本
// 纯函数，无副作用，相同输入总是得到相同结果
package conflict

import (
	"time"

	"github.com/weiwangfds/novelsync/internal/database"
)

// Side 胜出方
type Side int

const (
	Local Side = iota
	Remote
)

func (s Side) String() string {
	if s == Remote {
		return "remote"
	}
	return "local"
}

// Winner 判断胜出方
// 版本号大者胜；版本相同默认本地胜出，
// 只有 candidate 为真(同版本但内容已分叉)时比较修改时间，较晚者胜，时间也相同仍是本地胜出
func Winner(local, remote *database.Novel, candidate bool) Side {
	switch {
	case remote.Version > local.Version:
		return Remote
	case remote.Version < local.Version:
		return Local
	case candidate && remote.UpdatedAt.After(local.UpdatedAt):
		return Remote
	default:
		return Local
	}
}

// Resolve 版本相同时视为无冲突，返回本地
func Resolve(local, remote database.Novel, now time.Time) database.Novel {
	return pick(&local, &remote, false, now)
}

// ResolveConflict 用于已确认分叉的同版本作品，按修改时间决胜
func ResolveConflict(local, remote database.Novel, now time.Time) database.Novel {
	return pick(&local, &remote, true, now)
}

// IsCandidate 同版本但内容或修改时间不同
func IsCandidate(local, remote *database.Novel) bool {
	if local.Version != remote.Version {
		return false
	}
	return !local.UpdatedAt.Equal(remote.UpdatedAt) ||
		local.Title != remote.Title ||
		local.Content != remote.Content ||
		local.FolderID != remote.FolderID ||
		!equalTags(local.Tags, remote.Tags)
}

func pick(local, remote *database.Novel, candidate bool, now time.Time) database.Novel {
	winner := *local
	if Winner(local, remote, candidate) == Remote {
		winner = *remote
	}
	winner.Tags = append([]string(nil), winner.Tags...)
	syncedAt := now
	winner.LastSyncAt = &syncedAt
	winner.IsSyncing = false
	return winner
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
