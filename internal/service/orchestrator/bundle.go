package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/weiwangfds/novelsync/internal/database"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/service/conflict"
	"github.com/weiwangfds/novelsync/internal/service/store"
)

// BundleFormatVersion 聚合包格式版本
const BundleFormatVersion = 1

// Bundle 聚合包，包含全部作品、文件夹、标签和设置
type Bundle struct {
	FormatVersion int               `json:"format_version"`
	ExportedAt    time.Time         `json:"exported_at"`
	Novels        []database.Novel  `json:"novels"`
	Folders       []database.Folder `json:"folders"`
	Tags          []database.Tag    `json:"tags"`
	Settings      map[string]string `json:"settings"`
}

// MergeResult 一次拉取的合并结果
type MergeResult struct {
	Adopted     int
	RemoteWon   int
	LocalKept   int
	Skipped     int
	MetaAdopted int
}

func (o *Orchestrator) push(ctx context.Context) (int64, error) {
	novels, err := o.store.ReadAllEntities(ctx)
	if err != nil {
		return 0, err
	}
	meta, err := o.store.ReadSettingsBundle(ctx)
	if err != nil {
		return 0, err
	}
	bundle := Bundle{
		FormatVersion: BundleFormatVersion,
		ExportedAt:    o.now(),
		Novels:        novels,
		Folders:       meta.Folders,
		Tags:          meta.Tags,
		Settings:      meta.Settings,
	}
	ref, err := o.resolver.SyncJSON(ctx, o.naming.BundleName, bundle)
	if err != nil {
		return 0, err
	}

	// 推送期间被编辑过的作品版本已变化，不会被标记
	syncedAt := o.now()
	for _, n := range novels {
		if _, err := o.store.MarkSynced(ctx, n.ID, n.Version, syncedAt); err != nil {
			logger.Warnf("[同步编排] 标记作品 %s 已同步失败: %v", n.ID, err)
		}
	}
	logger.Infof("[同步编排] 已推送 %d 部作品，%d 字节", len(novels), ref.Size)
	return ref.Size, nil
}

func (o *Orchestrator) pull(ctx context.Context) (int64, error) {
	var bundle Bundle
	found, err := o.resolver.FetchJSON(ctx, o.naming.BundleName, &bundle)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrDecode) {
			logger.Warnf("[同步编排] 云端聚合包无法解析，视为没有可用的云端数据: %v", err)
		}
		return 0, err
	}
	if !found {
		logger.Infof("[同步编排] 云端没有聚合包，跳过拉取")
		return 0, nil
	}
	res, err := o.merge(ctx, &bundle)
	if err != nil {
		return 0, err
	}
	logger.WithFields(map[string]interface{}{
		"adopted":      res.Adopted,
		"remote_won":   res.RemoteWon,
		"local_kept":   res.LocalKept,
		"skipped":      res.Skipped,
		"meta_adopted": res.MetaAdopted,
	}).Info("[同步编排] 拉取合并完成")
	return 0, nil
}

// merge 逐个作品决胜并写回本地
// 只在云端存在的作品直接采纳，只在本地存在的作品保持不变
func (o *Orchestrator) merge(ctx context.Context, bundle *Bundle) (MergeResult, error) {
	var res MergeResult
	locals, err := o.store.ReadAllEntities(ctx)
	if err != nil {
		return res, err
	}
	byID := make(map[string]*database.Novel, len(locals))
	for i := range locals {
		byID[locals[i].ID] = &locals[i]
	}

	now := o.now()
	for i := range bundle.Novels {
		remoteNovel := bundle.Novels[i]
		if remoteNovel.ID == "" || remoteNovel.Version < 1 {
			res.Skipped++
			logger.Warnf("[同步编排] 跳过无效的云端作品 id=%q version=%d", remoteNovel.ID, remoteNovel.Version)
			continue
		}

		local, ok := byID[remoteNovel.ID]
		if !ok {
			adopted := conflict.Resolve(remoteNovel, remoteNovel, now)
			inserted, err := o.store.InsertEntity(ctx, &adopted)
			if err != nil {
				return res, fmt.Errorf("failed to adopt novel %s: %w", remoteNovel.ID, err)
			}
			if !inserted {
				// 合并期间本地新建了同ID作品，下次拉取再决胜
				res.LocalKept++
				continue
			}
			res.Adopted++
			continue
		}

		candidate := conflict.IsCandidate(local, &remoteNovel)
		if conflict.Winner(local, &remoteNovel, candidate) == conflict.Local {
			// 本地胜出只更新同步时间，版本不变才更新，避免覆盖合并期间的新编辑
			if _, err := o.store.MarkSynced(ctx, local.ID, local.Version, now); err != nil {
				return res, err
			}
			res.LocalKept++
			continue
		}

		var winner database.Novel
		if candidate {
			winner = conflict.ResolveConflict(*local, remoteNovel, now)
		} else {
			winner = conflict.Resolve(*local, remoteNovel, now)
		}
		// 按读取时的本地版本比较写入，合并期间被编辑或删除的作品保持本地状态
		applied, err := o.store.UpdateEntity(ctx, &winner, local.Version)
		if err != nil {
			return res, fmt.Errorf("failed to apply remote novel %s: %w", winner.ID, err)
		}
		if !applied {
			logger.Infof("[同步编排] 作品 %s 在合并期间被本地修改，保留本地版本", winner.ID)
			res.LocalKept++
			continue
		}
		res.RemoteWon++
	}

	meta, err := o.mergeMeta(ctx, bundle)
	if err != nil {
		return res, err
	}
	res.MetaAdopted = meta
	return res, nil
}

// mergeMeta 文件夹、标签按ID取并集，设置项按键取并集，同ID或同键以本地为准
func (o *Orchestrator) mergeMeta(ctx context.Context, bundle *Bundle) (int, error) {
	local, err := o.store.ReadSettingsBundle(ctx)
	if err != nil {
		return 0, err
	}
	add := &store.SettingsBundle{Settings: map[string]string{}}

	folders := make(map[string]bool, len(local.Folders))
	for _, f := range local.Folders {
		folders[f.ID] = true
	}
	for _, f := range bundle.Folders {
		if f.ID != "" && !folders[f.ID] {
			add.Folders = append(add.Folders, f)
		}
	}

	tags := make(map[string]bool, len(local.Tags))
	for _, t := range local.Tags {
		tags[t.ID] = true
	}
	for _, t := range bundle.Tags {
		if t.ID != "" && !tags[t.ID] {
			add.Tags = append(add.Tags, t)
		}
	}

	for k, v := range bundle.Settings {
		if _, ok := local.Settings[k]; !ok {
			add.Settings[k] = v
		}
	}

	n := len(add.Folders) + len(add.Tags) + len(add.Settings)
	if n == 0 {
		return 0, nil
	}
	if err := o.store.WriteSettingsBundle(ctx, add); err != nil {
		return 0, err
	}
	return n, nil
}
