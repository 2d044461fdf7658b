// Package orchestrator 协调登录、拉取、推送和单作品同步
// 本地数据始终是权威来源，任何远程错误都只记录到同步状态，不会回滚或阻塞本地写入
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/weiwangfds/novelsync/internal/database"
	apperrors "github.com/weiwangfds/novelsync/internal/errors"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/service/auth"
	"github.com/weiwangfds/novelsync/internal/service/credential"
	"github.com/weiwangfds/novelsync/internal/service/ratelimit"
	"github.com/weiwangfds/novelsync/internal/service/remote"
	"github.com/weiwangfds/novelsync/internal/service/store"
)

// refreshSkew 凭据在到期前多久尝试续期
const refreshSkew = 5 * time.Minute

// LocalStore 编排器使用的本地存储
type LocalStore interface {
	ReadEntity(ctx context.Context, id string) (*database.Novel, error)
	UpdateEntity(ctx context.Context, novel *database.Novel, expected int64) (bool, error)
	InsertEntity(ctx context.Context, novel *database.Novel) (bool, error)
	ReadAllEntities(ctx context.Context) ([]database.Novel, error)
	ReadSettingsBundle(ctx context.Context) (*store.SettingsBundle, error)
	WriteSettingsBundle(ctx context.Context, bundle *store.SettingsBundle) error
	DeleteNovel(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id string, version int64, at time.Time) (bool, error)
	AppendSyncLog(ctx context.Context, entry *database.SyncLog) error
	ListSyncLogs(ctx context.Context, limit int) ([]database.SyncLog, error)
	Reset(ctx context.Context) error
}

// Options 编排器依赖与参数
type Options struct {
	Store            LocalStore
	Backend          remote.Backend
	Tracker          *ratelimit.Tracker
	Credentials      *credential.Store
	Authorizer       auth.Authorizer
	Naming           remote.Naming
	PeriodicInterval time.Duration
	OperationTimeout time.Duration
	Language         string
	Clock            func() time.Time
}

// Orchestrator 同步编排器
type Orchestrator struct {
	store      LocalStore
	resolver   *remote.Resolver
	tracker    *ratelimit.Tracker
	creds      *credential.Store
	authorizer auth.Authorizer
	naming     remote.Naming
	interval   time.Duration
	opTimeout  time.Duration
	lang       string
	now        func() time.Time

	state *machine

	cronMu  sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID

	// background 跟踪后台任务，Close 取消 baseCtx 后等待它们结束
	background sync.WaitGroup
	baseCtx    context.Context
	stop       context.CancelFunc
}

// New 创建编排器
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:      opts.Store,
		resolver:   remote.NewResolver(opts.Backend, opts.Tracker),
		tracker:    opts.Tracker,
		creds:      opts.Credentials,
		authorizer: opts.Authorizer,
		naming:     opts.Naming,
		interval:   opts.PeriodicInterval,
		opTimeout:  opts.OperationTimeout,
		lang:       opts.Language,
		now:        opts.Clock,
		state:      newMachine(),
		cron:       cron.New(),
	}
	o.baseCtx, o.stop = context.WithCancel(context.Background())
	if o.now == nil {
		o.now = time.Now
	}
	if o.interval <= 0 {
		o.interval = 60 * time.Minute
	}
	if o.opTimeout <= 0 {
		o.opTimeout = 2 * time.Minute
	}
	if o.naming.BundleName == "" {
		o.naming.BundleName = "novelsync-bundle.json"
	}
	if o.naming.EntityPrefix == "" {
		o.naming.EntityPrefix = "novel-"
	}
	return o
}

// Start 恢复登录状态并启动定时任务
func (o *Orchestrator) Start(ctx context.Context) {
	o.cron.Start()
	if o.creds.LoadToken(ctx) == nil {
		logger.Infof("[同步编排] 没有有效凭据，保持未登录")
		return
	}
	o.state.update(func(m *machine) { m.phase = PhaseSignedIn })
	o.startPeriodic()
	logger.Infof("[同步编排] 已恢复登录状态")
}

// Close 停止定时任务，取消并等待后台任务
func (o *Orchestrator) Close() {
	<-o.cron.Stop().Done()
	o.stop()
	o.background.Wait()
}

// goBackground 在后台执行 fn，timeout 为0时只受 Close 取消
func (o *Orchestrator) goBackground(timeout time.Duration, fn func(ctx context.Context)) {
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx := o.baseCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		fn(ctx)
	}()
}

// SignInAsync 后台登录，结果写入返回的通道
// 浏览器授权可能持续数分钟，不受单次操作超时限制
func (o *Orchestrator) SignInAsync() <-chan error {
	done := make(chan error, 1)
	o.goBackground(0, func(ctx context.Context) {
		done <- o.SignIn(ctx)
	})
	return done
}

// HandleOnlineAsync 后台执行 HandleOnline
func (o *Orchestrator) HandleOnlineAsync() {
	o.goBackground(o.opTimeout, o.HandleOnline)
}

// PushEntityAsync 后台推送单个作品，失败只记录日志
func (o *Orchestrator) PushEntityAsync(novel *database.Novel) {
	snapshot := *novel
	snapshot.Tags = append([]string{}, novel.Tags...)
	o.goBackground(o.opTimeout, func(ctx context.Context) {
		if err := o.PushEntity(ctx, &snapshot); err != nil {
			logger.Warnf("[同步编排] 作品 %s 后台推送失败: %v", snapshot.ID, err)
		}
	})
}

// SignIn 完成授权、保存凭据、立即拉取一次，然后开始定时推送
func (o *Orchestrator) SignIn(ctx context.Context) error {
	prev, ok := o.state.beginAuth()
	if !ok {
		if prev == PhaseSignedIn {
			return nil
		}
		return apperrors.New(apperrors.ErrSyncInProgress, "sign-in already in progress")
	}
	logger.Infof("[同步编排] 开始登录")

	tok, err := o.authorizer.Authorize(ctx)
	if err == nil {
		err = o.creds.SaveToken(ctx, credential.FromToken(tok, o.now()))
	}
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrAuth) {
			err = apperrors.Wrap(apperrors.ErrAuth, "", err)
		}
		msg := apperrors.Describe(err, o.lang)
		o.state.update(func(m *machine) {
			m.phase = PhaseSignedOut
			m.setError(msg)
		})
		logger.Warnf("[同步编排] 登录失败: %v", err)
		return err
	}

	o.state.update(func(m *machine) { m.phase = PhaseSignedIn })
	logger.Infof("[同步编排] 登录成功")

	if err := o.Pull(ctx); err != nil {
		logger.Warnf("[同步编排] 登录后首次拉取失败: %v", err)
	}
	o.startPeriodic()
	return nil
}

// SignOut 撤销并清除凭据，停止定时任务，重置同步状态
func (o *Orchestrator) SignOut(ctx context.Context) error {
	if c := o.creds.LoadToken(ctx); c != nil {
		if err := o.authorizer.Revoke(ctx, c.Token()); err != nil {
			logger.Warnf("[同步编排] 撤销凭据失败: %v", err)
		}
	}
	o.stopPeriodic()
	if err := o.creds.ClearToken(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	o.state.update(func(m *machine) {
		m.phase = PhaseSignedOut
		m.last = nil
		m.err = nil
	})
	logger.Infof("[同步编排] 已退出登录")
	return nil
}

// Pull 拉取聚合包并合并到本地
func (o *Orchestrator) Pull(ctx context.Context) error {
	return o.exclusive(ctx, database.SyncOpPull, o.pull)
}

// Push 把本地全部数据写入聚合包
func (o *Orchestrator) Push(ctx context.Context) error {
	return o.exclusive(ctx, database.SyncOpPush, o.push)
}

// ManualSync 用户手动触发的推送
func (o *Orchestrator) ManualSync(ctx context.Context) error {
	logger.Infof("[同步编排] 手动同步")
	return o.Push(ctx)
}

// HandleOnline 网络恢复后推送一次
func (o *Orchestrator) HandleOnline(ctx context.Context) {
	if o.state.currentPhase() != PhaseSignedIn {
		return
	}
	logger.Infof("[同步编排] 网络已恢复，开始推送")
	if err := o.Push(ctx); err != nil {
		logger.Warnf("[同步编排] 网络恢复后推送失败: %v", err)
	}
}

// PushEntity 单个作品的尽力推送，不占用同步标记
// 未登录时直接跳过
func (o *Orchestrator) PushEntity(ctx context.Context, novel *database.Novel) error {
	if o.state.currentPhase() != PhaseSignedIn {
		logger.Debugf("[同步编排] 未登录，跳过作品 %s 的推送", novel.ID)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.opTimeout)
	defer cancel()

	name := o.naming.EntityFile(novel.ID)
	start := o.now()
	var ref *remote.FileRef
	err := o.ensureCredential(ctx)
	if err == nil {
		ref, err = o.resolver.SyncJSON(ctx, name, novel)
	}
	entry := &database.SyncLog{Operation: database.SyncOpEntity, Target: name}
	if err != nil {
		o.fail(err, false)
		o.record(ctx, entry, start, err)
		return err
	}

	entry.Bytes = ref.Size
	o.record(ctx, entry, start, nil)
	if _, err := o.store.MarkSynced(ctx, novel.ID, novel.Version, o.now()); err != nil {
		logger.Warnf("[同步编排] 标记作品 %s 已同步失败: %v", novel.ID, err)
	}
	return nil
}

// DeleteEntity 删除本地作品，云端文件尽力删除
func (o *Orchestrator) DeleteEntity(ctx context.Context, id string) error {
	if err := o.store.DeleteNovel(ctx, id); err != nil {
		return err
	}
	if o.state.currentPhase() != PhaseSignedIn {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.opTimeout)
	defer cancel()
	name := o.naming.EntityFile(id)
	start := o.now()
	err := o.ensureCredential(ctx)
	if err == nil {
		err = o.resolver.DeleteByName(ctx, name)
	}
	o.record(ctx, &database.SyncLog{Operation: database.SyncOpDelete, Target: name}, start, err)
	if err != nil {
		o.fail(err, false)
		logger.Warnf("[同步编排] 云端删除作品 %s 失败，本地已删除: %v", id, err)
		return nil
	}

	// 聚合包里仍有该作品，推送一次避免下次拉取时被重新采纳
	o.goBackground(o.opTimeout, func(ctx context.Context) {
		if err := o.Push(ctx); err != nil && !apperrors.IsCode(err, apperrors.ErrSyncInProgress) {
			logger.Warnf("[同步编排] 删除后推送失败: %v", err)
		}
	})
	return nil
}

// ResetAll 清空本地数据、退出登录并重置同步状态
func (o *Orchestrator) ResetAll(ctx context.Context) error {
	if err := o.store.Reset(ctx); err != nil {
		return err
	}
	o.stopPeriodic()
	if err := o.creds.ClearToken(ctx); err != nil {
		logger.Warnf("[同步编排] 清除凭据失败: %v", err)
	}
	o.state.update(func(m *machine) {
		m.phase = PhaseSignedOut
		m.syncing = false
		m.last = nil
		m.err = nil
	})
	logger.Infof("[同步编排] 已清空全部数据")
	return nil
}

// Status 同步状态快照
func (o *Orchestrator) Status() Status {
	return o.state.status()
}

// RateLimitInfo 配额快照
func (o *Orchestrator) RateLimitInfo() ratelimit.Quota {
	return o.tracker.CheckQuota()
}

// Subscribe 订阅同步状态变化，返回取消订阅函数
func (o *Orchestrator) Subscribe(fn func(Status)) func() {
	return o.state.subscribe(fn)
}

// Logs 最近的同步日志
func (o *Orchestrator) Logs(ctx context.Context, limit int) ([]database.SyncLog, error) {
	return o.store.ListSyncLogs(ctx, limit)
}

// exclusive 同一时间只允许一个拉取或推送，正在同步时新的请求被丢弃
func (o *Orchestrator) exclusive(ctx context.Context, op string, fn func(context.Context) (int64, error)) error {
	ok, signedIn := o.state.beginSync()
	if !signedIn {
		return apperrors.New(apperrors.ErrNotSignedIn, "")
	}
	if !ok {
		logger.Infof("[同步编排] 已有同步在进行，丢弃本次%s请求", op)
		return apperrors.New(apperrors.ErrSyncInProgress, "")
	}

	ctx, cancel := context.WithTimeout(ctx, o.opTimeout)
	defer cancel()

	start := o.now()
	err := o.ensureCredential(ctx)
	var n int64
	if err == nil {
		n, err = fn(ctx)
	}
	o.record(ctx, &database.SyncLog{Operation: op, Target: o.naming.BundleName, Bytes: n}, start, err)

	if err != nil {
		logger.Errorf("[同步编排] %s 失败: %v", op, err)
		o.fail(err, true)
		return err
	}
	finished := o.now()
	o.state.update(func(m *machine) {
		m.syncing = false
		m.last = &finished
		m.err = nil
	})
	logger.Infof("[同步编排] %s 完成，耗时 %s", op, finished.Sub(start))
	return nil
}

// fail 记录错误，认证错误时回到未登录
// release 为真时同时释放同步标记，单作品推送不持有该标记
func (o *Orchestrator) fail(err error, release bool) {
	msg := apperrors.Describe(err, o.lang)
	authFailed := apperrors.IsCode(err, apperrors.ErrAuth)
	if authFailed {
		o.stopPeriodic()
		if clearErr := o.creds.ClearToken(context.Background()); clearErr != nil {
			logger.Warnf("[同步编排] 清除凭据失败: %v", clearErr)
		}
		logger.Warnf("[同步编排] 凭据失效，需要重新登录")
	}
	o.state.update(func(m *machine) {
		if release {
			m.syncing = false
		}
		m.setError(msg)
		if authFailed {
			m.phase = PhaseSignedOut
		}
	})
}

// ensureCredential 确认凭据有效，临近过期且可续期时先续期
func (o *Orchestrator) ensureCredential(ctx context.Context) error {
	c := o.creds.LoadToken(ctx)
	if c == nil {
		return apperrors.New(apperrors.ErrAuth, "credential missing or expired")
	}
	refresher, ok := o.authorizer.(auth.Refresher)
	if !ok || c.RefreshToken == "" || c.ExpiresAt.Sub(o.now()) > refreshSkew {
		return nil
	}
	tok, err := refresher.Refresh(ctx, c.Token())
	if err != nil {
		logger.Warnf("[同步编排] 凭据续期失败，继续使用当前凭据: %v", err)
		return nil
	}
	if err := o.creds.SaveToken(ctx, credential.FromToken(tok, o.now())); err != nil {
		logger.Warnf("[同步编排] 保存续期凭据失败: %v", err)
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, entry *database.SyncLog, start time.Time, err error) {
	entry.Status = database.SyncStatusSuccess
	entry.Duration = o.now().Sub(start).Milliseconds()
	if err != nil {
		entry.Status = database.SyncStatusFailed
		entry.ErrorMsg = err.Error()
	}
	// 操作超时后仍要写日志
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if logErr := o.store.AppendSyncLog(ctx, entry); logErr != nil {
		logger.Warnf("[同步编排] 写入同步日志失败: %v", logErr)
	}
}

func (o *Orchestrator) startPeriodic() {
	o.cronMu.Lock()
	defer o.cronMu.Unlock()
	if o.entryID != 0 {
		return
	}
	id, err := o.cron.AddFunc("@every "+o.interval.String(), o.periodicPush)
	if err != nil {
		logger.Errorf("[同步编排] 注册定时推送失败: %v", err)
		return
	}
	o.entryID = id
	logger.Infof("[同步编排] 定时推送已启动，间隔 %s", o.interval)
}

func (o *Orchestrator) stopPeriodic() {
	o.cronMu.Lock()
	defer o.cronMu.Unlock()
	if o.entryID == 0 {
		return
	}
	o.cron.Remove(o.entryID)
	o.entryID = 0
	logger.Infof("[同步编排] 定时推送已停止")
}

// PeriodicActive 定时推送是否在运行
func (o *Orchestrator) PeriodicActive() bool {
	o.cronMu.Lock()
	defer o.cronMu.Unlock()
	return o.entryID != 0
}

func (o *Orchestrator) periodicPush() {
	if err := o.Push(context.Background()); err != nil {
		logger.Warnf("[同步编排] 定时推送失败: %v", err)
	}
}
