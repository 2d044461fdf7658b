// Package app 按配置组装本地存储、远程后端、同步编排器和HTTP路由
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/weiwangfds/novelsync/config"
	"github.com/weiwangfds/novelsync/internal/database"
	"github.com/weiwangfds/novelsync/internal/handler"
	"github.com/weiwangfds/novelsync/internal/i18n"
	"github.com/weiwangfds/novelsync/internal/logger"
	"github.com/weiwangfds/novelsync/internal/router"
	"github.com/weiwangfds/novelsync/internal/service/auth"
	"github.com/weiwangfds/novelsync/internal/service/autosave"
	"github.com/weiwangfds/novelsync/internal/service/credential"
	"github.com/weiwangfds/novelsync/internal/service/kv"
	"github.com/weiwangfds/novelsync/internal/service/netwatch"
	"github.com/weiwangfds/novelsync/internal/service/orchestrator"
	"github.com/weiwangfds/novelsync/internal/service/ratelimit"
	"github.com/weiwangfds/novelsync/internal/service/remote"
	"github.com/weiwangfds/novelsync/internal/service/store"
	"gorm.io/gorm"
)

// App 进程内的全部组件
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *autosave.Scheduler
	Monitor      *netwatch.Monitor
	Authorizer   auth.Authorizer

	cancel context.CancelFunc
}

// New 加载配置并创建全部组件，不启动后台任务
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	i18n.GetInstance().SetDefaultLanguage(cfg.Sync.Language)

	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, err
	}

	kvStore := kv.NewGormStore(db)
	creds := credential.NewStore(kvStore)
	tracker := ratelimit.NewTracker(cfg.Sync.DailyLimit, ratelimit.WithPersistence(kvStore))
	tracker.Load(ctx)

	backend, err := remote.NewBackend(ctx, cfg.Remote, creds.TokenSource(ctx), cfg.Sync.RequestTimeout)
	if err != nil {
		return nil, err
	}
	authorizer, err := newAuthorizer(cfg, backend)
	if err != nil {
		return nil, err
	}

	st := store.New(db)
	orch := orchestrator.New(orchestrator.Options{
		Store:            st,
		Backend:          backend,
		Tracker:          tracker,
		Credentials:      creds,
		Authorizer:       authorizer,
		Naming:           remote.Naming{EntityPrefix: cfg.Remote.EntityPrefix, BundleName: cfg.Remote.BundleName},
		PeriodicInterval: cfg.Sync.PeriodicInterval,
		OperationTimeout: cfg.Sync.OperationTimeout,
		Language:         cfg.Sync.Language,
	})
	scheduler := autosave.New(st, orch, cfg.Sync.Debounce, autosave.WithPushTimeout(cfg.Sync.OperationTimeout))
	monitor := netwatch.New(cfg.Sync.ProbeAddr, cfg.Sync.ProbeInterval, orch.HandleOnlineAsync)

	logger.Infof("[应用] 组件初始化完成，远程存储: %s", cfg.Remote.Provider)
	return &App{
		Config:       cfg,
		DB:           db,
		Store:        st,
		Orchestrator: orch,
		Scheduler:    scheduler,
		Monitor:      monitor,
		Authorizer:   authorizer,
	}, nil
}

// newAuthorizer Google Drive 使用浏览器授权，对象存储校验连通性后发放本地凭据
func newAuthorizer(cfg *config.Config, backend remote.Backend) (auth.Authorizer, error) {
	if cfg.Remote.Provider == config.ProviderGoogleDrive {
		return auth.NewGoogleAuthorizer(cfg.Remote.Drive), nil
	}
	tester, ok := backend.(remote.ConnectionTester)
	if !ok {
		return nil, fmt.Errorf("remote provider %s cannot test connection", cfg.Remote.Provider)
	}
	return auth.NewLeaseAuthorizer(tester, cfg.Remote.Object.LeaseDays), nil
}

// Start 恢复登录状态并启动定时推送和网络监测
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.Orchestrator.Start(ctx)
	a.Monitor.Start(ctx)
}

// Router 创建HTTP路由
func (a *App) Router() *router.Router {
	lang := a.Config.Sync.Language
	return router.NewRouter(router.Handlers{
		Novel: handler.NewNovelHandler(a.Store, a.Scheduler, a.Orchestrator, lang),
		Meta:  handler.NewMetaHandler(a.Store, lang),
		Sync:  handler.NewSyncHandler(a.Orchestrator, a.Scheduler, a.Authorizer, a.Monitor, lang),
	}, a.DB)
}

// Close 保存未落盘的编辑，等待进行中的推送，然后停止后台任务
func (a *App) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.Scheduler.Close(ctx); err != nil {
		logger.Warnf("[应用] 关闭自动保存失败: %v", err)
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.Orchestrator.Close()

	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Infof("[应用] 已关闭")
}
