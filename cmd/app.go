package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"blofin-rsi-sentry/internal/blofin"
	"blofin-rsi-sentry/internal/fetcher"
	"blofin-rsi-sentry/internal/notifier"
	"blofin-rsi-sentry/internal/scheduler"
	"blofin-rsi-sentry/internal/storage"
	"blofin-rsi-sentry/internal/strategy/database"
	"blofin-rsi-sentry/internal/strategy/engine"
	"blofin-rsi-sentry/internal/strategy/monitor"
	"blofin-rsi-sentry/internal/trader"
	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
)

// App 应用程序管理器
type App struct {
	config    *types.Config
	scheduler *scheduler.Scheduler
	guard     *storage.SignalGuard
	dbManager *database.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp 创建应用程序实例并装配各模块
func NewApp(config *types.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	client := blofin.NewClient(config.Exchange, config.Network)
	klineFetcher := fetcher.NewKlineFetcher(client, config.Exchange)
	accountFetcher := fetcher.NewAccountFetcher(client, config.Exchange)
	executor := trader.NewOrderExecutor(client, config.Exchange, config.Trading, config.Strategy)

	app.guard = storage.NewSignalGuard(config.Redis, config.Fetch.SignalCooldown)

	strategyEngine := engine.NewRSIEngine(
		config.Trading,
		config.Strategy,
		klineFetcher,
		accountFetcher,
		executor,
		app.guard,
	)

	// 快照记录是可选的，未配置MySQL时跳过
	var journal scheduler.Journal
	if config.Database.MySQL.Host != "" {
		dbManager, err := database.NewManager(config.Database.MySQL)
		if err != nil {
			zap.L().Warn("⚠️ MySQL不可用，不记录运行快照", zap.Error(err))
		} else if err := dbManager.Health(); err != nil {
			zap.L().Warn("⚠️ MySQL健康检查失败，不记录运行快照", zap.Error(err))
			dbManager.Close()
		} else {
			app.dbManager = dbManager
			journal = dbManager
		}
	}

	notifyService := notifier.New(config.DingTalk, config.PushPlus)
	perfMonitor := monitor.NewPerformanceMonitor(config.Fetch.StatsEvery)
	perfMonitor.AttachStats("signal_guard", app.guard)

	app.scheduler = scheduler.NewScheduler(strategyEngine, notifyService, perfMonitor, journal, config.Fetch.Interval)

	return app, nil
}

// Start 启动应用程序
func (app *App) Start() {
	zap.L().Info("🚀 BloFin RSI Sentry 启动中...",
		zap.String("symbol", app.config.Trading.Symbol),
		zap.String("interval", app.config.Trading.Interval),
		zap.Int("leverage", app.config.Trading.Leverage),
		zap.Bool("dry_run", app.config.Trading.DryRun))

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.scheduler.Start(app.ctx)
	}()

	zap.L().Info("✅ BloFin RSI Sentry 已启动")
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ BloFin RSI Sentry 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	if err := app.guard.Close(); err != nil {
		zap.L().Warn("关闭Redis连接失败", zap.Error(err))
	}
	if app.dbManager != nil {
		if err := app.dbManager.Close(); err != nil {
			zap.L().Warn("关闭数据库连接失败", zap.Error(err))
		}
	}
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
