package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blofin-rsi-sentry/internal/notifier"
	"blofin-rsi-sentry/internal/strategy/monitor"
	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
)

// CycleRunner 单轮策略执行
type CycleRunner interface {
	RunCycle(ctx context.Context) (*types.CycleReport, error)
}

// Journal 运行快照记录
type Journal interface {
	SaveCycle(report *types.CycleReport) error
}

// Scheduler 调度器：定时触发一轮策略，处理日志、通知和统计
type Scheduler struct {
	runner   CycleRunner
	notifier notifier.Interface
	monitor  *monitor.PerformanceMonitor
	journal  Journal
	interval time.Duration
}

// NewScheduler 创建调度器，journal可以为nil
func NewScheduler(runner CycleRunner, notifyService notifier.Interface, perfMonitor *monitor.PerformanceMonitor, journal Journal, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		runner:   runner,
		notifier: notifyService,
		monitor:  perfMonitor,
		journal:  journal,
		interval: interval,
	}
}

// Start 立即执行一轮，之后按固定间隔执行，直到ctx取消
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("🚀 调度器启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			zap.L().Info("📴 调度器已停止")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce 执行一轮，任何错误都只记录不退出
func (s *Scheduler) RunOnce(ctx context.Context) {
	report, err := s.safeRun(ctx)

	s.logCycle(report, err)

	if s.monitor != nil {
		s.monitor.Record(report, err)
	}

	s.notify(report, err)

	if s.journal != nil && report != nil && report.Snapshot != nil {
		if jerr := s.journal.SaveCycle(report); jerr != nil {
			zap.L().Warn("⚠️ 保存运行快照失败", zap.Error(jerr))
		}
	}
}

// safeRun 单轮panic不影响后续调度
func (s *Scheduler) safeRun(ctx context.Context) (report *types.CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("💥 策略执行panic", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.runner.RunCycle(ctx)
}

// logCycle 每轮输出一行结果
func (s *Scheduler) logCycle(report *types.CycleReport, err error) {
	fields := []zap.Field{}
	if report != nil {
		fields = append(fields, zap.String("symbol", report.Symbol))
		if report.Snapshot.HasRSI() {
			fields = append(fields,
				zap.Float64("rsi", report.Snapshot.RSI),
				zap.Float64("close", report.Snapshot.LastClose),
				zap.String("divergence", report.Snapshot.Divergence.String()),
				zap.Stringer("fib", report.Snapshot.FibLevels))
		}
		fields = append(fields,
			zap.String("signal", report.Signal.String()),
			zap.Duration("duration", report.Duration))
	}

	switch {
	case err == nil && report != nil && report.Suppressed:
		zap.L().Info("🔁 重复信号已跳过", fields...)
	case err == nil:
		zap.L().Info("📊 本轮完成", fields...)
	case errors.Is(err, types.ErrDataUnavailable):
		zap.L().Error("⏭️ 数据不可用，跳过本轮", append(fields, zap.Error(err))...)
	case errors.Is(err, types.ErrInvalidPrice):
		zap.L().Error("⏭️ 价格或仓位无效，跳过下单", append(fields, zap.Error(err))...)
	case errors.Is(err, types.ErrSigningFailure):
		zap.L().Error("❌ 请求签名失败", append(fields, zap.Error(err))...)
	case errors.Is(err, types.ErrExecutionFailure):
		zap.L().Error("❌ 下单失败", append(fields, zap.Error(err))...)
	default:
		zap.L().Error("❌ 本轮执行失败", append(fields, zap.Error(err))...)
	}
}

// notify 订单提交成功或失败时推送通知
func (s *Scheduler) notify(report *types.CycleReport, err error) {
	if s.notifier == nil || report == nil || report.Order == nil || report.Suppressed {
		return
	}
	if report.Result == nil && err == nil {
		return
	}

	alert := &types.TradeAlert{
		Symbol:    report.Symbol,
		Signal:    report.Signal,
		Order:     report.Order,
		Result:    report.Result,
		Err:       err,
		AlertTime: time.Now(),
	}
	if report.Snapshot.HasRSI() {
		alert.RSI = report.Snapshot.RSI
	}

	if nerr := s.notifier.SendTradeAlert(alert); nerr != nil {
		zap.L().Warn("⚠️ 发送通知失败", zap.Error(nerr))
	}
}
