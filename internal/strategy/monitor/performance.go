package monitor

import (
	"errors"
	"sync"
	"time"

	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
)

// StatsSource 附加到运行报告中的组件统计
type StatsSource interface {
	GetStats() map[string]interface{}
}

// PerformanceMonitor 运行统计监控器，按轮次累计结果
type PerformanceMonitor struct {
	reportEvery int
	metrics     *PerformanceMetrics
	sources     map[string]StatsSource
	mutex       sync.Mutex
}

// PerformanceMetrics 运行统计
type PerformanceMetrics struct {
	StartTime        time.Time     `json:"start_time"`
	TotalCycles      int64         `json:"total_cycles"`
	FailedCycles     int64         `json:"failed_cycles"`
	BuySignals       int64         `json:"buy_signals"`
	SellSignals      int64         `json:"sell_signals"`
	Suppressed       int64         `json:"suppressed"`
	OrdersSubmitted  int64         `json:"orders_submitted"`
	DataUnavailable  int64         `json:"data_unavailable"`
	InvalidPrice     int64         `json:"invalid_price"`
	SigningFailure   int64         `json:"signing_failure"`
	ExecutionFailure int64         `json:"execution_failure"`
	LastRSI          float64       `json:"last_rsi"`
	LastSignal       string        `json:"last_signal"`
	AvgCycleTime     time.Duration `json:"avg_cycle_time"`
	LastUpdateTime   time.Time     `json:"last_update_time"`

	totalCycleTime time.Duration
}

// NewPerformanceMonitor 创建监控器，每reportEvery轮输出一次报告
func NewPerformanceMonitor(reportEvery int) *PerformanceMonitor {
	return &PerformanceMonitor{
		reportEvery: reportEvery,
		sources:     make(map[string]StatsSource),
		metrics: &PerformanceMetrics{
			StartTime: time.Now(),
		},
	}
}

// AttachStats 注册组件统计，随运行报告一起输出
func (pm *PerformanceMonitor) AttachStats(name string, source StatsSource) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.sources[name] = source
}

// Record 记录一轮运行结果
func (pm *PerformanceMonitor) Record(report *types.CycleReport, err error) {
	pm.mutex.Lock()
	m := pm.metrics

	m.TotalCycles++
	m.LastUpdateTime = time.Now()

	if report != nil {
		m.totalCycleTime += report.Duration
		m.AvgCycleTime = m.totalCycleTime / time.Duration(m.TotalCycles)

		if report.Snapshot.HasRSI() {
			m.LastRSI = report.Snapshot.RSI
		}
		m.LastSignal = report.Signal.String()

		switch report.Signal {
		case types.SignalBuy:
			m.BuySignals++
		case types.SignalSell:
			m.SellSignals++
		}
		if report.Suppressed {
			m.Suppressed++
		}
		if report.Result != nil {
			m.OrdersSubmitted++
		}
	}

	if err != nil {
		m.FailedCycles++
		switch {
		case errors.Is(err, types.ErrDataUnavailable):
			m.DataUnavailable++
		case errors.Is(err, types.ErrInvalidPrice):
			m.InvalidPrice++
		case errors.Is(err, types.ErrSigningFailure):
			m.SigningFailure++
		case errors.Is(err, types.ErrExecutionFailure):
			m.ExecutionFailure++
		}
	}

	shouldReport := pm.reportEvery > 0 && m.TotalCycles%int64(pm.reportEvery) == 0
	pm.mutex.Unlock()

	if shouldReport {
		pm.generateReport()
	}
}

// generateReport 生成运行报告
func (pm *PerformanceMonitor) generateReport() {
	m := pm.GetMetrics()

	pm.mutex.Lock()
	extra := make([]zap.Field, 0, len(pm.sources))
	for name, source := range pm.sources {
		extra = append(extra, zap.Any(name, source.GetStats()))
	}
	pm.mutex.Unlock()

	fields := []zap.Field{
		zap.Duration("run_time", time.Since(m.StartTime).Truncate(time.Second)),
		zap.Int64("total_cycles", m.TotalCycles),
		zap.Int64("failed_cycles", m.FailedCycles),
		zap.Int64("buy_signals", m.BuySignals),
		zap.Int64("sell_signals", m.SellSignals),
		zap.Int64("suppressed", m.Suppressed),
		zap.Int64("orders_submitted", m.OrdersSubmitted),
		zap.Int64("data_unavailable", m.DataUnavailable),
		zap.Int64("execution_failure", m.ExecutionFailure),
		zap.Float64("last_rsi", m.LastRSI),
		zap.Duration("avg_cycle_time", m.AvgCycleTime),
	}
	zap.L().Info("📈 运行统计报告", append(fields, extra...)...)
}

// GetMetrics 获取当前统计的副本
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return *pm.metrics
}
