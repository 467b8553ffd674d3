package engine

import (
	"context"
	"time"

	"blofin-rsi-sentry/internal/strategy/risk"
	"blofin-rsi-sentry/internal/strategy/signals"
	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
)

// CandleSource K线数据来源
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]*types.KLine, error)
}

// BalanceSource 账户余额来源
type BalanceSource interface {
	FetchBalance(ctx context.Context, currency string) (*types.AccountBalance, error)
}

// OrderPlacer 订单构建与提交
type OrderPlacer interface {
	BuildOrder(symbol string, signal types.Signal, entry, size float64) (*types.OrderRequest, error)
	Execute(ctx context.Context, order *types.OrderRequest) (*types.OrderResult, error)
}

// SignalFilter 重复信号过滤
type SignalFilter interface {
	Allow(ctx context.Context, symbol string, signal types.Signal, candleTime time.Time) bool
}

// RSIEngine RSI背离策略引擎，每轮独立运行，不保留上一轮的行情状态
type RSIEngine struct {
	trading  types.TradingConfig
	candles  CandleSource
	balances BalanceSource
	orders   OrderPlacer
	filter   SignalFilter
	detector *signals.RSISignalDetector
	sizer    *risk.PositionSizer
	now      func() time.Time
}

// NewRSIEngine 创建策略引擎，filter可以为nil
func NewRSIEngine(trading types.TradingConfig, strategy types.StrategyConfig, candles CandleSource, balances BalanceSource, orders OrderPlacer, filter SignalFilter) *RSIEngine {
	return &RSIEngine{
		trading:  trading,
		candles:  candles,
		balances: balances,
		orders:   orders,
		filter:   filter,
		detector: signals.NewRSISignalDetector(strategy),
		sizer:    risk.NewPositionSizer(trading),
		now:      time.Now,
	}
}

// RunCycle 执行一轮：拉取K线、计算指标、判断信号，有信号时计算仓位并下单
//
// 返回的报告总是非nil，出错时包含已完成的部分。
func (e *RSIEngine) RunCycle(ctx context.Context) (report *types.CycleReport, err error) {
	report = &types.CycleReport{
		Symbol:    e.trading.Symbol,
		Signal:    types.SignalHold,
		StartedAt: e.now(),
	}
	defer func() {
		report.Duration = e.now().Sub(report.StartedAt)
	}()

	// 1. 拉取K线
	klines, err := e.candles.FetchCandles(ctx, e.trading.Symbol, e.trading.Interval, e.trading.CandleLimit)
	if err != nil {
		return report, err
	}
	report.Klines = klines

	// 2. 计算指标并判断信号
	snapshot, signal := e.detector.DetectSignal(e.trading.Symbol, klines)
	report.Snapshot = snapshot
	report.Signal = signal

	if !snapshot.HasRSI() {
		zap.L().Debug("K线数量不足，RSI未定义",
			zap.String("symbol", e.trading.Symbol),
			zap.Int("available", len(klines)),
			zap.Int("required", e.detector.RequiredBars()))
	}

	if signal == types.SignalHold {
		return report, nil
	}

	// 3. 查询余额并计算仓位
	balance, err := e.balances.FetchBalance(ctx, e.trading.BalanceCurrency)
	if err != nil {
		return report, err
	}
	report.Balance = balance.Available

	size, err := e.sizer.Size(balance.Available, snapshot.LastClose)
	if err != nil {
		return report, err
	}

	// 4. 构建订单
	order, err := e.orders.BuildOrder(e.trading.Symbol, signal, snapshot.LastClose, size)
	if err != nil {
		return report, err
	}
	report.Order = order

	// 5. 同一根K线的同向信号只下单一次
	if e.filter != nil && !e.filter.Allow(ctx, e.trading.Symbol, signal, snapshot.CandleTime) {
		report.Suppressed = true
		return report, nil
	}

	result, err := e.orders.Execute(ctx, order)
	if err != nil {
		return report, err
	}
	report.Result = result

	return report, nil
}
