package signals

import (
	"blofin-rsi-sentry/internal/strategy/indicators"
	"blofin-rsi-sentry/pkg/types"
)

// RSISignalDetector RSI超买超卖+背离信号检测器
type RSISignalDetector struct {
	rsiCalc *indicators.RSICalculator
	divCalc *indicators.DivergenceDetector
	fibCalc *indicators.FibonacciCalculator
	config  types.StrategyConfig
}

// NewRSISignalDetector 创建信号检测器
func NewRSISignalDetector(config types.StrategyConfig) *RSISignalDetector {
	return &RSISignalDetector{
		rsiCalc: indicators.NewRSICalculator(config.RSIPeriod),
		divCalc: indicators.NewDivergenceDetector(config.DivergenceWindow),
		fibCalc: indicators.NewFibonacciCalculator(config.FibWindow),
		config:  config,
	}
}

// Snapshot 基于当前K线窗口计算全部指标，不依赖上一轮状态
func (d *RSISignalDetector) Snapshot(symbol string, klines []*types.KLine) *types.IndicatorSnapshot {
	closes := types.Closes(klines)
	series := d.rsiCalc.Series(closes)

	snapshot := &types.IndicatorSnapshot{
		Symbol:     symbol,
		RSISeries:  series,
		Divergence: d.divCalc.Detect(closes, series),
		FibLevels:  d.fibCalc.Calculate(closes),
	}
	if n := len(klines); n > 0 {
		snapshot.CandleTime = klines[n-1].OpenTime
		snapshot.LastClose = klines[n-1].Close
		snapshot.RSI = series[n-1]
	} else {
		snapshot.RSI = d.rsiCalc.Calculate(nil)
	}

	return snapshot
}

// Evaluate 根据指标快照给出信号，RSI未定义时返回Hold
func (d *RSISignalDetector) Evaluate(snapshot *types.IndicatorSnapshot) types.Signal {
	if !snapshot.HasRSI() {
		return types.SignalHold
	}

	requireDiv := d.config.RequireDivergence

	if snapshot.RSI < d.config.Oversold &&
		(!requireDiv || snapshot.Divergence == types.DivergenceBullish) {
		return types.SignalBuy
	}

	if snapshot.RSI > d.config.Overbought &&
		(!requireDiv || snapshot.Divergence == types.DivergenceBearish) {
		return types.SignalSell
	}

	return types.SignalHold
}

// DetectSignal 计算快照并给出信号
func (d *RSISignalDetector) DetectSignal(symbol string, klines []*types.KLine) (*types.IndicatorSnapshot, types.Signal) {
	snapshot := d.Snapshot(symbol, klines)
	return snapshot, d.Evaluate(snapshot)
}

// RequiredBars RSI有定义所需的最少K线数量
func (d *RSISignalDetector) RequiredBars() int {
	return d.rsiCalc.Period() + 1
}
