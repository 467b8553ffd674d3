package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RSICalculator RSI指标计算器（涨跌幅简单移动平均）
type RSICalculator struct {
	period int
}

// NewRSICalculator 创建RSI计算器
func NewRSICalculator(period int) *RSICalculator {
	return &RSICalculator{
		period: period,
	}
}

// Period RSI周期
func (rc *RSICalculator) Period() int {
	return rc.period
}

// Calculate 计算最新一根K线的RSI，数据不足 period+1 时返回NaN
func (rc *RSICalculator) Calculate(closes []float64) float64 {
	series := rc.Series(closes)
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Series 计算每根K线的RSI，前 period 根为NaN
func (rc *RSICalculator) Series(closes []float64) []float64 {
	result := make([]float64, len(closes))
	for i := range result {
		result[i] = math.NaN()
	}

	if rc.period <= 0 || len(closes) < rc.period+1 {
		return result
	}

	// 拆分上涨和下跌序列，gains[j]/losses[j] 对应 closes[j+1]-closes[j]
	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else if delta < 0 {
			losses[i-1] = -delta
		}
	}

	for i := rc.period; i < len(closes); i++ {
		avgGain := rc.calculateSMA(gains[i-rc.period : i])
		avgLoss := rc.calculateSMA(losses[i-rc.period : i])
		result[i] = rsiFromAverages(avgGain, avgLoss)
	}

	return result
}

// calculateSMA 对窗口求简单平均，窗口长度等于周期
func (rc *RSICalculator) calculateSMA(window []float64) float64 {
	sma := talib.Sma(window, rc.period)
	return sma[len(sma)-1]
}

// rsiFromAverages 平均跌幅为0时RSI饱和为100
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)

	// 浮点误差保护
	if rsi < 0 {
		return 0
	}
	if rsi > 100 {
		return 100
	}
	return rsi
}
