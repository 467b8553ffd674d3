package indicators

import (
	"math"
	"sort"

	"blofin-rsi-sentry/pkg/types"
)

// DivergenceDetector 价格与RSI背离检测器
type DivergenceDetector struct {
	window int
}

// NewDivergenceDetector 创建背离检测器，window为最近K线数量
func NewDivergenceDetector(window int) *DivergenceDetector {
	return &DivergenceDetector{
		window: window,
	}
}

// Detect 在最近window根K线内检测背离
//
// 收盘价和RSI各自取两个最高值（或最低值），按时间先后比较：
// 价格创新高而RSI走低为看跌背离，价格创新低而RSI走高为看涨背离。
func (dd *DivergenceDetector) Detect(closes, rsi []float64) types.Divergence {
	if dd.window < 2 || len(closes) < dd.window || len(rsi) != len(closes) {
		return types.DivergenceNone
	}

	priceWindow := closes[len(closes)-dd.window:]
	rsiWindow := rsi[len(rsi)-dd.window:]
	for _, v := range rsiWindow {
		if math.IsNaN(v) {
			return types.DivergenceNone
		}
	}

	bearish := dd.isBearish(priceWindow, rsiWindow)
	bullish := dd.isBullish(priceWindow, rsiWindow)

	switch {
	case bearish && bullish:
		// 高低点同时背离时信号互相矛盾
		return types.DivergenceNone
	case bearish:
		return types.DivergenceBearish
	case bullish:
		return types.DivergenceBullish
	default:
		return types.DivergenceNone
	}
}

// isBearish 价格更高的高点，RSI更低的高点
func (dd *DivergenceDetector) isBearish(prices, rsi []float64) bool {
	pEarly, pLate := extremePair(prices, true)
	rEarly, rLate := extremePair(rsi, true)
	return prices[pLate] > prices[pEarly] && rsi[rLate] < rsi[rEarly]
}

// isBullish 价格更低的低点，RSI更高的低点
func (dd *DivergenceDetector) isBullish(prices, rsi []float64) bool {
	pEarly, pLate := extremePair(prices, false)
	rEarly, rLate := extremePair(rsi, false)
	return prices[pLate] < prices[pEarly] && rsi[rLate] > rsi[rEarly]
}

// extremePair 返回两个最高（highest=true）或最低值的下标，按时间先后排列
func extremePair(values []float64, highest bool) (int, int) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}

	// 数值相同时按时间先后排名
	sort.SliceStable(idx, func(a, b int) bool {
		if highest {
			return values[idx[a]] > values[idx[b]]
		}
		return values[idx[a]] < values[idx[b]]
	})

	first, second := idx[0], idx[1]
	if first > second {
		first, second = second, first
	}
	return first, second
}
