package types

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Divergence 价格与RSI背离类型
type Divergence int

const (
	DivergenceNone Divergence = iota
	DivergenceBullish
	DivergenceBearish
)

func (d Divergence) String() string {
	switch d {
	case DivergenceBullish:
		return "BULLISH"
	case DivergenceBearish:
		return "BEARISH"
	default:
		return "NONE"
	}
}

// FibRatios 斐波那契回撤比例，从高点(0)到低点(1)
var FibRatios = []float64{0.0, 0.236, 0.382, 0.5, 0.618, 0.786, 1.0}

// FibLevel 单个回撤位
type FibLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// FibLevels 回撤位列表，按比例升序排列
type FibLevels []FibLevel

// Level 按比例查找价格
func (fl FibLevels) Level(ratio float64) (float64, bool) {
	for _, l := range fl {
		if l.Ratio == ratio {
			return l.Price, true
		}
	}
	return 0, false
}

// String 输出 "0=108 0.236=105.31 ..." 形式，价格保留两位小数
func (fl FibLevels) String() string {
	parts := make([]string, len(fl))
	for i, l := range fl {
		parts[i] = strconv.FormatFloat(l.Ratio, 'f', -1, 64) + "=" + strconv.FormatFloat(l.Price, 'f', 2, 64)
	}
	return strings.Join(parts, " ")
}

// IndicatorSnapshot 单轮指标快照，每轮重新计算
type IndicatorSnapshot struct {
	Symbol     string     `json:"symbol"`
	CandleTime time.Time  `json:"candle_time"` // 最新K线开盘时间
	LastClose  float64    `json:"last_close"`  // 最新收盘价，也是下单的入场价
	RSI        float64    `json:"rsi"`         // 数据不足时为NaN
	RSISeries  []float64  `json:"-"`
	Divergence Divergence `json:"divergence"`
	FibLevels  FibLevels  `json:"fib_levels"`
}

// HasRSI RSI是否已定义
func (s *IndicatorSnapshot) HasRSI() bool {
	return s != nil && !math.IsNaN(s.RSI)
}
