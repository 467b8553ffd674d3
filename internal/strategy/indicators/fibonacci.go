package indicators

import "blofin-rsi-sentry/pkg/types"

// FibonacciCalculator 斐波那契回撤计算器
type FibonacciCalculator struct {
	window int
}

// NewFibonacciCalculator 创建回撤计算器
func NewFibonacciCalculator(window int) *FibonacciCalculator {
	return &FibonacciCalculator{
		window: window,
	}
}

// Calculate 以最近window根收盘价的最高/最低点计算回撤位，数据不足时使用全部数据
func (fc *FibonacciCalculator) Calculate(closes []float64) types.FibLevels {
	if len(closes) == 0 {
		return nil
	}

	start := 0
	if fc.window > 0 && len(closes) > fc.window {
		start = len(closes) - fc.window
	}

	highest, lowest := closes[start], closes[start]
	for _, c := range closes[start+1:] {
		if c > highest {
			highest = c
		}
		if c < lowest {
			lowest = c
		}
	}

	diff := highest - lowest
	levels := make(types.FibLevels, 0, len(types.FibRatios))
	for _, ratio := range types.FibRatios {
		price := highest - diff*ratio
		switch ratio {
		case 0:
			price = highest
		case 1:
			price = lowest
		}
		levels = append(levels, types.FibLevel{Ratio: ratio, Price: price})
	}

	return levels
}
