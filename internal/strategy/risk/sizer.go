package risk

import (
	"fmt"
	"math"

	"blofin-rsi-sentry/pkg/types"
	"github.com/shopspring/decimal"
)

// PositionSizer 仓位计算器：余额 × 风险占比 × 杠杆 / 价格
type PositionSizer struct {
	riskFraction float64
	leverage     int
	precision    int32
}

// NewPositionSizer 创建仓位计算器
func NewPositionSizer(trading types.TradingConfig) *PositionSizer {
	return &PositionSizer{
		riskFraction: trading.RiskFraction,
		leverage:     trading.Leverage,
		precision:    trading.SizePrecision,
	}
}

// Size 计算下单数量，按数量精度向下截断，避免超出风险预算
func (ps *PositionSizer) Size(balance, price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("%w: 价格无效 %v", types.ErrInvalidPrice, price)
	}
	if math.IsNaN(balance) || balance <= 0 {
		return 0, fmt.Errorf("%w: 可用余额不足 %v", types.ErrInvalidPrice, balance)
	}

	size := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(ps.riskFraction)).
		Mul(decimal.NewFromInt(int64(ps.leverage))).
		Div(decimal.NewFromFloat(price)).
		RoundDown(ps.precision)

	if !size.IsPositive() {
		return 0, fmt.Errorf("%w: 数量截断后为0 (余额=%v 价格=%v)", types.ErrInvalidPrice, balance, price)
	}

	result, _ := size.Float64()
	return result, nil
}
