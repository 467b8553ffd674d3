package types

import "time"

// Signal 交易信号
type Signal int

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Side 下单方向，Hold 返回空字符串
func (s Signal) Side() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return ""
	}
}

// PositionSide 持仓方向
func (s Signal) PositionSide() string {
	if s == SignalSell {
		return "short"
	}
	return "long"
}

// OrderRequest 下单请求，每次执行时新建，不持久化
type OrderRequest struct {
	Symbol          string  `json:"symbol"`
	Side            Signal  `json:"side"`
	Quantity        float64 `json:"quantity"`
	EntryPrice      float64 `json:"entry_price"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`
	Leverage        int     `json:"leverage"`
	MarginMode      string  `json:"margin_mode"`
}

// OrderResult 下单结果
type OrderResult struct {
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	Code      string    `json:"code"`
	Msg       string    `json:"msg"`
	DryRun    bool      `json:"dry_run"`
	Submitted time.Time `json:"submitted"`
}

// CycleReport 单轮运行结果
type CycleReport struct {
	Symbol     string             `json:"symbol"`
	Snapshot   *IndicatorSnapshot `json:"snapshot"`
	Signal     Signal             `json:"signal"`
	Suppressed bool               `json:"suppressed"` // 信号被去重拦截
	Balance    float64            `json:"balance"`
	Order      *OrderRequest      `json:"order,omitempty"`
	Result     *OrderResult       `json:"result,omitempty"`
	Klines     []*KLine           `json:"-"`
	StartedAt  time.Time          `json:"started_at"`
	Duration   time.Duration      `json:"duration"`
}

// TradeAlert 交易通知
type TradeAlert struct {
	Symbol    string        `json:"symbol"`
	Signal    Signal        `json:"signal"`
	RSI       float64       `json:"rsi"`
	Order     *OrderRequest `json:"order"`
	Result    *OrderResult  `json:"result,omitempty"`
	Err       error         `json:"-"`
	AlertTime time.Time     `json:"alert_time"`
}
