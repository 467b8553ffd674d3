package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"blofin-rsi-sentry/internal/blofin"
	"blofin-rsi-sentry/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderExecutor 下单执行器：计算止盈止损、构建订单并提交
type OrderExecutor struct {
	client   *blofin.Client
	path     string
	trading  types.TradingConfig
	strategy types.StrategyConfig
	now      func() time.Time
}

// orderPayload BloFin下单请求体，所有数值均为字符串
type orderPayload struct {
	InstID         string `json:"instId"`
	Side           string `json:"side"`
	OrdType        string `json:"ordType"`
	PosSide        string `json:"posSide"`
	MarginMode     string `json:"marginMode"`
	Lever          string `json:"lever"`
	Size           string `json:"sz"`
	ClientOrderID  string `json:"clientOrderId,omitempty"`
	TPTriggerPrice string `json:"tpTriggerPrice"`
	TPOrderPrice   string `json:"tpOrderPrice"`
	SLTriggerPrice string `json:"slTriggerPrice"`
	SLOrderPrice   string `json:"slOrderPrice"`
}

type orderAck struct {
	OrderID       string      `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Code          blofin.Code `json:"code"`
	Msg           string      `json:"msg"`
}

// NewOrderExecutor 创建下单执行器
func NewOrderExecutor(client *blofin.Client, exchange types.ExchangeConfig, trading types.TradingConfig, strategy types.StrategyConfig) *OrderExecutor {
	return &OrderExecutor{
		client:   client,
		path:     exchange.OrderPath,
		trading:  trading,
		strategy: strategy,
		now:      time.Now,
	}
}

// ProtectiveLevels 计算止损和止盈价格，按价格精度四舍五入
//
// 买入: 止损 < 入场 < 止盈；卖出: 止盈 < 入场 < 止损。
func (e *OrderExecutor) ProtectiveLevels(signal types.Signal, entry float64) (stopLoss, takeProfit float64, err error) {
	if math.IsNaN(entry) || math.IsInf(entry, 0) || entry <= 0 {
		return 0, 0, fmt.Errorf("%w: 入场价无效 %v", types.ErrInvalidPrice, entry)
	}

	price := decimal.NewFromFloat(entry)
	one := decimal.NewFromInt(1)
	sl := decimal.NewFromFloat(e.strategy.StopLossPct)
	tp := decimal.NewFromFloat(e.strategy.TakeProfitPct)

	var stop, take decimal.Decimal
	switch signal {
	case types.SignalBuy:
		stop = price.Mul(one.Sub(sl))
		take = price.Mul(one.Add(tp))
	case types.SignalSell:
		stop = price.Mul(one.Add(sl))
		take = price.Mul(one.Sub(tp))
	default:
		return 0, 0, fmt.Errorf("%w: Hold信号不能下单", types.ErrInvalidPrice)
	}

	stop = stop.Round(e.trading.PricePrecision)
	take = take.Round(e.trading.PricePrecision)

	// 精度太低时四舍五入可能破坏价格顺序
	var valid bool
	if signal == types.SignalBuy {
		valid = stop.LessThan(price) && price.LessThan(take) && stop.IsPositive()
	} else {
		valid = take.LessThan(price) && price.LessThan(stop) && take.IsPositive()
	}
	if !valid {
		return 0, 0, fmt.Errorf("%w: 止盈止损价格无效 入场=%v 止损=%s 止盈=%s",
			types.ErrInvalidPrice, entry, stop, take)
	}

	stopLoss, _ = stop.Float64()
	takeProfit, _ = take.Float64()
	return stopLoss, takeProfit, nil
}

// BuildOrder 构建下单请求
func (e *OrderExecutor) BuildOrder(symbol string, signal types.Signal, entry, size float64) (*types.OrderRequest, error) {
	if size <= 0 || math.IsNaN(size) {
		return nil, fmt.Errorf("%w: 下单数量无效 %v", types.ErrInvalidPrice, size)
	}

	stopLoss, takeProfit, err := e.ProtectiveLevels(signal, entry)
	if err != nil {
		return nil, err
	}

	return &types.OrderRequest{
		Symbol:          symbol,
		Side:            signal,
		Quantity:        size,
		EntryPrice:      entry,
		StopLossPrice:   stopLoss,
		TakeProfitPrice: takeProfit,
		Leverage:        e.trading.Leverage,
		MarginMode:      e.trading.MarginMode,
	}, nil
}

// Execute 提交市价单；非幂等，不重试
func (e *OrderExecutor) Execute(ctx context.Context, order *types.OrderRequest) (*types.OrderResult, error) {
	payload := e.buildPayload(order)

	if e.trading.DryRun {
		zap.L().Info("🧪 模拟下单，未提交到交易所",
			zap.String("symbol", payload.InstID),
			zap.String("side", payload.Side),
			zap.String("size", payload.Size),
			zap.String("sl", payload.SLTriggerPrice),
			zap.String("tp", payload.TPTriggerPrice))
		return &types.OrderResult{
			ClientID:  payload.ClientOrderID,
			Code:      "0",
			DryRun:    true,
			Submitted: e.now(),
		}, nil
	}

	body, err := e.client.Post(ctx, e.path, payload)
	if err != nil {
		if errors.Is(err, types.ErrSigningFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", types.ErrExecutionFailure, err)
	}

	result, err := parseOrderResponse(body)
	if err != nil {
		return nil, err
	}
	result.Submitted = e.now()
	if result.ClientID == "" {
		result.ClientID = payload.ClientOrderID
	}

	zap.L().Info("✅ 订单已提交",
		zap.String("symbol", payload.InstID),
		zap.String("side", payload.Side),
		zap.String("size", payload.Size),
		zap.String("order_id", result.OrderID))

	return result, nil
}

func (e *OrderExecutor) buildPayload(order *types.OrderRequest) *orderPayload {
	marginMode := order.MarginMode
	if marginMode == "" {
		marginMode = "cross"
	}

	return &orderPayload{
		InstID:         order.Symbol,
		Side:           order.Side.Side(),
		OrdType:        "market",
		PosSide:        order.Side.PositionSide(),
		MarginMode:     marginMode,
		Lever:          strconv.Itoa(order.Leverage),
		Size:           decimal.NewFromFloat(order.Quantity).String(),
		ClientOrderID:  strings.ReplaceAll(uuid.NewString(), "-", ""),
		TPTriggerPrice: decimal.NewFromFloat(order.TakeProfitPrice).String(),
		TPOrderPrice:   "-1",
		SLTriggerPrice: decimal.NewFromFloat(order.StopLossPrice).String(),
		SLOrderPrice:   "-1",
	}
}

// parseOrderResponse 只有code为0才算下单成功
func parseOrderResponse(body []byte) (*types.OrderResult, error) {
	resp, err := blofin.DecodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExecutionFailure, err)
	}

	if !resp.Code.OK() {
		return nil, fmt.Errorf("%w: 下单被拒绝: code=%s, msg=%s", types.ErrExecutionFailure, resp.Code, resp.Msg)
	}

	result := &types.OrderResult{Code: string(resp.Code), Msg: resp.Msg}

	var acks []orderAck
	if len(resp.Data) > 0 && json.Unmarshal(resp.Data, &acks) == nil && len(acks) > 0 {
		ack := acks[0]
		if ack.Code != "" && !ack.Code.OK() {
			return nil, fmt.Errorf("%w: 订单被拒绝: code=%s, msg=%s", types.ErrExecutionFailure, ack.Code, ack.Msg)
		}
		result.OrderID = ack.OrderID
		result.ClientID = ack.ClientOrderID
	}

	return result, nil
}
