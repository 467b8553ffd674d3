package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"blofin-rsi-sentry/internal/blofin"
	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
)

// AccountFetcher 账户余额获取器
type AccountFetcher struct {
	client     *blofin.Client
	path       string
	maxRetries uint64
}

type balanceDetail struct {
	Currency  string    `json:"currency"`
	Equity    flexValue `json:"equity"`
	Balance   flexValue `json:"balance"`
	Available flexValue `json:"available"`
}

type balanceData struct {
	TotalEquity flexValue       `json:"totalEquity"`
	Details     []balanceDetail `json:"details"`
}

// NewAccountFetcher 创建余额获取器
func NewAccountFetcher(client *blofin.Client, exchange types.ExchangeConfig) *AccountFetcher {
	return &AccountFetcher{
		client:     client,
		path:       exchange.BalancePath,
		maxRetries: exchange.BalanceRetries,
	}
}

// FetchBalance 获取指定币种可用余额；只读请求，允许退避重试
//
// 失败时返回 ErrDataUnavailable，不使用任何默认余额。
func (f *AccountFetcher) FetchBalance(ctx context.Context, currency string) (*types.AccountBalance, error) {
	body, err := f.client.GetWithRetry(ctx, f.path, nil, true, f.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: 获取余额失败: %v", types.ErrDataUnavailable, err)
	}

	balance, err := parseBalanceResponse(currency, body)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("💰 获取账户余额",
		zap.String("currency", balance.Currency),
		zap.Float64("available", balance.Available))

	return balance, nil
}

func parseBalanceResponse(currency string, body []byte) (*types.AccountBalance, error) {
	resp, err := blofin.DecodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}
	if !resp.Code.OK() {
		return nil, fmt.Errorf("%w: API返回错误: code=%s, msg=%s", types.ErrDataUnavailable, resp.Code, resp.Msg)
	}

	var data balanceData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: 解析余额数据失败: %v", types.ErrDataUnavailable, err)
	}

	for _, d := range data.Details {
		if !strings.EqualFold(d.Currency, currency) {
			continue
		}

		raw := d.Available
		if raw == "" {
			raw = d.Balance
		}
		available, err := parseFloat(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: 解析可用余额失败: %v", types.ErrDataUnavailable, err)
		}

		equity, _ := parseFloat(string(d.Equity))
		return &types.AccountBalance{
			Currency:  strings.ToUpper(d.Currency),
			Available: available,
			Equity:    equity,
		}, nil
	}

	return nil, fmt.Errorf("%w: 未找到币种 %s 的余额", types.ErrDataUnavailable, currency)
}
