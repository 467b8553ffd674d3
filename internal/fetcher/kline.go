package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"blofin-rsi-sentry/internal/blofin"
	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
)

// KlineFetcher K线数据获取器
type KlineFetcher struct {
	client *blofin.Client
	path   string
	signed bool
}

// NewKlineFetcher 创建K线获取器
func NewKlineFetcher(client *blofin.Client, exchange types.ExchangeConfig) *KlineFetcher {
	return &KlineFetcher{
		client: client,
		path:   exchange.KlinePath,
		signed: exchange.SignMarketData && client.HasCredentials(),
	}
}

// FetchCandles 获取最近limit根K线，按时间从旧到新返回
//
// 单次请求，不在内部重试；任何一根K线解析失败都视为整次获取失败。
func (f *KlineFetcher) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]*types.KLine, error) {
	query := url.Values{}
	query.Set("instId", symbol)
	query.Set("bar", interval)
	query.Set("limit", strconv.Itoa(limit))

	zap.L().Debug("📊 获取K线数据",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("limit", limit))

	body, err := f.client.Get(ctx, f.path, query, f.signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}

	return parseKlineResponse(symbol, interval, body)
}

// parseKlineResponse 解析K线响应，数据格式: [ts, open, high, low, close, vol, ...]
func parseKlineResponse(symbol, interval string, body []byte) ([]*types.KLine, error) {
	resp, err := blofin.DecodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}

	// 检查API返回码
	if !resp.Code.OK() {
		return nil, fmt.Errorf("%w: API返回错误: code=%s, msg=%s", types.ErrDataUnavailable, resp.Code, resp.Msg)
	}

	var rows [][]flexValue
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &rows); err != nil {
			return nil, fmt.Errorf("%w: 解析K线数组失败: %v", types.ErrDataUnavailable, err)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: K线数据为空 %s %s", types.ErrDataUnavailable, symbol, interval)
	}

	klines := make([]*types.KLine, 0, len(rows))
	for i, row := range rows {
		kline, err := parseKlineRow(symbol, interval, row)
		if err != nil {
			return nil, fmt.Errorf("%w: 第%d根K线: %v", types.ErrDataUnavailable, i, err)
		}
		klines = append(klines, kline)
	}

	// 交易所返回从新到旧，统一按开盘时间升序
	sort.SliceStable(klines, func(i, j int) bool {
		return klines[i].OpenTime.Before(klines[j].OpenTime)
	})

	return klines, nil
}

// parseKlineRow 解析单根K线
func parseKlineRow(symbol, interval string, row []flexValue) (*types.KLine, error) {
	if len(row) < 5 {
		return nil, fmt.Errorf("K线数据格式不正确: 字段数%d", len(row))
	}

	openTime, err := parseTimestamp(string(row[0]))
	if err != nil {
		return nil, fmt.Errorf("解析时间戳失败: %v", err)
	}

	fields := []string{"开盘价", "最高价", "最低价", "收盘价", "成交量"}
	values := make([]float64, len(fields))
	for i := range fields {
		idx := i + 1
		if idx >= len(row) {
			break // 部分接口不返回成交量
		}
		v, err := parseFloat(string(row[idx]))
		if err != nil {
			return nil, fmt.Errorf("解析%s失败: %v", fields[i], err)
		}
		values[i] = v
	}

	return &types.KLine{
		Symbol:    symbol,
		OpenTime:  openTime,
		CloseTime: openTime.Add(getIntervalDuration(interval)),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		Interval:  interval,
	}, nil
}
