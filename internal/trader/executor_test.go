package trader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"blofin-rsi-sentry/internal/blofin"
	"blofin-rsi-sentry/pkg/types"
)

func testConfigs(baseURL string) (types.ExchangeConfig, types.TradingConfig, types.StrategyConfig) {
	return types.ExchangeConfig{
			BaseURL:   baseURL,
			APIKey:    "key",
			APISecret: "secret",
			OrderPath: "/api/v1/trade/order",
		}, types.TradingConfig{
			Symbol:         "BTC-USDT",
			Leverage:       10,
			MarginMode:     "cross",
			PricePrecision: 2,
			SizePrecision:  4,
		}, types.StrategyConfig{
			StopLossPct:   0.01,
			TakeProfitPct: 0.04,
		}
}

func newExecutor(baseURL string, dryRun bool) *OrderExecutor {
	exchange, trading, strategy := testConfigs(baseURL)
	trading.DryRun = dryRun
	client := blofin.NewClient(exchange, types.NetworkConfig{Timeout: 5 * time.Second})
	return NewOrderExecutor(client, exchange, trading, strategy)
}

func TestProtectiveLevels(t *testing.T) {
	tests := []struct {
		name     string
		signal   types.Signal
		entry    float64
		wantStop float64
		wantTake float64
	}{
		{name: "买入", signal: types.SignalBuy, entry: 50000, wantStop: 49500, wantTake: 52000},
		{name: "卖出", signal: types.SignalSell, entry: 50000, wantStop: 50500, wantTake: 48000},
		{name: "买入四舍五入", signal: types.SignalBuy, entry: 123.456, wantStop: 122.22, wantTake: 128.39},
		{name: "卖出四舍五入", signal: types.SignalSell, entry: 123.456, wantStop: 124.69, wantTake: 118.52},
	}

	e := newExecutor("http://127.0.0.1:0", true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop, take, err := e.ProtectiveLevels(tt.signal, tt.entry)
			if err != nil {
				t.Fatalf("ProtectiveLevels() error = %v", err)
			}
			if stop != tt.wantStop || take != tt.wantTake {
				t.Errorf("stop=%v take=%v, want %v %v", stop, take, tt.wantStop, tt.wantTake)
			}
			if tt.signal == types.SignalBuy && !(stop < tt.entry && tt.entry < take) {
				t.Errorf("buy ordering violated")
			}
			if tt.signal == types.SignalSell && !(take < tt.entry && tt.entry < stop) {
				t.Errorf("sell ordering violated")
			}
		})
	}
}

func TestProtectiveLevelsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		signal types.Signal
		entry  float64
	}{
		{name: "入场价为0", signal: types.SignalBuy, entry: 0},
		{name: "入场价为负", signal: types.SignalSell, entry: -5},
		{name: "精度不足导致价格重合", signal: types.SignalBuy, entry: 0.001},
		{name: "Hold信号", signal: types.SignalHold, entry: 100},
	}

	e := newExecutor("http://127.0.0.1:0", true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := e.ProtectiveLevels(tt.signal, tt.entry); !errors.Is(err, types.ErrInvalidPrice) {
				t.Errorf("err = %v, want ErrInvalidPrice", err)
			}
		})
	}
}

func TestExecuteSubmitsPayload(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/trade/order" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(blofin.HeaderSign) == "" {
			t.Error("order must be signed")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("payload is not a string map: %v", err)
		}
		w.Write([]byte(`{"code":"0","msg":"","data":[{"orderId":"28150801","clientOrderId":"","code":"0","msg":"success"}]}`))
	}))
	defer server.Close()

	e := newExecutor(server.URL, false)
	order, err := e.BuildOrder("BTC-USDT", types.SignalSell, 50000, 0.2)
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.Execute(context.Background(), order)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.OrderID != "28150801" || result.DryRun {
		t.Errorf("result = %+v", result)
	}

	want := map[string]string{
		"instId":         "BTC-USDT",
		"side":           "sell",
		"ordType":        "market",
		"posSide":        "short",
		"marginMode":     "cross",
		"lever":          "10",
		"sz":             "0.2",
		"tpTriggerPrice": "48000",
		"tpOrderPrice":   "-1",
		"slTriggerPrice": "50500",
		"slOrderPrice":   "-1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("payload[%s] = %q, want %q", k, got[k], v)
		}
	}
	if len(got["clientOrderId"]) != 32 {
		t.Errorf("clientOrderId = %q", got["clientOrderId"])
	}
}

func TestExecuteRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "业务错误码", status: 200, body: `{"code":"102002","msg":"insufficient balance"}`},
		{name: "数字错误码", status: 200, body: `{"code":1,"msg":"x"}`},
		{name: "单笔订单失败", status: 200, body: `{"code":"0","data":[{"orderId":"","code":"102015","msg":"size too small"}]}`},
		{name: "HTTP错误", status: 500, body: `oops`},
		{name: "非JSON", status: 200, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			e := newExecutor(server.URL, false)
			order, err := e.BuildOrder("BTC-USDT", types.SignalBuy, 50000, 0.2)
			if err != nil {
				t.Fatal(err)
			}

			result, err := e.Execute(context.Background(), order)
			if !errors.Is(err, types.ErrExecutionFailure) {
				t.Errorf("err = %v, want ErrExecutionFailure", err)
			}
			if result != nil {
				t.Errorf("result = %+v, want nil", result)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want exactly one attempt", calls)
			}
		})
	}
}

func TestExecuteDryRun(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	e := newExecutor(server.URL, true)
	order, err := e.BuildOrder("BTC-USDT", types.SignalBuy, 50000, 0.2)
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.Execute(context.Background(), order)
	if err != nil {
		t.Fatal(err)
	}
	if !result.DryRun || calls != 0 {
		t.Errorf("dry run submitted order: result=%+v calls=%d", result, calls)
	}
}

func TestBuildOrderInvalidSize(t *testing.T) {
	e := newExecutor("http://127.0.0.1:0", true)
	if _, err := e.BuildOrder("BTC-USDT", types.SignalBuy, 50000, 0); !errors.Is(err, types.ErrInvalidPrice) {
		t.Errorf("err = %v", err)
	}
}
