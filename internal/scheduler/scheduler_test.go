package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"blofin-rsi-sentry/internal/strategy/monitor"
	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRunner struct {
	mu      sync.Mutex
	report  *types.CycleReport
	err     error
	panicky bool
	calls   int
}

func (f *fakeRunner) RunCycle(ctx context.Context) (*types.CycleReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicky {
		panic("boom")
	}
	return f.report, f.err
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	alerts []*types.TradeAlert
}

func (f *fakeNotifier) SendTradeAlert(alert *types.TradeAlert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

type fakeJournal struct {
	saved int
}

func (f *fakeJournal) SaveCycle(report *types.CycleReport) error {
	f.saved++
	return nil
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func orderReport() *types.CycleReport {
	return &types.CycleReport{
		Symbol:   "BTC-USDT",
		Snapshot: &types.IndicatorSnapshot{
			RSI:        21.4,
			LastClose:  71,
			Divergence: types.DivergenceBullish,
			FibLevels:  types.FibLevels{{Ratio: 0, Price: 100}, {Ratio: 0.5, Price: 85.5}, {Ratio: 1, Price: 71}},
		},
		Signal:   types.SignalBuy,
		Order:    &types.OrderRequest{Symbol: "BTC-USDT", Side: types.SignalBuy, Quantity: 140.845},
	}
}

func TestRunOnceOrderSubmitted(t *testing.T) {
	logs := observeLogs(t)

	report := orderReport()
	report.Result = &types.OrderResult{OrderID: "1"}
	notify := &fakeNotifier{}
	journal := &fakeJournal{}
	perf := monitor.NewPerformanceMonitor(0)

	NewScheduler(&fakeRunner{report: report}, notify, perf, journal, time.Minute).RunOnce(context.Background())

	if len(notify.alerts) != 1 || notify.alerts[0].RSI != 21.4 || notify.alerts[0].Err != nil {
		t.Errorf("alerts = %+v", notify.alerts)
	}
	if journal.saved != 1 {
		t.Errorf("journal saved = %d", journal.saved)
	}
	if m := perf.GetMetrics(); m.OrdersSubmitted != 1 || m.BuySignals != 1 {
		t.Errorf("metrics = %+v", m)
	}

	entries := logs.FilterMessage("📊 本轮完成").All()
	if len(entries) != 1 {
		t.Fatalf("cycle log entries = %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["rsi"] != 21.4 || ctx["divergence"] != "BULLISH" || ctx["signal"] != "BUY" {
		t.Errorf("cycle log fields = %v", ctx)
	}
	if ctx["fib"] != "0=100.00 0.5=85.50 1=71.00" {
		t.Errorf("fib field = %v", ctx["fib"])
	}
}

func TestRunOnceErrors(t *testing.T) {
	tests := []struct {
		name       string
		report     *types.CycleReport
		err        error
		wantLog    string
		wantLevel  zapcore.Level
		wantAlerts int
	}{
		{
			name:      "数据不可用",
			report:    &types.CycleReport{Symbol: "BTC-USDT"},
			err:       fmt.Errorf("%w: empty", types.ErrDataUnavailable),
			wantLog:   "⏭️ 数据不可用，跳过本轮",
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:      "仓位无效",
			report:    &types.CycleReport{Symbol: "BTC-USDT", Signal: types.SignalBuy},
			err:       fmt.Errorf("%w: zero size", types.ErrInvalidPrice),
			wantLog:   "⏭️ 价格或仓位无效，跳过下单",
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:       "下单失败",
			report:     orderReport(),
			err:        fmt.Errorf("%w: code=1", types.ErrExecutionFailure),
			wantLog:    "❌ 下单失败",
			wantLevel:  zapcore.ErrorLevel,
			wantAlerts: 1,
		},
		{
			name:       "签名失败",
			report:     orderReport(),
			err:        fmt.Errorf("%w: marshal", types.ErrSigningFailure),
			wantLog:    "❌ 请求签名失败",
			wantLevel:  zapcore.ErrorLevel,
			wantAlerts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observeLogs(t)
			notify := &fakeNotifier{}

			NewScheduler(&fakeRunner{report: tt.report, err: tt.err}, notify, monitor.NewPerformanceMonitor(0), nil, time.Minute).RunOnce(context.Background())

			entries := logs.FilterMessage(tt.wantLog).All()
			if len(entries) != 1 || entries[0].Level != tt.wantLevel {
				t.Errorf("log %q entries = %v", tt.wantLog, logs.All())
			}
			if len(notify.alerts) != tt.wantAlerts {
				t.Errorf("alerts = %d, want %d", len(notify.alerts), tt.wantAlerts)
			}
			if tt.wantAlerts > 0 && !errors.Is(notify.alerts[0].Err, tt.err) {
				t.Errorf("alert err = %v", notify.alerts[0].Err)
			}
		})
	}
}

func TestRunOnceSuppressedDoesNotNotify(t *testing.T) {
	observeLogs(t)
	report := orderReport()
	report.Suppressed = true
	notify := &fakeNotifier{}

	NewScheduler(&fakeRunner{report: report}, notify, nil, nil, time.Minute).RunOnce(context.Background())
	if len(notify.alerts) != 0 {
		t.Errorf("alerts = %d", len(notify.alerts))
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	logs := observeLogs(t)
	perf := monitor.NewPerformanceMonitor(0)

	NewScheduler(&fakeRunner{panicky: true}, &fakeNotifier{}, perf, nil, time.Minute).RunOnce(context.Background())

	if logs.FilterMessage("💥 策略执行panic").Len() != 1 {
		t.Errorf("panic not logged: %v", logs.All())
	}
	if perf.GetMetrics().FailedCycles != 1 {
		t.Error("panic cycle not counted as failure")
	}
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	observeLogs(t)
	runner := &fakeRunner{report: &types.CycleReport{Symbol: "BTC-USDT"}}
	s := NewScheduler(runner, &fakeNotifier{}, nil, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for runner.Calls() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if runner.Calls() < 3 {
		t.Errorf("calls = %d, want at least 3", runner.Calls())
	}
}
