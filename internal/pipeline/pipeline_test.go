package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"trading-platform/internal/crossover"
	"trading-platform/internal/execution"
	"trading-platform/internal/marketdata/bus"
	"trading-platform/internal/metrics"
	"trading-platform/internal/model"
	"trading-platform/internal/portfolio"
	"trading-platform/internal/strategy"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

// memBars is an in-memory bar store that also records the save order.
type memBars struct {
	mu      sync.Mutex
	bars    map[string][]model.Bar
	order   []model.Bar
	readErr error
}

func newMemBars() *memBars { return &memBars{bars: make(map[string][]model.Bar)} }

func (m *memBars) FindBarsBySymbolOrderByTimestampAsc(_ context.Context, symbol string) ([]model.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]model.Bar(nil), m.bars[symbol]...), nil
}

func (m *memBars) SaveBar(_ context.Context, b model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[b.Symbol] = append(m.bars[b.Symbol], b)
	m.order = append(m.order, b)
	return nil
}

type staticConfigs []model.StrategyConfig

func (s staticConfigs) FindAllEnabledStrategyConfigs(context.Context) ([]model.StrategyConfig, error) {
	return s, nil
}

type memSignals struct {
	mu      sync.Mutex
	signals []model.TradingSignal
}

func (m *memSignals) SaveSignal(_ context.Context, s model.TradingSignal) error {
	m.mu.Lock()
	m.signals = append(m.signals, s)
	m.mu.Unlock()
	return nil
}

type fixture struct {
	p       *Pipeline
	bars    *memBars
	signals *memSignals
	sim     *portfolio.Simulator
	metrics *metrics.Metrics
	fanout  *bus.FanOut
}

func newFixture(t *testing.T, symbols ...string) *fixture {
	t.Helper()
	var configs staticConfigs
	for i, sym := range symbols {
		configs = append(configs, model.StrategyConfig{
			ID: int64(i + 1), StrategyName: strategy.SmaCrossoverName, Symbol: sym, Enabled: true,
			Parameters: json.RawMessage(`{"shortPeriod":2,"longPeriod":3}`),
		})
	}
	f := &fixture{
		bars:    newMemBars(),
		signals: &memSignals{},
		sim:     portfolio.NewSimulator(portfolio.DefaultConfig()),
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		fanout:  bus.New(16),
	}
	registry := strategy.NewRegistry(strategy.NewSmaCrossover(crossover.NewStore()), strategy.NewMlBased())
	f.p = New(Config{Workers: 3, QueueSize: 8}, Deps{
		Dispatcher:  strategy.NewDispatcher(registry, f.bars),
		Configs:     configs,
		ML:          strategy.NewMlBased(),
		Simulator:   f.sim,
		Executor:    execution.NewPaperExecutor(f.sim, 16),
		BarWriter:   f.bars,
		SignalSinks: []model.SignalSink{f.signals},
		Fanout:      f.fanout,
		Metrics:     f.metrics,
		Health:      metrics.NewHealthStatus(false),
	})
	return f
}

func bar(symbol string, i int, close float64) model.MarketDataEvent {
	return model.MarketDataEvent{
		Symbol: symbol, Timestamp: t0.Add(time.Duration(i) * time.Minute),
		Open: close, High: close, Low: close, Close: close, Volume: 100,
	}
}

// ════════════════════════════════════════════════════════════
// Synchronous processing
// ════════════════════════════════════════════════════════════

func TestProcessBar_CrossoverExecutesAtClose(t *testing.T) {
	f := newFixture(t, "AAPL")
	sub := f.fanout.Subscribe("test")
	ctx := context.Background()

	for i, c := range []float64{10, 10, 10, 13} {
		if err := f.p.ProcessBar(ctx, bar("AAPL", i, c)); err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
	}

	if len(f.signals.signals) != 1 || f.signals.signals[0].Type != model.SignalBuy {
		t.Fatalf("signals: %+v", f.signals.signals)
	}
	select {
	case got := <-sub:
		if got.ID != f.signals.signals[0].ID {
			t.Errorf("fan-out delivered %s, want %s", got.ID, f.signals.signals[0].ID)
		}
	default:
		t.Error("signal not published to fan-out")
	}

	if got := f.sim.Cash(); got != 9900 {
		t.Errorf("cash: got %v, want 9900", got)
	}
	if got := f.sim.Holdings("AAPL"); got < 7.69 || got > 7.70 {
		t.Errorf("holdings: got %v, want 100/13", got)
	}
	if len(f.bars.bars["AAPL"]) != 4 {
		t.Errorf("stored bars: %d", len(f.bars.bars["AAPL"]))
	}
	if got := testutil.ToFloat64(f.metrics.TradesExecuted.WithLabelValues("BUY")); got != 1 {
		t.Errorf("trades metric: %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.BarsTotal.WithLabelValues("AAPL")); got != 4 {
		t.Errorf("bars metric: %v", got)
	}
}

func TestProcessBar_DispatchFailureStillStoresBar(t *testing.T) {
	f := newFixture(t, "AAPL")
	readErr := errors.New("db locked")
	f.bars.readErr = readErr

	err := f.p.ProcessBar(context.Background(), bar("AAPL", 0, 10))
	if !errors.Is(err, readErr) {
		t.Fatalf("err=%v, want %v", err, readErr)
	}
	if len(f.bars.order) != 1 {
		t.Errorf("bar not stored after dispatch failure")
	}
	if got := testutil.ToFloat64(f.metrics.DispatchErrors); got != 1 {
		t.Errorf("dispatch errors: %v", got)
	}
}

func TestProcessBar_RejectionIsCounted(t *testing.T) {
	f := newFixture(t, "AAPL")
	ctx := context.Background()
	// Falling closes produce a SELL with nothing held.
	for i, c := range []float64{10, 10, 10, 7} {
		if err := f.p.ProcessBar(ctx, bar("AAPL", i, c)); err != nil {
			t.Fatal(err)
		}
	}
	if len(f.signals.signals) != 1 || f.signals.signals[0].Type != model.SignalSell {
		t.Fatalf("signals: %+v", f.signals.signals)
	}
	if got := testutil.ToFloat64(f.metrics.TradesRejected.WithLabelValues("insufficient_holdings")); got != 1 {
		t.Errorf("rejections: %v", got)
	}
	if f.sim.Cash() != 10000 {
		t.Errorf("cash changed on rejection: %v", f.sim.Cash())
	}
}

func TestProcessPrediction_UsesLastKnownClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pred := model.MLPrediction{Symbol: "NVDA", Timestamp: t0, Prediction: "buy", Confidence: 0.9}

	// No price seen yet: signal is emitted but not executed.
	if err := f.p.ProcessPrediction(ctx, pred); err != nil {
		t.Fatal(err)
	}
	if len(f.signals.signals) != 1 || f.sim.Cash() != 10000 {
		t.Fatalf("signals=%d cash=%v", len(f.signals.signals), f.sim.Cash())
	}

	if err := f.p.ProcessBar(ctx, bar("NVDA", 0, 50)); err != nil {
		t.Fatal(err)
	}
	if err := f.p.ProcessPrediction(ctx, pred); err != nil {
		t.Fatal(err)
	}
	if f.sim.Holdings("NVDA") != 2 {
		t.Errorf("holdings: got %v, want 2", f.sim.Holdings("NVDA"))
	}

	// Low confidence is ignored.
	pred.Confidence = 0.70
	_ = f.p.ProcessPrediction(ctx, pred)
	if len(f.signals.signals) != 2 {
		t.Errorf("signals after low-confidence prediction: %d", len(f.signals.signals))
	}
}

// ════════════════════════════════════════════════════════════
// Sharded workers
// ════════════════════════════════════════════════════════════

func TestSubmitBar_PreservesPerSymbolOrder(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "TSLA", "AMZN", "GOOG"}
	f := newFixture(t, symbols...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.p.Start(ctx)

	const perSymbol = 40
	var wg sync.WaitGroup
	for i := 0; i < perSymbol; i++ {
		for _, sym := range symbols {
			wg.Add(1)
			if err := f.p.SubmitBar(ctx, bar(sym, i, float64(100+i%7)), func(error) { wg.Done() }); err != nil {
				t.Fatal(err)
			}
		}
	}
	wg.Wait()
	f.p.Stop()

	last := make(map[string]time.Time)
	count := make(map[string]int)
	for _, b := range f.bars.order {
		if prev, ok := last[b.Symbol]; ok && !b.Timestamp.After(prev) {
			t.Fatalf("%s: bar %s stored after %s", b.Symbol, b.Timestamp, prev)
		}
		last[b.Symbol] = b.Timestamp
		count[b.Symbol]++
	}
	for _, sym := range symbols {
		if count[sym] != perSymbol {
			t.Errorf("%s: stored %d bars, want %d", sym, count[sym], perSymbol)
		}
	}
}

func TestSubmit_AfterStop(t *testing.T) {
	f := newFixture(t)
	f.p.Start(context.Background())
	f.p.Stop()
	f.p.Stop()

	if err := f.p.SubmitBar(context.Background(), bar("AAPL", 0, 1), nil); !errors.Is(err, ErrStopped) {
		t.Errorf("SubmitBar: %v", err)
	}
	if err := f.p.SubmitPrediction(context.Background(), model.MLPrediction{Symbol: "AAPL"}, nil); !errors.Is(err, ErrStopped) {
		t.Errorf("SubmitPrediction: %v", err)
	}
}

func TestShardFor_StableAndInRange(t *testing.T) {
	for _, sym := range []string{"AAPL", "MSFT", "", "BRK.B"} {
		a, b := shardFor(sym, 7), shardFor(sym, 7)
		if a != b || a < 0 || a >= 7 {
			t.Errorf("%q: %d, %d", sym, a, b)
		}
	}
}
