package portfolio

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trading-platform/internal/model"
)

func signal(symbol string, typ model.SignalType) model.TradingSignal {
	return model.NewSignal(symbol, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), typ, "SMA_CROSSOVER", "test")
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.8f, want %.8f", label, got, want)
	}
}

func TestExecute_BuyThenSell(t *testing.T) {
	s := NewSimulator(DefaultConfig())

	buy, err := s.Execute(signal("AAPL", model.SignalBuy), 50)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "buy qty", buy.Quantity, 2, 1e-12)
	assertClose(t, "cash after buy", buy.CashAfterTrade, 9900, 1e-9)
	assertClose(t, "value after buy", buy.PortfolioValueAfterTrade, 10000, 1e-9)
	if buy.SignalID == "" || buy.ID == "" || buy.StrategyName != "SMA_CROSSOVER" {
		t.Errorf("trade metadata: %+v", buy)
	}

	sell, err := s.Execute(signal("AAPL", model.SignalSell), 50)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "sell qty", sell.Quantity, 2, 1e-12)
	assertClose(t, "cash after sell", sell.CashAfterTrade, 10000, 1e-9)
	if snap := s.Snapshot(); len(snap.Holdings) != 0 {
		t.Errorf("holdings should be empty after full sell: %+v", snap.Holdings)
	}
}

func TestExecute_SellAtBuyPriceWithRepeatingQuantity(t *testing.T) {
	s := NewSimulator(DefaultConfig())
	if _, err := s.Execute(signal("X", model.SignalBuy), 3); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(signal("X", model.SignalSell), 3); err != nil {
		t.Fatalf("selling 100/3 units at 3 should be allowed: %v", err)
	}
	if q := s.Holdings("X"); q != 0 {
		t.Errorf("holdings: got %v, want 0", q)
	}
	if s.Holdings("X") < 0 {
		t.Errorf("holdings went negative")
	}
}

func TestExecute_RejectionLeavesStateUnchanged(t *testing.T) {
	s := NewSimulator(DefaultConfig())
	before := s.Snapshot()

	_, err := s.Execute(signal("AAPL", model.SignalSell), 100)
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("err=%v, want ErrInsufficientHoldings", err)
	}
	var rej *RejectedError
	if !errors.As(err, &rej) || rej.Kind() != "insufficient_holdings" {
		t.Errorf("rejection detail: %v", err)
	}

	after := s.Snapshot()
	if after.Cash != before.Cash || len(after.Holdings) != 0 || after.Trades != 0 {
		t.Errorf("state changed on rejection: before=%+v after=%+v", before, after)
	}
}

func TestExecute_InsufficientHoldingsAfterPriceDrop(t *testing.T) {
	s := NewSimulator(DefaultConfig())
	s.Execute(signal("AAPL", model.SignalBuy), 100) // 1 unit
	if _, err := s.Execute(signal("AAPL", model.SignalSell), 90); !errors.Is(err, ErrInsufficientHoldings) {
		t.Errorf("1 unit at 90 is worth less than the notional: err=%v", err)
	}
	assertClose(t, "holdings kept", s.Holdings("AAPL"), 1, 1e-12)
}

func TestExecute_InsufficientFunds(t *testing.T) {
	s := NewSimulator(Config{InitialCash: 250, Notional: 100})
	for i := 0; i < 2; i++ {
		if _, err := s.Execute(signal("AAPL", model.SignalBuy), 10); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
	}
	_, err := s.Execute(signal("AAPL", model.SignalBuy), 10)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v, want ErrInsufficientFunds", err)
	}
	assertClose(t, "cash", s.Cash(), 50, 1e-9)
}

func TestExecute_InvalidPrice(t *testing.T) {
	s := NewSimulator(DefaultConfig())
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		s.MarkPrice("AAPL", p)
		if _, err := s.Execute(signal("AAPL", model.SignalBuy), p); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("price %v: err=%v", p, err)
		}
	}
	assertClose(t, "cash", s.Cash(), 10000, 0)
	if _, ok := s.LastPrice("AAPL"); ok {
		t.Error("non-finite price was recorded as last price")
	}
}

func TestExecute_ConcurrentBuysNeverOverdraw(t *testing.T) {
	s := NewSimulator(Config{InitialCash: 1000, Notional: 100})

	var wg sync.WaitGroup
	var filled, rejected atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Execute(signal("AAPL", model.SignalBuy), 20)
			switch {
			case err == nil:
				filled.Add(1)
			case errors.Is(err, ErrInsufficientFunds):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if filled.Load() != 10 || rejected.Load() != 40 {
		t.Errorf("filled=%d rejected=%d, want 10/40", filled.Load(), rejected.Load())
	}
	assertClose(t, "cash", s.Cash(), 0, 1e-9)
	assertClose(t, "holdings", s.Holdings("AAPL"), 50, 1e-9)
}

func TestPortfolioValue_UsesLastKnownClose(t *testing.T) {
	s := NewSimulator(DefaultConfig())
	s.Execute(signal("AAPL", model.SignalBuy), 100)
	s.Execute(signal("MSFT", model.SignalBuy), 50)

	s.MarkPrice("AAPL", 150)
	s.MarkPrice("MSFT", 25)
	s.MarkPrice("IGNORED", -3)

	// 9800 cash + 1*150 + 2*25
	assertClose(t, "value", s.PortfolioValue(), 10000, 1e-9)
	if p, ok := s.LastPrice("AAPL"); !ok || p != 150 {
		t.Errorf("LastPrice: %v %v", p, ok)
	}
	if _, ok := s.LastPrice("IGNORED"); ok {
		t.Errorf("non-positive mark should be ignored")
	}

	snap := s.Snapshot()
	if len(snap.Holdings) != 2 || snap.Holdings[0].Symbol != "AAPL" {
		t.Fatalf("holdings: %+v", snap.Holdings)
	}
	assertClose(t, "AAPL value", snap.Holdings[0].Value, 150, 1e-9)
	assertClose(t, "AAPL avg cost", snap.Holdings[0].AvgCost, 100, 1e-9)
}

func TestSnapshot_RealizedPnL(t *testing.T) {
	s := NewSimulator(DefaultConfig())
	s.Execute(signal("AAPL", model.SignalBuy), 50)  // 2 units @ 50
	s.Execute(signal("AAPL", model.SignalSell), 100) // 1 unit @ 100

	snap := s.Snapshot()
	assertClose(t, "realized", snap.RealizedPnL, 50, 1e-9)
	assertClose(t, "cash", snap.Cash, 10000, 1e-9)
	if snap.Trades != 2 || len(snap.Holdings) != 1 {
		t.Errorf("snapshot: %+v", snap)
	}
	assertClose(t, "remaining", snap.Holdings[0].Quantity, 1, 1e-12)
}
