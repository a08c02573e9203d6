package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"trading-platform/internal/model"
	"trading-platform/internal/portfolio"
)

type memTrades struct {
	trades []model.SimulatedTrade
	err    error
}

func (m *memTrades) SaveTrade(_ context.Context, t model.SimulatedTrade) error {
	if m.err != nil {
		return m.err
	}
	m.trades = append(m.trades, t)
	return nil
}

func sig(symbol string, typ model.SignalType) model.TradingSignal {
	return model.NewSignal(symbol, time.Now(), typ, "ML_BASED", "test")
}

func TestExecute_FilledTradeReachesSinks(t *testing.T) {
	sink := &memTrades{}
	p := NewPaperExecutor(portfolio.NewSimulator(portfolio.DefaultConfig()), 4, sink)

	res := p.Execute(context.Background(), sig("AAPL", model.SignalBuy), 25)
	if !res.Filled() || res.Trade == nil || res.Err != nil {
		t.Fatalf("result: %+v", res)
	}
	if res.Trade.Quantity != 4 {
		t.Errorf("quantity: got %v, want 4", res.Trade.Quantity)
	}
	if len(sink.trades) != 1 || sink.trades[0].ID != res.Trade.ID {
		t.Errorf("sink: %+v", sink.trades)
	}
	if len(p.Fills()) != 1 {
		t.Errorf("fills: %d", len(p.Fills()))
	}
	select {
	case got := <-p.Results():
		if got.Status != StatusFilled {
			t.Errorf("emitted status: %s", got.Status)
		}
	default:
		t.Error("no result emitted")
	}
}

func TestExecute_RejectionIsAResult(t *testing.T) {
	sink := &memTrades{}
	p := NewPaperExecutor(portfolio.NewSimulator(portfolio.DefaultConfig()), 4, sink)

	res := p.Execute(context.Background(), sig("AAPL", model.SignalSell), 25)
	if res.Status != StatusRejected || res.Reason != "insufficient_holdings" {
		t.Fatalf("result: %+v", res)
	}
	if !errors.Is(res.Err, portfolio.ErrInsufficientHoldings) {
		t.Errorf("err: %v", res.Err)
	}
	if len(sink.trades) != 0 || len(p.Fills()) != 0 {
		t.Errorf("rejected trade must not be recorded")
	}
}

func TestExecute_SinkErrorDoesNotUndoFill(t *testing.T) {
	sinkErr := errors.New("db locked")
	p := NewPaperExecutor(portfolio.NewSimulator(portfolio.DefaultConfig()), 1, &memTrades{err: sinkErr})

	res := p.Execute(context.Background(), sig("AAPL", model.SignalBuy), 10)
	if !res.Filled() || !errors.Is(res.Err, sinkErr) {
		t.Errorf("result: %+v", res)
	}
}

func TestRun_ProcessesInOrderAndDropsWhenFull(t *testing.T) {
	sim := portfolio.NewSimulator(portfolio.Config{InitialCash: 200, Notional: 100})
	p := NewPaperExecutor(sim, 1)

	ch := make(chan PricedSignal, 3)
	ch <- PricedSignal{Signal: sig("AAPL", model.SignalBuy), Price: 10}
	ch <- PricedSignal{Signal: sig("AAPL", model.SignalBuy), Price: 10}
	ch <- PricedSignal{Signal: sig("AAPL", model.SignalBuy), Price: 10}
	close(ch)

	p.Run(context.Background(), ch)

	if len(p.Fills()) != 2 {
		t.Errorf("fills: got %d, want 2", len(p.Fills()))
	}
	if sim.Cash() != 0 {
		t.Errorf("cash: %v", sim.Cash())
	}
	if n := len(p.Results()); n != 1 {
		t.Errorf("buffered results: got %d, want 1", n)
	}
}
