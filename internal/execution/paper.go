package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"trading-platform/internal/model"
	"trading-platform/internal/portfolio"
)

const maxRecentFills = 1000

// PaperExecutor simulates order execution against the portfolio Simulator.
type PaperExecutor struct {
	sim   *portfolio.Simulator
	sinks []model.TradeSink

	mu       sync.RWMutex
	fills    []model.SimulatedTrade
	resultCh chan OrderResult
}

// NewPaperExecutor creates a paper trading executor. Accepted trades are
// handed to every sink in order.
func NewPaperExecutor(sim *portfolio.Simulator, resultBufferSize int, sinks ...model.TradeSink) *PaperExecutor {
	return &PaperExecutor{
		sim:      sim,
		sinks:    sinks,
		fills:    make([]model.SimulatedTrade, 0, 64),
		resultCh: make(chan OrderResult, resultBufferSize),
	}
}

// Results returns the channel of order results. Results are dropped when the
// channel is full.
func (p *PaperExecutor) Results() <-chan OrderResult {
	return p.resultCh
}

// Fills returns the most recent accepted trades, oldest first.
func (p *PaperExecutor) Fills() []model.SimulatedTrade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.SimulatedTrade, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Run consumes priced signals and executes them in order.
// Blocks until ctx is cancelled or signalCh is closed.
func (p *PaperExecutor) Run(ctx context.Context, signalCh <-chan PricedSignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case ps, ok := <-signalCh:
			if !ok {
				return
			}
			p.Execute(ctx, ps.Signal, ps.Price)
		}
	}
}

// Execute applies one signal synchronously and returns the result. A
// rejection is a normal result, not an error.
func (p *PaperExecutor) Execute(ctx context.Context, sig model.TradingSignal, price float64) OrderResult {
	trade, err := p.sim.Execute(sig, price)
	if err != nil {
		res := OrderResult{Status: StatusRejected, Message: err.Error(), Signal: sig, Err: err}
		var rej *portfolio.RejectedError
		if errors.As(err, &rej) {
			res.Reason = rej.Kind()
		}
		log.Printf("[paper] REJECTED %s %s %s @ %.4f: %v", sig.Type, sig.StrategyName, sig.Symbol, price, err)
		p.emit(res)
		return res
	}

	p.mu.Lock()
	p.fills = append(p.fills, trade)
	if len(p.fills) > maxRecentFills {
		p.fills = append(p.fills[:0:0], p.fills[len(p.fills)-maxRecentFills:]...)
	}
	p.mu.Unlock()

	log.Printf("[paper] %s %s %s qty=%.6f price=%.4f cash=%.2f value=%.2f",
		trade.Type, trade.StrategyName, trade.Symbol, trade.Quantity, trade.Price,
		trade.CashAfterTrade, trade.PortfolioValueAfterTrade)

	res := OrderResult{
		Status:  StatusFilled,
		Message: fmt.Sprintf("paper filled at %.4f", trade.Price),
		Signal:  sig,
		Trade:   &trade,
	}
	for _, sink := range p.sinks {
		if err := sink.SaveTrade(ctx, trade); err != nil {
			log.Printf("[paper] trade %s: sink error: %v", trade.ID, err)
			res.Err = errors.Join(res.Err, err)
		}
	}
	p.emit(res)
	return res
}

func (p *PaperExecutor) emit(res OrderResult) {
	select {
	case p.resultCh <- res:
	default:
		// result channel full, drop
	}
}
