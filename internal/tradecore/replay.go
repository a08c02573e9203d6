package tradecore

import (
	"context"
	"fmt"
	"time"

	"trading-platform/internal/crossover"
	"trading-platform/internal/execution"
	"trading-platform/internal/marketdata/replay"
	"trading-platform/internal/model"
	"trading-platform/internal/pipeline"
	"trading-platform/internal/portfolio"
	"trading-platform/internal/strategy"
)

// ReplayOptions selects the history to paper-trade.
type ReplayOptions struct {
	Symbols   []string
	From      time.Time // zero replays everything
	Speed     float64   // 0 replays as fast as possible
	Portfolio portfolio.Config
}

// ReplayReport is the outcome of a replay.
type ReplayReport struct {
	Bars      int
	Trades    []model.SimulatedTrade
	Portfolio portfolio.Snapshot
}

// Replay paper-trades stored history: every enabled strategy config runs
// against the bars of opts.Symbols in timestamp order, on a fresh portfolio.
// Strategies only see bars replayed so far.
func Replay(ctx context.Context, bars model.BarRepository, configs model.StrategyConfigSource, opts ReplayOptions) (ReplayReport, error) {
	if len(opts.Symbols) == 0 {
		return ReplayReport{}, fmt.Errorf("replay: no symbols")
	}

	history := replay.NewMemoryBars()
	registry := strategy.NewRegistry(
		strategy.NewSmaCrossover(crossover.NewStore()),
		strategy.NewRsiMacd(),
		strategy.NewMlBased(),
	)
	sim := portfolio.NewSimulator(opts.Portfolio)
	executor := execution.NewPaperExecutor(sim, 0)

	pipe := pipeline.New(pipeline.Config{Workers: 1}, pipeline.Deps{
		Dispatcher: strategy.NewDispatcher(registry, history),
		Configs:    configs,
		ML:         strategy.NewMlBased(),
		Simulator:  sim,
		Executor:   executor,
		BarWriter:  history,
	})

	n, err := replay.New(bars).Run(ctx, opts.Symbols, opts.From, opts.Speed, pipe.ProcessBar)
	return ReplayReport{Bars: n, Trades: executor.Fills(), Portfolio: sim.Snapshot()}, err
}
