package strategy

import (
	"context"
	"errors"
	"fmt"
	"log"

	"trading-platform/internal/model"
)

// Skip records a config the dispatcher could not evaluate.
type Skip struct {
	ConfigID     int64
	StrategyName string
	Symbol       string
	Reason       string // "unknown_strategy" or "strategy_error"
	Err          error
}

// Skip reasons.
const (
	SkipUnknownStrategy = "unknown_strategy"
	SkipStrategyError   = "strategy_error"
)

// DispatchResult is the outcome of one Dispatch call.
type DispatchResult struct {
	Signals []model.TradingSignal
	Skipped []Skip
	// Evaluated is the number of configs that matched the symbol and ran.
	Evaluated int
}

// Dispatcher runs every enabled config for an incoming bar.
type Dispatcher struct {
	registry *Registry
	bars     model.BarRepository

	// OnSkip, when set, is called for every skipped config.
	OnSkip func(Skip)
}

// NewDispatcher creates a dispatcher that resolves names in registry and
// loads history from bars.
func NewDispatcher(registry *Registry, bars model.BarRepository) *Dispatcher {
	return &Dispatcher{registry: registry, bars: bars}
}

// Dispatch evaluates configs against ev. History for the symbol is loaded
// once, and only when at least one enabled config matches. A failing or
// unknown strategy is skipped without stopping the batch. A history lookup
// failure or context cancellation is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.MarketDataEvent, configs []model.StrategyConfig) (DispatchResult, error) {
	var res DispatchResult

	var matching []model.StrategyConfig
	for _, cfg := range configs {
		if cfg.Enabled && cfg.Symbol == ev.Symbol {
			matching = append(matching, cfg)
		}
	}
	if len(matching) == 0 {
		return res, nil
	}

	history, err := d.bars.FindBarsBySymbolOrderByTimestampAsc(ctx, ev.Symbol)
	if err != nil {
		return res, fmt.Errorf("load history for %s: %w", ev.Symbol, err)
	}
	current := ev.Bar()

	for _, cfg := range matching {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		s, err := d.registry.Lookup(cfg.StrategyName)
		if err != nil {
			d.skip(&res, cfg, SkipUnknownStrategy, err)
			continue
		}

		signals, err := s.GenerateSignals(ctx, InputFromConfig(cfg, history, current))
		if err != nil {
			d.skip(&res, cfg, SkipStrategyError, err)
			continue
		}
		res.Evaluated++
		res.Signals = append(res.Signals, signals...)
	}
	return res, nil
}

func (d *Dispatcher) skip(res *DispatchResult, cfg model.StrategyConfig, reason string, err error) {
	sk := Skip{
		ConfigID:     cfg.ID,
		StrategyName: cfg.StrategyName,
		Symbol:       cfg.Symbol,
		Reason:       reason,
		Err:          err,
	}
	if errors.Is(err, ErrUnknownStrategy) {
		log.Printf("[strategy] config %d: %v, skipping", cfg.ID, err)
	} else {
		log.Printf("[strategy] config %d (%s %s): %v, skipping", cfg.ID, cfg.StrategyName, cfg.Symbol, err)
	}
	res.Skipped = append(res.Skipped, sk)
	if d.OnSkip != nil {
		d.OnSkip(sk)
	}
}
