// Package strategy turns bars and external predictions into trading signals.
//
// A TradingStrategy receives the historical bars of a symbol plus the incoming
// bar and emits zero or more signals. The Registry resolves configured strategy
// names to instances and the Dispatcher runs every enabled config for a symbol.
package strategy

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"trading-platform/internal/model"
)

// Input is what a strategy sees for one evaluation.
type Input struct {
	// StrategyID distinguishes configured instances of the same strategy so
	// their crossover memory does not interfere.
	StrategyID string
	History    []model.Bar // ascending, excludes Current
	Current    model.Bar
	Parameters json.RawMessage
}

// TradingStrategy is the interface that all trading strategies must implement.
type TradingStrategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// GenerateSignals evaluates the strategy at the current bar.
	// Missing data yields no signals and no error.
	GenerateSignals(ctx context.Context, in Input) ([]model.TradingSignal, error)
}

// InputFromConfig builds the strategy input for one config.
func InputFromConfig(cfg model.StrategyConfig, history []model.Bar, current model.Bar) Input {
	return Input{
		StrategyID: strconv.FormatInt(cfg.ID, 10),
		History:    history,
		Current:    current,
		Parameters: cfg.Parameters,
	}
}

// buildSeries appends the current bar to history and logs ordering repairs.
func buildSeries(name string, in Input) *model.BarSeries {
	cur := in.Current
	s, report := model.BuildSeries(cur.Symbol, in.History, &cur)
	if !report.Clean() {
		log.Printf("[strategy] %s %s: repaired bar ordering (dropped=%d replaced=%d)",
			name, cur.Symbol, report.Dropped, report.Replaced)
	}
	return s
}
