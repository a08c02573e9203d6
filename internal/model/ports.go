package model

import (
	"context"
	"errors"
)

// ── Collaborator Ports ──
// The core calls persistence, configuration and the bus through these
// interfaces. SQLite and Redis implementations live under internal/store.

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness rule, such
// as a second config for the same (strategy, symbol).
var ErrConflict = errors.New("conflict")

// BarRepository provides historical bars.
type BarRepository interface {
	// FindBarsBySymbolOrderByTimestampAsc returns every stored bar for symbol, oldest first.
	FindBarsBySymbolOrderByTimestampAsc(ctx context.Context, symbol string) ([]Bar, error)
}

// BarWriter persists incoming bars.
type BarWriter interface {
	SaveBar(ctx context.Context, bar Bar) error
}

// StrategyConfigSource lists the configs the dispatcher evaluates.
type StrategyConfigSource interface {
	FindAllEnabledStrategyConfigs(ctx context.Context) ([]StrategyConfig, error)
}

// StrategyConfigRepository is the full config store used by the REST layer.
type StrategyConfigRepository interface {
	StrategyConfigSource
	FindAllStrategyConfigs(ctx context.Context) ([]StrategyConfig, error)
	FindStrategyConfig(ctx context.Context, id int64) (StrategyConfig, error)
	FindByNameAndSymbol(ctx context.Context, strategyName, symbol string) (StrategyConfig, error)
	SaveStrategyConfig(ctx context.Context, cfg StrategyConfig) (StrategyConfig, error)
	DeleteStrategyConfig(ctx context.Context, id int64) error
}

// SignalSink receives emitted signals.
type SignalSink interface {
	SaveSignal(ctx context.Context, sig TradingSignal) error
}

// TradeSink receives accepted simulated trades.
type TradeSink interface {
	SaveTrade(ctx context.Context, trade SimulatedTrade) error
}

// BacktestRepository stores backtest results.
type BacktestRepository interface {
	SaveBacktestResult(ctx context.Context, r BacktestResult) (BacktestResult, error)
	FindAllBacktestResults(ctx context.Context) ([]BacktestResult, error)
}
