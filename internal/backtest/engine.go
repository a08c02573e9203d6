// Package backtest replays stored bars through an SMA crossover state machine
// and reports the resulting profit and loss.
//
// Each run owns its own state; runs may execute in parallel with each other
// and with the live pipeline.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"trading-platform/internal/crossover"
	"trading-platform/internal/indicator"
	"trading-platform/internal/model"
)

// StrategyName is recorded on every SMA crossover backtest result.
const StrategyName = "SMA_CROSSOVER"

// InsufficientDataDescription is the description of a run with too few bars.
const InsufficientDataDescription = "Insufficient data for backtesting."

// ErrInvalidRequest is matched by every InvalidRequestError.
var ErrInvalidRequest = errors.New("invalid backtest request")

// InvalidRequestError lists the request fields that failed validation.
type InvalidRequestError struct {
	Problems []string
}

func (e *InvalidRequestError) Error() string {
	return "invalid backtest request: " + strings.Join(e.Problems, "; ")
}

func (e *InvalidRequestError) Is(target error) bool { return target == ErrInvalidRequest }

// Request describes one SMA crossover backtest.
type Request struct {
	Symbol         string
	StartDate      time.Time // inclusive, compared by UTC calendar date
	EndDate        time.Time // inclusive, compared by UTC calendar date
	InitialCapital float64
	ShortPeriod    int
	LongPeriod     int
}

// Validate checks the request. ShortPeriod < LongPeriod is not required.
func (r Request) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Symbol) == "" {
		problems = append(problems, "symbol is required")
	}
	if r.ShortPeriod <= 0 {
		problems = append(problems, fmt.Sprintf("short period must be positive, got %d", r.ShortPeriod))
	}
	if r.LongPeriod <= 0 {
		problems = append(problems, fmt.Sprintf("long period must be positive, got %d", r.LongPeriod))
	}
	if !(r.InitialCapital > 0) || math.IsInf(r.InitialCapital, 0) {
		problems = append(problems, fmt.Sprintf("initial capital must be positive and finite, got %g", r.InitialCapital))
	}
	if dateOf(r.EndDate).Before(dateOf(r.StartDate)) {
		problems = append(problems, "end date is before start date")
	}
	if len(problems) > 0 {
		return &InvalidRequestError{Problems: problems}
	}
	return nil
}

// Engine runs backtests against a bar repository.
type Engine struct {
	bars    model.BarRepository
	results model.BacktestRepository // optional
	clock   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithResults persists every result to repo.
func WithResults(repo model.BacktestRepository) Option {
	return func(e *Engine) { e.results = repo }
}

// WithClock overrides the run-time clock.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine creates a backtest engine.
func NewEngine(bars model.BarRepository, opts ...Option) *Engine {
	e := &Engine{bars: bars, clock: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RunSmaCrossover backtests a 1-unit SMA crossover strategy over the
// requested date range.
func (e *Engine) RunSmaCrossover(ctx context.Context, req Request) (*model.BacktestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	all, err := e.bars.FindBarsBySymbolOrderByTimestampAsc(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", req.Symbol, err)
	}
	filtered := filterByDate(all, req.StartDate, req.EndDate)

	var result model.BacktestResult
	if len(filtered) < req.LongPeriod {
		result = e.insufficient(req)
	} else {
		series, report := model.BuildSeries(req.Symbol, filtered, nil)
		if !report.Clean() {
			log.Printf("[backtest] %s: repaired bar ordering (dropped=%d replaced=%d)",
				req.Symbol, report.Dropped, report.Replaced)
		}
		result = e.simulate(req, series)
	}

	if e.results != nil {
		saved, err := e.results.SaveBacktestResult(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("save backtest result: %w", err)
		}
		saved.Trades = result.Trades
		result = saved
	}
	return &result, nil
}

func (e *Engine) insufficient(req Request) model.BacktestResult {
	return model.BacktestResult{
		StrategyName:   StrategyName,
		Symbol:         req.Symbol,
		StartDate:      dateOf(req.StartDate),
		EndDate:        dateOf(req.EndDate),
		InitialCapital: req.InitialCapital,
		FinalCapital:   req.InitialCapital,
		RunTime:        e.clock(),
		Description:    InsufficientDataDescription,
	}
}

// simulate runs the flat/in-trade state machine over precomputed SMA arrays.
func (e *Engine) simulate(req Request, series *model.BarSeries) model.BacktestResult {
	shortSMA := indicator.SMASeries(series, req.ShortPeriod)
	longSMA := indicator.SMASeries(series, req.LongPeriod)

	capital := req.InitialCapital
	inTrade := false
	var entry model.Bar
	var trades []model.BacktestTrade
	winning, losing := 0, 0

	closeTrade := func(exit model.Bar, force bool) {
		pl := exit.Close - entry.Close
		capital += pl
		if pl > 0 {
			winning++
		} else {
			losing++
		}
		trades = append(trades, model.BacktestTrade{
			EntryTime:  entry.Timestamp,
			ExitTime:   exit.Timestamp,
			EntryPrice: entry.Close,
			ExitPrice:  exit.Close,
			ProfitLoss: pl,
			ForceClose: force,
		})
		inTrade = false
	}

	// No edge is possible at index 0: there is no previous pair.
	for i := max(req.LongPeriod-1, 1); i < series.Len(); i++ {
		cs, cl, ps, pl := shortSMA[i], longSMA[i], shortSMA[i-1], longSMA[i-1]
		if math.IsNaN(cs) || math.IsNaN(cl) || math.IsNaN(ps) || math.IsNaN(pl) {
			continue
		}
		edge, ok := crossover.Detect(ps, pl, cs, cl)
		if !ok {
			continue
		}
		switch {
		case edge == model.SignalBuy && !inTrade:
			entry = series.Bar(i)
			inTrade = true
		case edge == model.SignalSell && inTrade:
			closeTrade(series.Bar(i), false)
		}
	}
	if inTrade {
		closeTrade(series.Bar(series.EndIndex()), true)
	}

	total := capital - req.InitialCapital
	return model.BacktestResult{
		StrategyName:         StrategyName,
		Symbol:               req.Symbol,
		StartDate:            dateOf(req.StartDate),
		EndDate:              dateOf(req.EndDate),
		InitialCapital:       req.InitialCapital,
		FinalCapital:         capital,
		TotalProfitLoss:      total,
		PercentageProfitLoss: total / req.InitialCapital * 100,
		TotalTrades:          winning + losing,
		WinningTrades:        winning,
		LosingTrades:         losing,
		RunTime:              e.clock(),
		Description: fmt.Sprintf("SMA crossover %d/%d over %d bars: %d trades (%d winning, %d losing)",
			req.ShortPeriod, req.LongPeriod, series.Len(), winning+losing, winning, losing),
		Trades: trades,
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// filterByDate keeps bars whose UTC calendar date lies in [start, end].
func filterByDate(bars []model.Bar, start, end time.Time) []model.Bar {
	from, to := dateOf(start), dateOf(end)
	out := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		d := dateOf(b.Timestamp)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
