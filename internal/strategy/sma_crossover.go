package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trading-platform/internal/crossover"
	"trading-platform/internal/indicator"
	"trading-platform/internal/model"
)

// SmaCrossoverName is the registered name of SmaCrossover.
const SmaCrossoverName = "SMA_CROSSOVER"

// SmaCrossover implements a simple SMA crossover strategy.
//
// Buy signal: short SMA crosses above long SMA (golden cross)
// Sell signal: short SMA crosses below long SMA (death cross)
//
// The previous pair lives in a crossover.Store keyed by (symbol, strategy id),
// so one instance can serve many configured symbols. When a config's periods
// change the stored pair is discarded, since it was computed with the old
// windows.
type SmaCrossover struct {
	tracker *crossover.Store

	mu      sync.Mutex
	periods map[crossover.Key]SmaParams
}

// NewSmaCrossover creates a new SMA crossover strategy backed by tracker.
func NewSmaCrossover(tracker *crossover.Store) *SmaCrossover {
	if tracker == nil {
		tracker = crossover.NewStore()
	}
	return &SmaCrossover{tracker: tracker, periods: make(map[crossover.Key]SmaParams)}
}

func (s *SmaCrossover) Name() string {
	return SmaCrossoverName
}

func (s *SmaCrossover) GenerateSignals(_ context.Context, in Input) ([]model.TradingSignal, error) {
	p, _ := ParseSmaParams(in.Parameters)
	series := buildSeries(SmaCrossoverName, in)
	end := series.EndIndex()

	// Both values must exist before the tracker is touched.
	short, err := indicator.SMA(series, p.ShortPeriod, end)
	if err != nil {
		return nil, ignoreInsufficient(err)
	}
	long, err := indicator.SMA(series, p.LongPeriod, end)
	if err != nil {
		return nil, ignoreInsufficient(err)
	}

	id := in.StrategyID
	if id == "" {
		id = SmaCrossoverName
	}
	key := crossover.Key{Symbol: in.Current.Symbol, StrategyID: id}
	s.resetOnPeriodChange(key, p)
	edge, ok := s.tracker.Observe(key, short, long)
	if !ok {
		return nil, nil
	}

	var desc string
	if edge == model.SignalBuy {
		desc = fmt.Sprintf("BUY: Short SMA (%d) crossed above Long SMA (%d)", p.ShortPeriod, p.LongPeriod)
	} else {
		desc = fmt.Sprintf("SELL: Short SMA (%d) crossed below Long SMA (%d)", p.ShortPeriod, p.LongPeriod)
	}
	sig := model.NewSignal(in.Current.Symbol, in.Current.Timestamp, edge, SmaCrossoverName, desc)
	return []model.TradingSignal{sig}, nil
}

func (s *SmaCrossover) resetOnPeriodChange(key crossover.Key, p SmaParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.periods[key]; ok && old != p {
		s.tracker.Reset(key)
	}
	s.periods[key] = p
}

// ignoreInsufficient turns missing data into "no signal".
func ignoreInsufficient(err error) error {
	if errors.Is(err, indicator.ErrInsufficientData) {
		return nil
	}
	return err
}
