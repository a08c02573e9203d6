// Package portfolio simulates a cash and holdings ledger for paper trading.
//
// Every trade moves a fixed notional amount of cash. Cash and holdings never
// go negative: a BUY without enough cash or a SELL without enough holdings is
// rejected and leaves the ledger untouched.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trading-platform/internal/model"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrUnknownSignalType    = errors.New("unknown signal type")
)

// valuePlaces is the rounding applied when comparing holdings value with the
// notional, so a position bought at a price can be sold at that same price.
const valuePlaces = 8

// RejectedError reports a signal the simulator refused to execute.
type RejectedError struct {
	Reason error // one of the Err* sentinels above
	Signal model.TradingSignal
	Price  float64
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected %s %s @ %.4f: %v (%s)", e.Signal.Type, e.Signal.Symbol, e.Price, e.Reason, e.Detail)
}

func (e *RejectedError) Unwrap() error { return e.Reason }

// Kind returns a short label for logs and metrics.
func (e *RejectedError) Kind() string {
	switch e.Reason {
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrInsufficientHoldings:
		return "insufficient_holdings"
	case ErrInvalidPrice:
		return "invalid_price"
	default:
		return "unknown_signal_type"
	}
}

// Config holds the simulator settings.
type Config struct {
	InitialCash float64 `json:"initial_cash"`
	Notional    float64 `json:"notional"` // cash moved per trade
}

// DefaultConfig returns $10,000 starting cash and $100 per trade.
func DefaultConfig() Config {
	return Config{InitialCash: 10000, Notional: 100}
}

// Holding is one symbol's position in a Snapshot.
type Holding struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	LastPrice float64 `json:"last_price"`
	Value     float64 `json:"value"`
	AvgCost   float64 `json:"avg_cost"`
}

// Snapshot is a point-in-time view of the ledger.
type Snapshot struct {
	Cash        float64   `json:"cash"`
	Holdings    []Holding `json:"holdings"`
	Value       float64   `json:"portfolio_value"`
	RealizedPnL float64   `json:"realized_pnl"`
	Trades      int       `json:"trades"`
}

// Simulator is the process-wide paper ledger. A single mutex makes every
// check-then-update atomic, so concurrent BUYs can never overdraw cash.
type Simulator struct {
	mu        sync.Mutex
	notional  decimal.Decimal
	cash      decimal.Decimal
	holdings  map[string]decimal.Decimal
	lastPrice map[string]decimal.Decimal
	pnl       *PnLTracker
	now       func() time.Time
}

// NewSimulator creates a simulator with cfg.
func NewSimulator(cfg Config) *Simulator {
	return &Simulator{
		notional:  decimal.NewFromFloat(cfg.Notional),
		cash:      decimal.NewFromFloat(cfg.InitialCash),
		holdings:  make(map[string]decimal.Decimal),
		lastPrice: make(map[string]decimal.Decimal),
		pnl:       NewPnLTracker(),
		now:       time.Now,
	}
}

func validPrice(p float64) bool { return p > 0 && !math.IsInf(p, 0) }

// MarkPrice records the last known close for symbol. Non-positive and
// non-finite prices are ignored.
func (s *Simulator) MarkPrice(symbol string, price float64) {
	if !validPrice(price) {
		return
	}
	s.mu.Lock()
	s.lastPrice[symbol] = decimal.NewFromFloat(price)
	s.mu.Unlock()
}

// LastPrice returns the last known close for symbol.
func (s *Simulator) LastPrice(symbol string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lastPrice[symbol]
	return p.InexactFloat64(), ok
}

// Execute applies sig at price. On success it returns the trade with the
// resulting cash and mark-to-market value. On rejection it returns a
// *RejectedError and the ledger is unchanged.
func (s *Simulator) Execute(sig model.TradingSignal, price float64) (model.SimulatedTrade, error) {
	if !validPrice(price) {
		return model.SimulatedTrade{}, &RejectedError{Reason: ErrInvalidPrice, Signal: sig, Price: price, Detail: "price must be positive and finite"}
	}
	p := decimal.NewFromFloat(price)

	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.holdings[sig.Symbol]
	qty := s.notional.Div(p)

	switch sig.Type {
	case model.SignalBuy:
		if s.cash.LessThan(s.notional) {
			return model.SimulatedTrade{}, &RejectedError{
				Reason: ErrInsufficientFunds, Signal: sig, Price: price,
				Detail: fmt.Sprintf("cash %s < notional %s", s.cash.StringFixed(2), s.notional.StringFixed(2)),
			}
		}
		s.holdings[sig.Symbol] = held.Add(qty)
		s.cash = s.cash.Sub(s.notional)

	case model.SignalSell:
		if held.Mul(p).Round(valuePlaces).LessThan(s.notional) {
			return model.SimulatedTrade{}, &RejectedError{
				Reason: ErrInsufficientHoldings, Signal: sig, Price: price,
				Detail: fmt.Sprintf("holding %s worth %s < notional %s", held.String(), held.Mul(p).StringFixed(2), s.notional.StringFixed(2)),
			}
		}
		// Rounding can leave holdings a hair below qty; never sell more than is held.
		if qty.GreaterThan(held) {
			qty = held
		}
		remaining := held.Sub(qty)
		if remaining.Round(valuePlaces * 2).IsZero() {
			delete(s.holdings, sig.Symbol)
		} else {
			s.holdings[sig.Symbol] = remaining
		}
		s.cash = s.cash.Add(s.notional)

	default:
		return model.SimulatedTrade{}, &RejectedError{Reason: ErrUnknownSignalType, Signal: sig, Price: price, Detail: string(sig.Type)}
	}

	s.lastPrice[sig.Symbol] = p
	s.pnl.Record(sig.Symbol, sig.Type, qty, p)

	return model.SimulatedTrade{
		ID:                       uuid.NewString(),
		SignalID:                 sig.ID,
		Symbol:                   sig.Symbol,
		Timestamp:                s.now(),
		Type:                     sig.Type,
		Price:                    price,
		Quantity:                 qty.InexactFloat64(),
		StrategyName:             sig.StrategyName,
		CashAfterTrade:           s.cash.InexactFloat64(),
		PortfolioValueAfterTrade: s.valueLocked().InexactFloat64(),
	}, nil
}

// valueLocked returns cash + Σ holdings × last known close. Caller holds mu.
func (s *Simulator) valueLocked() decimal.Decimal {
	v := s.cash
	for sym, q := range s.holdings {
		v = v.Add(q.Mul(s.lastPrice[sym]))
	}
	return v
}

// Cash returns the current cash balance.
func (s *Simulator) Cash() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash.InexactFloat64()
}

// Holdings returns the quantity held for symbol.
func (s *Simulator) Holdings(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdings[symbol].InexactFloat64()
}

// PortfolioValue returns the mark-to-market value.
func (s *Simulator) PortfolioValue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valueLocked().InexactFloat64()
}

// Snapshot returns the current ledger, holdings sorted by symbol.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	holdings := make([]Holding, 0, len(s.holdings))
	for sym, q := range s.holdings {
		last := s.lastPrice[sym]
		holdings = append(holdings, Holding{
			Symbol:    sym,
			Quantity:  q.InexactFloat64(),
			LastPrice: last.InexactFloat64(),
			Value:     q.Mul(last).InexactFloat64(),
			AvgCost:   s.pnl.AvgCost(sym).InexactFloat64(),
		})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })

	summary := s.pnl.Summary()
	return Snapshot{
		Cash:        s.cash.InexactFloat64(),
		Holdings:    holdings,
		Value:       s.valueLocked().InexactFloat64(),
		RealizedPnL: summary.RealizedPnL,
		Trades:      summary.TotalTrades,
	}
}
