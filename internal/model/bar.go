package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDataOrdering is returned by BuildSeriesStrict when the input bars are
// not strictly increasing in time.
var ErrDataOrdering = errors.New("bars out of order")

// ErrNonFinitePrice is returned by CheckPrices for NaN or infinite OHLC values.
var ErrNonFinitePrice = errors.New("non-finite price")

// Bar represents one OHLCV sample for a symbol.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// CheckPrices rejects bars whose open, high, low or close is NaN or infinite.
func CheckPrices(open, high, low, close float64) error {
	for _, p := range [...]float64{open, high, low, close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: %v", ErrNonFinitePrice, p)
		}
	}
	return nil
}

// BarSeries is an ordered, immutable sequence of bars for one symbol.
// Timestamps are strictly increasing.
type BarSeries struct {
	symbol string
	bars   []Bar
	closes []float64
}

// Symbol returns the series symbol.
func (s *BarSeries) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *BarSeries) Len() int { return len(s.bars) }

// EndIndex returns the last valid index, or -1 for an empty series.
func (s *BarSeries) EndIndex() int { return len(s.bars) - 1 }

// Bar returns the bar at index i.
func (s *BarSeries) Bar(i int) Bar { return s.bars[i] }

// Close returns the close price at index i.
func (s *BarSeries) Close(i int) float64 { return s.closes[i] }

// Closes returns the close prices. Callers must not modify the slice.
func (s *BarSeries) Closes() []float64 { return s.closes }

// OrderingReport describes bars the builder had to drop or replace.
type OrderingReport struct {
	Dropped  int // timestamp earlier than the previous bar
	Replaced int // timestamp equal to the previous bar (last write wins)
}

// Clean reports whether the input was already strictly ordered.
func (r OrderingReport) Clean() bool { return r.Dropped == 0 && r.Replaced == 0 }

// BuildSeries assembles a BarSeries from historical rows plus an optional
// incoming bar. It tolerates gaps and repairs ordering problems: a bar with
// the same timestamp as its predecessor replaces it, an older bar is dropped.
func BuildSeries(symbol string, history []Bar, current *Bar) (*BarSeries, OrderingReport) {
	n := len(history)
	if current != nil {
		n++
	}
	s := &BarSeries{
		symbol: symbol,
		bars:   make([]Bar, 0, n),
		closes: make([]float64, 0, n),
	}

	var report OrderingReport
	add := func(b Bar) {
		if last := len(s.bars) - 1; last >= 0 {
			prev := s.bars[last].Timestamp
			switch {
			case b.Timestamp.Equal(prev):
				s.bars[last] = b
				s.closes[last] = b.Close
				report.Replaced++
				return
			case b.Timestamp.Before(prev):
				report.Dropped++
				return
			}
		}
		s.bars = append(s.bars, b)
		s.closes = append(s.closes, b.Close)
	}

	for _, b := range history {
		add(b)
	}
	if current != nil {
		add(*current)
	}
	return s, report
}

// BuildSeriesStrict is BuildSeries but fails with ErrDataOrdering when any
// bar had to be dropped or replaced.
func BuildSeriesStrict(symbol string, history []Bar, current *Bar) (*BarSeries, error) {
	s, report := BuildSeries(symbol, history, current)
	if !report.Clean() {
		return nil, fmt.Errorf("%w: symbol=%s dropped=%d replaced=%d",
			ErrDataOrdering, symbol, report.Dropped, report.Replaced)
	}
	return s, nil
}

// SeriesFromCloses builds a series with one bar per close, spaced one minute
// apart starting at start. Useful for replays and tests.
func SeriesFromCloses(symbol string, start time.Time, closes ...float64) *BarSeries {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		}
	}
	s, _ := BuildSeries(symbol, bars, nil)
	return s
}
