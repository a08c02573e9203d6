// Package indicator provides technical indicator calculations over a BarSeries.
//
// Every function is a pure function of (series, period[s], index). Callers on
// the streaming and backtest paths use the failing form so that missing data
// surfaces as ErrInsufficientData instead of a fabricated value. The REST
// summary endpoints use the BestEffort helpers, which return zero instead.
package indicator

import (
	"errors"
	"fmt"

	"trading-platform/internal/model"
)

var (
	// ErrInsufficientData means the series is too short for the requested period at index.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidPeriod means a period was zero or negative.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrIndexOutOfRange means index is outside the series.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// InsufficientDataError carries the details of an ErrInsufficientData failure.
type InsufficientDataError struct {
	Indicator string
	Period    int
	Index     int
	Required  int // minimum number of bars up to and including index
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s(%d) at index %d: need %d bars, have %d",
		e.Indicator, e.Period, e.Index, e.Required, e.Index+1)
}

// Is reports ErrInsufficientData so callers can use errors.Is.
func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// check validates the common preconditions shared by all indicators.
func check(name string, s *model.BarSeries, period, index, required int) error {
	if period <= 0 {
		return fmt.Errorf("%s: %w: %d", name, ErrInvalidPeriod, period)
	}
	if s == nil || index < 0 {
		return &InsufficientDataError{Indicator: name, Period: period, Index: index, Required: required}
	}
	if index >= s.Len() {
		return fmt.Errorf("%s: %w: index %d, len %d", name, ErrIndexOutOfRange, index, s.Len())
	}
	if index+1 < required {
		return &InsufficientDataError{Indicator: name, Period: period, Index: index, Required: required}
	}
	return nil
}
