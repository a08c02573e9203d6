package indicator

import (
	"fmt"
	"math"

	"trading-platform/internal/model"
)

// MACDValue is the MACD triple at one index.
type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	// SignalReady is false while the signal-line EMA is still warming up.
	// Signal then equals MACD and Histogram is zero.
	SignalReady bool `json:"signal_ready"`
}

// MACD returns (macd, signal, histogram) at index, where
// macd = EMA(fast) - EMA(slow), signal = EMA(macd, signalPeriod) and
// histogram = macd - signal.
func MACD(s *model.BarSeries, fastPeriod, slowPeriod, signalPeriod, index int) (MACDValue, error) {
	if fastPeriod <= 0 || signalPeriod <= 0 {
		return MACDValue{}, fmt.Errorf("MACD: %w: fast=%d signal=%d", ErrInvalidPeriod, fastPeriod, signalPeriod)
	}
	required := max(fastPeriod, slowPeriod)
	if err := check("MACD", s, slowPeriod, index, required); err != nil {
		return MACDValue{}, err
	}
	line := macdValues(s.Closes()[:index+1], fastPeriod, slowPeriod, signalPeriod)
	return line[index], nil
}

// MACDSeries returns the MACD triple at every index. Indices before the MACD
// line exists hold NaN in every field.
func MACDSeries(s *model.BarSeries, fastPeriod, slowPeriod, signalPeriod int) []MACDValue {
	return macdValues(s.Closes(), fastPeriod, slowPeriod, signalPeriod)
}

func macdValues(closes []float64, fastPeriod, slowPeriod, signalPeriod int) []MACDValue {
	fast := emaValues(closes, fastPeriod)
	slow := emaValues(closes, slowPeriod)
	out := make([]MACDValue, len(closes))

	first := max(fastPeriod, slowPeriod) - 1
	for i := 0; i < len(closes) && i < first; i++ {
		out[i] = MACDValue{MACD: math.NaN(), Signal: math.NaN(), Histogram: math.NaN()}
	}
	if first >= len(closes) || first < 0 {
		return out
	}

	line := make([]float64, len(closes)-first)
	for i := first; i < len(closes); i++ {
		line[i-first] = fast[i] - slow[i]
	}
	signal := emaValues(line, signalPeriod)

	for j, m := range line {
		v := MACDValue{MACD: m, Signal: m}
		if !math.IsNaN(signal[j]) {
			v.Signal = signal[j]
			v.SignalReady = true
		}
		v.Histogram = v.MACD - v.Signal
		out[first+j] = v
	}
	return out
}
