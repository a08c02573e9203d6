package indicator

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"trading-platform/internal/model"
)

// SMA returns the arithmetic mean of the period closes ending at index.
func SMA(s *model.BarSeries, period, index int) (float64, error) {
	if err := check("SMA", s, period, index, period); err != nil {
		return 0, err
	}
	closes := s.Closes()
	return floats.Sum(closes[index-period+1:index+1]) / float64(period), nil
}

// SMASeries returns SMA(period) at every index of the series. Indices before
// the first full window hold NaN.
func SMASeries(s *model.BarSeries, period int) []float64 {
	closes := s.Closes()
	out := make([]float64, len(closes))
	for i := range closes {
		if period <= 0 || i < period-1 {
			out[i] = math.NaN()
			continue
		}
		// Each window is summed from scratch so values match SMA() exactly.
		out[i] = floats.Sum(closes[i-period+1:i+1]) / float64(period)
	}
	return out
}
