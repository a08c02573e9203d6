package indicator

import (
	"math"

	"trading-platform/internal/model"
)

// EMA returns the exponential moving average at index.
// Multiplier = 2/(period+1); seeded by the simple average of the first period
// closes at index period-1, then EMA = close*m + EMA_prev*(1-m).
func EMA(s *model.BarSeries, period, index int) (float64, error) {
	if err := check("EMA", s, period, index, period); err != nil {
		return 0, err
	}
	values := emaValues(s.Closes()[:index+1], period)
	return values[index], nil
}

// emaValues computes the EMA of in, NaN before the seed index.
func emaValues(in []float64, period int) []float64 {
	out := make([]float64, len(in))
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	multiplier := 2.0 / float64(period+1)
	sum := 0.0
	for i, price := range in {
		if i < period {
			// Accumulate for initial SMA seed
			sum += price
			if i == period-1 {
				out[i] = sum / float64(period)
			} else {
				out[i] = math.NaN()
			}
			continue
		}
		out[i] = price*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}
