package indicator

import "trading-platform/internal/model"

// RSI returns the Relative Strength Index at index using Wilder's smoothing.
// The first value needs period deltas, i.e. index >= period. RSI is 100 when
// the average loss is zero.
func RSI(s *model.BarSeries, period, index int) (float64, error) {
	if err := check("RSI", s, period, index, period+1); err != nil {
		return 0, err
	}
	closes := s.Closes()

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := delta(closes[i-1], closes[i])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder's smoothing: avg = (prevAvg * (period-1) + x) / period
	p := float64(period)
	for i := period + 1; i <= index; i++ {
		gain, loss := delta(closes[i-1], closes[i])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), nil
}

func delta(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}
