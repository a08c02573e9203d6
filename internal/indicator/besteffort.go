package indicator

import "trading-platform/internal/model"

// BestEffortSMA returns SMA at the last index, or 0 when it cannot be computed.
func BestEffortSMA(s *model.BarSeries, period int) float64 {
	v, err := SMA(s, period, endIndex(s))
	if err != nil {
		return 0
	}
	return v
}

// BestEffortEMA returns EMA at the last index, or 0 when it cannot be computed.
func BestEffortEMA(s *model.BarSeries, period int) float64 {
	v, err := EMA(s, period, endIndex(s))
	if err != nil {
		return 0
	}
	return v
}

// BestEffortRSI returns RSI at the last index, or 0 when it cannot be computed.
func BestEffortRSI(s *model.BarSeries, period int) float64 {
	v, err := RSI(s, period, endIndex(s))
	if err != nil {
		return 0
	}
	return v
}

// BestEffortMACD returns the MACD triple at the last index, or zeros.
func BestEffortMACD(s *model.BarSeries, fastPeriod, slowPeriod, signalPeriod int) MACDValue {
	v, err := MACD(s, fastPeriod, slowPeriod, signalPeriod, endIndex(s))
	if err != nil {
		return MACDValue{}
	}
	return v
}

// Summary is the indicator snapshot served by the per-symbol indicators endpoint.
type Summary struct {
	Symbol string    `json:"symbol"`
	Bars   int       `json:"bars"`
	SMA    float64   `json:"sma"`
	EMA    float64   `json:"ema"`
	RSI    float64   `json:"rsi"`
	MACD   MACDValue `json:"macd"`
}

// Summarize computes SMA(20), EMA(20), RSI(14) and MACD(12,26,9) in
// best-effort mode.
func Summarize(s *model.BarSeries) Summary {
	return Summary{
		Symbol: s.Symbol(),
		Bars:   s.Len(),
		SMA:    BestEffortSMA(s, 20),
		EMA:    BestEffortEMA(s, 20),
		RSI:    BestEffortRSI(s, 14),
		MACD:   BestEffortMACD(s, 12, 26, 9),
	}
}

func endIndex(s *model.BarSeries) int {
	if s == nil {
		return -1
	}
	return s.EndIndex()
}
