package model

import "time"

// MarketDataEvent is an incoming bar for a symbol.
type MarketDataEvent struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Bar converts the event to a Bar.
func (e MarketDataEvent) Bar() Bar {
	return Bar{
		Symbol:    e.Symbol,
		Timestamp: e.Timestamp,
		Open:      e.Open,
		High:      e.High,
		Low:       e.Low,
		Close:     e.Close,
		Volume:    e.Volume,
	}
}

// MLPrediction is an externally produced model prediction for a symbol.
// Prediction is usually "BUY" or "SELL"; anything else is ignored.
type MLPrediction struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
}
