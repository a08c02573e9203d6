package model

import (
	"encoding/json"
	"time"
)

// SimulatedTrade records one accepted paper execution.
type SimulatedTrade struct {
	ID                       string     `json:"id"`
	SignalID                 string     `json:"signal_id,omitempty"`
	Symbol                   string     `json:"symbol"`
	Timestamp                time.Time  `json:"timestamp"`
	Type                     SignalType `json:"trade_type"`
	Price                    float64    `json:"price"`
	Quantity                 float64    `json:"quantity"`
	StrategyName             string     `json:"strategy_name"`
	CashAfterTrade           float64    `json:"cash_after_trade"`
	PortfolioValueAfterTrade float64    `json:"portfolio_value_after_trade"`
}

// JSON returns the JSON-encoded trade.
func (t *SimulatedTrade) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
