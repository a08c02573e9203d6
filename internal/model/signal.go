package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SignalType is the direction of a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// TradingSignal is emitted by a strategy. It is immutable once emitted and is
// forwarded to persistence, the bus and the broadcast hub unchanged.
type TradingSignal struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	Timestamp    time.Time  `json:"timestamp"`
	Type         SignalType `json:"signal_type"`
	StrategyName string     `json:"strategy_name"`
	Description  string     `json:"description"`
}

// NewSignal creates a signal with a fresh ID.
func NewSignal(symbol string, ts time.Time, typ SignalType, strategyName, description string) TradingSignal {
	return TradingSignal{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Timestamp:    ts,
		Type:         typ,
		StrategyName: strategyName,
		Description:  description,
	}
}

// JSON returns the JSON-encoded signal.
func (s *TradingSignal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
