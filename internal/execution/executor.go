// Package execution turns trading signals into simulated fills.
//
// The PaperExecutor prices each signal at the bar close, applies it to the
// portfolio Simulator and forwards accepted trades to the configured sinks.
package execution

import (
	"trading-platform/internal/model"
)

// Order statuses.
const (
	StatusFilled   = "FILLED"
	StatusRejected = "REJECTED"
)

// PricedSignal is a signal together with the price it should execute at.
type PricedSignal struct {
	Signal model.TradingSignal
	Price  float64
}

// OrderResult represents the outcome of one execution attempt.
type OrderResult struct {
	Status  string                `json:"status"` // FILLED, REJECTED
	Reason  string                `json:"reason,omitempty"`
	Message string                `json:"message"`
	Signal  model.TradingSignal   `json:"signal"`
	Trade   *model.SimulatedTrade `json:"trade,omitempty"`
	Err     error                 `json:"-"`
}

// Filled reports whether the order was executed.
func (r OrderResult) Filled() bool { return r.Status == StatusFilled }
