// Package notification delivers alerts about emitted signals and rejected
// paper trades to external channels (log, webhook).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trading-platform/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// AlertKind names what an alert is about.
type AlertKind string

const (
	KindSignal        AlertKind = "signal"
	KindTradeRejected AlertKind = "trade_rejected"
)

// Alert represents a notification to be sent. Signal is set for alerts
// raised from a trading signal; Reason for rejected trades.
type Alert struct {
	Kind      AlertKind            `json:"kind,omitempty"`
	Level     AlertLevel           `json:"level"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Symbol    string               `json:"symbol,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Signal    *model.TradingSignal `json:"signal,omitempty"`
	Timestamp time.Time            `json:"ts"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// SignalAlert describes an emitted trading signal.
func SignalAlert(sig model.TradingSignal) Alert {
	return Alert{
		Kind:      KindSignal,
		Level:     AlertInfo,
		Title:     fmt.Sprintf("%s %s (%s)", sig.Type, sig.Symbol, sig.StrategyName),
		Message:   sig.Description,
		Symbol:    sig.Symbol,
		Signal:    &sig,
		Timestamp: sig.Timestamp,
	}
}

// RejectionAlert describes a paper trade the simulator refused.
func RejectionAlert(sig model.TradingSignal, reason string, err error) Alert {
	msg := reason
	if err != nil {
		msg = err.Error()
	}
	return Alert{
		Kind:      KindTradeRejected,
		Level:     AlertWarning,
		Title:     fmt.Sprintf("rejected %s %s (%s)", sig.Type, sig.Symbol, reason),
		Message:   msg,
		Symbol:    sig.Symbol,
		Reason:    reason,
		Signal:    &sig,
		Timestamp: sig.Timestamp,
	}
}

// LogNotifier is a simple notifier that logs alerts.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
