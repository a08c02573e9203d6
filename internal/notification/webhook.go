package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// webhookPayload is the JSON body posted to the webhook. Signal fields are
// flattened so receivers can route on event and side without nesting.
type webhookPayload struct {
	Event     AlertKind  `json:"event"`
	Level     AlertLevel `json:"level"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Symbol    string     `json:"symbol,omitempty"`
	SignalID  string     `json:"signal_id,omitempty"`
	Side      string     `json:"side,omitempty"`
	Strategy  string     `json:"strategy,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	BarTime   *time.Time `json:"bar_time,omitempty"`
	Timestamp time.Time  `json:"ts"`
}

func newWebhookPayload(alert Alert, now time.Time) webhookPayload {
	p := webhookPayload{
		Event:     alert.Kind,
		Level:     alert.Level,
		Title:     alert.Title,
		Message:   alert.Message,
		Symbol:    alert.Symbol,
		Reason:    alert.Reason,
		Timestamp: alert.Timestamp,
	}
	if p.Event == "" {
		p.Event = "alert"
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	p.Timestamp = p.Timestamp.UTC()
	if sig := alert.Signal; sig != nil {
		p.SignalID = sig.ID
		p.Side = string(sig.Type)
		p.Strategy = sig.StrategyName
		if p.Symbol == "" {
			p.Symbol = sig.Symbol
		}
		if !sig.Timestamp.IsZero() {
			ts := sig.Timestamp.UTC()
			p.BarTime = &ts
		}
	}
	return p
}

// WebhookNotifier POSTs signal and rejection alerts to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier posting to url with a 10s timeout.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := newWebhookPayload(alert, time.Now())
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook %s: marshal: %w", payload.Event, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s: create request: %w", payload.Event, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trading-Event", string(payload.Event))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s %s: %w", payload.Event, payload.Symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s %s: status %d", payload.Event, payload.Symbol, resp.StatusCode)
	}

	log.Printf("[webhook] %s %s %s %s", payload.Event, payload.Side, payload.Symbol, payload.Strategy)
	return nil
}
