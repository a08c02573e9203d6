package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trading-platform/internal/model"
)

func TestWebhookNotifier_PostsSignalFields(t *testing.T) {
	var got webhookPayload
	var event string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("request: %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		event = r.Header.Get("X-Trading-Event")
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	barTime := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	sig := model.NewSignal("AAPL", barTime, model.SignalBuy, "SMA_CROSSOVER", "BUY: crossed")
	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), SignalAlert(sig)); err != nil {
		t.Fatal(err)
	}
	if event != "signal" || got.Event != KindSignal || got.Level != AlertInfo {
		t.Errorf("event header %q, payload %+v", event, got)
	}
	if got.Symbol != "AAPL" || got.Side != "BUY" || got.Strategy != "SMA_CROSSOVER" || got.SignalID != sig.ID {
		t.Errorf("signal fields: %+v", got)
	}
	if got.BarTime == nil || !got.BarTime.Equal(barTime) || got.Message != "BUY: crossed" {
		t.Errorf("payload: %+v", got)
	}
}

func TestWebhookPayload_RejectionAndPlainAlert(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sig := model.NewSignal("TSLA", now.Add(-time.Minute), model.SignalSell, "RSI_MACD", "")
	p := newWebhookPayload(RejectionAlert(sig, "insufficient_holdings", nil), now)
	if p.Event != KindTradeRejected || p.Reason != "insufficient_holdings" || p.Side != "SELL" || p.Symbol != "TSLA" {
		t.Errorf("rejection payload: %+v", p)
	}

	p = newWebhookPayload(Alert{Level: AlertCritical, Title: "redis down"}, now)
	if p.Event != "alert" || p.SignalID != "" || p.BarTime != nil || !p.Timestamp.Equal(now) {
		t.Errorf("plain payload: %+v", p)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Error("expected error on 502")
	}
}

type failing struct{ err error }

func (f failing) Send(context.Context, Alert) error { return f.err }

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{NewLogNotifier(), failing{boom}}
	if err := m.Send(context.Background(), Alert{Title: "t"}); !errors.Is(err, boom) {
		t.Errorf("err=%v", err)
	}
}

func TestRejectionAlert(t *testing.T) {
	sig := model.NewSignal("AAPL", time.Now(), model.SignalSell, "ML_BASED", "")
	a := RejectionAlert(sig, "insufficient_holdings", nil)
	if a.Level != AlertWarning || a.Message != "insufficient_holdings" || a.Symbol != "AAPL" || a.Reason != "insufficient_holdings" || a.Signal == nil {
		t.Errorf("alert: %+v", a)
	}
}
