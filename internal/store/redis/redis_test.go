package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-platform/internal/model"
)

// ════════════════════════════════════════════════════════════
// Stream entry decoding
// ════════════════════════════════════════════════════════════

func TestDecodeBar_TimestampFormats(t *testing.T) {
	want := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	for _, ts := range []string{
		`"2024-03-01T14:30:00Z"`,
		`"2024-03-01T09:30:00-05:00"`,
		`"2024-03-01T14:30:00"`,
		`"2024-03-01 14:30:00"`,
		`1709303400`,
		`1709303400000`,
	} {
		data := `{"symbol":"AAPL","timestamp":` + ts + `,"open":1,"high":2,"low":0.5,"close":1.5,"volume":100}`
		ev, err := decodeBar(map[string]interface{}{"data": data})
		if err != nil {
			t.Errorf("%s: %v", ts, err)
			continue
		}
		if !ev.Timestamp.Equal(want) {
			t.Errorf("%s: got %v, want %v", ts, ev.Timestamp, want)
		}
		if ev.Symbol != "AAPL" || ev.Close != 1.5 || ev.Volume != 100 {
			t.Errorf("%s: fields %+v", ts, ev)
		}
	}
}

func TestDecode_PoisonMessages(t *testing.T) {
	for name, values := range map[string]map[string]interface{}{
		"no data field":  {"payload": "{}"},
		"not json":       {"data": "not json"},
		"bad timestamp":  {"data": `{"symbol":"AAPL","timestamp":"yesterday"}`},
		"missing symbol": {"data": `{"timestamp":"2024-03-01T14:30:00Z","close":1}`},
	} {
		if _, err := decodeBar(values); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := decodeBar(map[string]interface{}{"payload": "{}"}); !errors.Is(err, errNoData) {
		t.Errorf("no data field: %v", err)
	}
}

func TestDecodePrediction(t *testing.T) {
	p, err := decodePrediction(map[string]interface{}{
		"data": `{"symbol":"NVDA","timestamp":"2024-03-01T14:30:00","prediction":"BUY","confidence":0.91}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Symbol != "NVDA" || p.Prediction != "BUY" || p.Confidence != 0.91 {
		t.Errorf("got %+v", p)
	}
}

func TestConsumerDecode_RoutesByStream(t *testing.T) {
	c := &Consumer{}
	d, err := c.decode(StreamMLPredictions, xmsg("1-0", `{"symbol":"X","prediction":"SELL","confidence":0.8}`))
	if err != nil || d.Prediction == nil || d.Bar != nil {
		t.Fatalf("prediction delivery: %+v, %v", d, err)
	}
	if _, err := c.decode("stream:other", xmsg("1-0", `{}`)); err == nil {
		t.Error("unknown stream accepted")
	}
}

// ════════════════════════════════════════════════════════════
// Publisher
// ════════════════════════════════════════════════════════════

type recorder struct {
	mu   sync.Mutex
	sent []outbound
	fail bool
}

func (r *recorder) send(_ context.Context, o outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("connection refused")
	}
	r.sent = append(r.sent, o)
	return nil
}

func (r *recorder) snapshot() []outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbound(nil), r.sent...)
}

func TestPublisher_RoutesSignalsAndTrades(t *testing.T) {
	rec := &recorder{}
	p := NewPublisher(nil, NewCircuitBreaker(3, time.Second), 0)
	p.send = rec.send
	ctx := context.Background()

	sig := model.NewSignal("AAPL", time.Now(), model.SignalBuy, "SMA_CROSSOVER", "x")
	if err := p.SaveSignal(ctx, sig); err != nil {
		t.Fatal(err)
	}
	if err := p.SaveTrade(ctx, model.SimulatedTrade{ID: "t1", Symbol: "AAPL"}); err != nil {
		t.Fatal(err)
	}

	sent := rec.snapshot()
	if len(sent) != 2 {
		t.Fatalf("sent %d", len(sent))
	}
	if sent[0].Stream != StreamTradingSignals || sent[0].Channel != "pub:signals:AAPL" {
		t.Errorf("signal routing: %+v", sent[0])
	}
	var decoded model.TradingSignal
	if err := json.Unmarshal([]byte(sent[0].Data), &decoded); err != nil || decoded.ID != sig.ID {
		t.Errorf("signal payload: %v %+v", err, decoded)
	}
	if sent[1].Stream != StreamTradeExecutions || sent[1].Channel != "" {
		t.Errorf("trade routing: %+v", sent[1])
	}
}

func TestPublisher_BuffersWhileOpenAndFlushesOnClose(t *testing.T) {
	rec := &recorder{fail: true}
	cb, clock := newTestBreaker(1)
	p := NewPublisher(nil, cb, 2)
	p.send = rec.send
	flushed := make(chan int, 1)
	p.OnFlush = func(n int) { flushed <- n }
	ctx := context.Background()

	if err := p.SaveTrade(ctx, model.SimulatedTrade{ID: "t0"}); err == nil {
		t.Fatal("expected the tripping write to fail")
	}
	for _, id := range []string{"t1", "t2", "t3"} {
		if err := p.SaveTrade(ctx, model.SimulatedTrade{ID: id}); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
	}
	if p.PendingCount() != 2 {
		t.Fatalf("pending: got %d, want 2 (oldest dropped)", p.PendingCount())
	}

	rec.mu.Lock()
	rec.fail = false
	rec.mu.Unlock()
	clock.advance(11 * time.Second)
	if err := p.SaveTrade(ctx, model.SimulatedTrade{ID: "t4"}); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-flushed:
		if n != 2 {
			t.Errorf("flushed %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no flush after breaker closed")
	}
	if p.PendingCount() != 0 {
		t.Errorf("pending after flush: %d", p.PendingCount())
	}
	if got := len(rec.snapshot()); got != 3 {
		t.Errorf("sent %d writes, want 3", got)
	}
}

func xmsg(id, data string) goredis.XMessage {
	return goredis.XMessage{ID: id, Values: map[string]interface{}{"data": data}}
}
