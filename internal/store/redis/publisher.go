package redis

import (
	"context"
	"errors"
	"log"
	"sync"

	goredis "github.com/go-redis/redis/v8"

	"trading-platform/internal/model"
)

// outbound is one pending write: an XADD plus an optional PUBLISH.
type outbound struct {
	Stream  string
	Channel string // empty for no pub/sub fan-out
	Data    string
}

// Publisher writes signals and trades to their streams through a circuit
// breaker. While the breaker is open, writes are buffered locally and
// flushed when it closes again. It implements model.SignalSink and
// model.TradeSink.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	send   func(ctx context.Context, o outbound) error

	mu     sync.Mutex
	buffer []outbound
	maxBuf int // max buffered writes before dropping oldest

	// Callbacks
	OnBuffer func()          // called when a write is buffered
	OnFlush  func(count int) // called after flushing buffered writes
}

// NewPublisher creates a publisher. maxBufferSize <= 0 means 10000.
func NewPublisher(client *goredis.Client, cb *CircuitBreaker, maxBufferSize int) *Publisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	p := &Publisher{
		client: client,
		cb:     cb,
		buffer: make([]outbound, 0, 256),
		maxBuf: maxBufferSize,
	}
	p.send = p.write

	// Flush on circuit close
	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go p.flush(context.Background())
		}
	}
	return p
}

// SaveSignal XADDs the signal to stream:trading-signals and PUBLISHes it on
// pub:signals:{symbol}.
func (p *Publisher) SaveSignal(ctx context.Context, sig model.TradingSignal) error {
	return p.publish(ctx, outbound{
		Stream:  StreamTradingSignals,
		Channel: SignalChannelPrefix + sig.Symbol,
		Data:    string(sig.JSON()),
	})
}

// SaveTrade XADDs the trade to stream:trade-executions.
func (p *Publisher) SaveTrade(ctx context.Context, t model.SimulatedTrade) error {
	return p.publish(ctx, outbound{Stream: StreamTradeExecutions, Data: string(t.JSON())})
}

func (p *Publisher) publish(ctx context.Context, o outbound) error {
	err := p.cb.Execute(func() error { return p.send(ctx, o) })
	if errors.Is(err, ErrCircuitOpen) {
		p.bufferWrite(o)
		return nil // buffered, not lost
	}
	return err
}

// write performs the pipelined XADD and PUBLISH.
func (p *Publisher) write(ctx context.Context, o outbound) error {
	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: o.Stream,
		MaxLen: outboundMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": o.Data},
	})
	if o.Channel != "" {
		pipe.Publish(ctx, o.Channel, o.Data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Publisher) bufferWrite(o outbound) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) >= p.maxBuf {
		// Buffer full, drop oldest
		p.buffer = p.buffer[1:]
	}
	p.buffer = append(p.buffer, o)

	if p.OnBuffer != nil {
		p.OnBuffer()
	}
}

// flush replays buffered writes in order. Entries that fail again are
// put back at the front of the buffer.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	toFlush := p.buffer
	p.buffer = make([]outbound, 0, 256)
	p.mu.Unlock()

	flushed := 0
	for i, o := range toFlush {
		if err := p.send(ctx, o); err != nil {
			log.Printf("[redis-publisher] flush stopped after %d writes: %v", flushed, err)
			p.mu.Lock()
			p.buffer = append(append([]outbound(nil), toFlush[i:]...), p.buffer...)
			p.mu.Unlock()
			break
		}
		flushed++
	}

	log.Printf("[redis-publisher] flushed %d buffered writes", flushed)
	if p.OnFlush != nil {
		p.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered writes waiting to be flushed.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}
