// Package bus fans emitted trading signals out to independent consumers
// (bus publisher, WebSocket hub, notifier) without letting a slow one block
// the pipeline.
package bus

import (
	"context"
	"log"
	"sync"

	"trading-platform/internal/model"
)

// FanOut broadcasts signals from a single input channel to N output channels.
// If an output channel is full, the signal is dropped for that consumer to
// prevent a slow consumer from blocking the pipeline.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.TradingSignal
	names   []string
	bufSize int

	// OnDrop is called when a signal is dropped for a subscriber.
	OnDrop func(subscriber string)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new named output channel.
func (f *FanOut) Subscribe(name string) <-chan model.TradingSignal {
	ch := make(chan model.TradingSignal, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.names = append(f.names, name)
	f.mu.Unlock()
	return ch
}

// Publish delivers sig to every subscriber without blocking.
func (f *FanOut) Publish(sig model.TradingSignal) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, ch := range f.outputs {
		select {
		case ch <- sig:
		default:
			if f.OnDrop != nil {
				f.OnDrop(f.names[i])
			} else {
				log.Printf("[bus] subscriber %s full, dropping signal %s %s", f.names[i], sig.Symbol, sig.ID)
			}
		}
	}
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed, then closes the outputs.
func (f *FanOut) Run(ctx context.Context, input <-chan model.TradingSignal) {
	defer f.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-input:
			if !ok {
				return
			}
			f.Publish(sig)
		}
	}
}

// Close closes every subscriber channel. Publish must not be called afterwards.
func (f *FanOut) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.outputs {
		close(ch)
	}
	f.outputs = nil
	f.names = nil
}

// ChannelStat reports (length, capacity) of one subscriber channel.
// Used for reporting channel saturation percentage.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns a ChannelStat per subscriber.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Name: f.names[i], Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
