// Package replay reads stored bars and feeds them back through a bar handler
// in timestamp order at a configurable speed, for paper-trading replays.
package replay

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"trading-platform/internal/model"
)

// maxGap caps the simulated wait between two bars.
const maxGap = 5 * time.Second

// EmitFunc receives one replayed bar.
type EmitFunc func(ctx context.Context, ev model.MarketDataEvent) error

// Replayer reads historical bars and replays them at a configurable speed.
type Replayer struct {
	source model.BarRepository
}

// New creates a Replayer backed by source.
func New(source model.BarRepository) *Replayer {
	return &Replayer{source: source}
}

// Run replays every bar of symbols at or after from (zero means all),
// interleaved by timestamp. speed controls the playback rate: 1.0 is real
// time, 10.0 is 10x, 0 is as fast as possible. It returns the number of bars
// emitted.
func (r *Replayer) Run(ctx context.Context, symbols []string, from time.Time, speed float64, emit EmitFunc) (int, error) {
	var events []model.MarketDataEvent
	for _, sym := range symbols {
		bars, err := r.source.FindBarsBySymbolOrderByTimestampAsc(ctx, sym)
		if err != nil {
			return 0, fmt.Errorf("load bars for %s: %w", sym, err)
		}
		for _, b := range bars {
			if !from.IsZero() && b.Timestamp.Before(from) {
				continue
			}
			events = append(events, eventFromBar(b))
		}
	}

	if len(events) == 0 {
		log.Println("[replay] no bars found")
		return 0, nil
	}

	// Stable so that bars of one symbol keep their stored order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	log.Printf("[replay] loaded %d bars across %d symbols, speed=%.1fx", len(events), len(symbols), speed)

	var prevTS time.Time
	emitted := 0
	for _, ev := range events {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return emitted, ctx.Err()
		default:
		}

		if speed > 0 && !prevTS.IsZero() {
			if gap := ev.Timestamp.Sub(prevTS); gap > 0 {
				scaled := min(time.Duration(float64(gap)/speed), maxGap)
				select {
				case <-ctx.Done():
					return emitted, ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		prevTS = ev.Timestamp

		if err := emit(ctx, ev); err != nil {
			return emitted, fmt.Errorf("replay %s @ %s: %w", ev.Symbol, ev.Timestamp.Format(time.RFC3339), err)
		}
		emitted++
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return emitted, nil
}

func eventFromBar(b model.Bar) model.MarketDataEvent {
	return model.MarketDataEvent{
		Symbol:    b.Symbol,
		Timestamp: b.Timestamp,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

// MemoryBars is an in-memory BarRepository and BarWriter. A replay uses it
// as the pipeline's history so strategies only see bars replayed so far.
type MemoryBars struct {
	mu   sync.RWMutex
	bars map[string][]model.Bar
}

// NewMemoryBars returns an empty store.
func NewMemoryBars() *MemoryBars {
	return &MemoryBars{bars: make(map[string][]model.Bar)}
}

// SaveBar appends b, replacing a stored bar with the same timestamp.
func (m *MemoryBars) SaveBar(_ context.Context, b model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bars := m.bars[b.Symbol]
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Timestamp.Before(b.Timestamp) })
	switch {
	case i < len(bars) && bars[i].Timestamp.Equal(b.Timestamp):
		bars[i] = b
	case i == len(bars):
		bars = append(bars, b)
	default:
		bars = append(bars, model.Bar{})
		copy(bars[i+1:], bars[i:])
		bars[i] = b
	}
	m.bars[b.Symbol] = bars
	return nil
}

// FindBarsBySymbolOrderByTimestampAsc returns a copy of the stored bars.
func (m *MemoryBars) FindBarsBySymbolOrderByTimestampAsc(_ context.Context, symbol string) ([]model.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Bar(nil), m.bars[symbol]...), nil
}
