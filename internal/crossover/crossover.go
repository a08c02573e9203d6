// Package crossover turns pairs of indicator values into discrete BUY/SELL
// edge events, remembering the previous pair per (symbol, strategy).
package crossover

import (
	"sync"

	"trading-platform/internal/model"
)

// Key identifies one tracked series pair.
type Key struct {
	Symbol     string
	StrategyID string
}

// Edge is the direction of a crossing.
type Edge = model.SignalType

type pair struct {
	short, long float64
}

type entry struct {
	mu   sync.Mutex
	prev pair
	set  bool
}

// Store holds the previous (short, long) pair for each key.
// Observe on one key is serialized; different keys proceed in parallel.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[Key]*entry)}
}

func (s *Store) entry(k Key) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	return e
}

// Observe records (short, long) for key and reports a crossing against the
// previously stored pair. The first observation for a key never fires.
//
//	BUY  when short > long and prevShort <= prevLong
//	SELL when short < long and prevShort >= prevLong
//
// The stored pair is always replaced, so an equality step arms the next move.
func (s *Store) Observe(k Key, short, long float64) (Edge, bool) {
	e := s.entry(k)
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, seen := e.prev, e.set
	e.prev = pair{short: short, long: long}
	e.set = true

	if !seen {
		return "", false
	}
	return Detect(prev.short, prev.long, short, long)
}

// Detect is the stateless edge rule used by Observe and by callers that
// hold the previous pair themselves (backtests, RSI/MACD).
func Detect(prevShort, prevLong, short, long float64) (Edge, bool) {
	switch {
	case short > long && prevShort <= prevLong:
		return model.SignalBuy, true
	case short < long && prevShort >= prevLong:
		return model.SignalSell, true
	}
	return "", false
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset forgets the stored pair for k.
func (s *Store) Reset(k Key) {
	s.mu.Lock()
	delete(s.entries, k)
	s.mu.Unlock()
}
