package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownStrategy is returned when a configured name has no registered strategy.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Registry is the static name → strategy table built at startup.
//
// Lookups ignore case, underscores and a trailing "strategy", so
// "SMA_CROSSOVER", "SMA_CROSSOVER_STRATEGY" and "smacrossover" all resolve
// to the same entry.
type Registry struct {
	byKey map[string]TradingStrategy
}

// NewRegistry registers strategies under their Name().
func NewRegistry(strategies ...TradingStrategy) *Registry {
	r := &Registry{byKey: make(map[string]TradingStrategy, len(strategies))}
	for _, s := range strategies {
		r.byKey[registryKey(s.Name())] = s
	}
	return r
}

// Lookup resolves a configured strategy name.
func (r *Registry) Lookup(name string) (TradingStrategy, error) {
	if s, ok := r.byKey[registryKey(name)]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byKey))
	for _, s := range r.byKey {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}

func registryKey(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	k = strings.ReplaceAll(k, "_", "")
	k = strings.ReplaceAll(k, "-", "")
	if k != "strategy" {
		k = strings.TrimSuffix(k, "strategy")
	}
	return k
}
