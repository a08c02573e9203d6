package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trading-platform/internal/model"
)

// seedFile is the YAML layout of the strategy seed file:
//
//	strategies:
//	  - name: SMA_CROSSOVER
//	    symbol: AAPL
//	    enabled: true
//	    parameters:
//	      shortPeriod: 5
//	      longPeriod: 20
type seedFile struct {
	Strategies []seedEntry `yaml:"strategies"`
}

type seedEntry struct {
	Name       string         `yaml:"name"`
	Symbol     string         `yaml:"symbol"`
	Enabled    *bool          `yaml:"enabled"`
	Parameters map[string]any `yaml:"parameters"`
}

// LoadStrategySeed parses the strategy seed file. Entries default to
// enabled; parameters are re-encoded as the JSON blob strategies read.
func LoadStrategySeed(path string) ([]model.StrategyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseStrategySeed(raw)
}

// ParseStrategySeed is LoadStrategySeed over in-memory YAML.
func ParseStrategySeed(raw []byte) ([]model.StrategyConfig, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	configs := make([]model.StrategyConfig, 0, len(f.Strategies))
	seen := make(map[string]bool, len(f.Strategies))
	for i, e := range f.Strategies {
		name, symbol := strings.TrimSpace(e.Name), strings.TrimSpace(e.Symbol)
		if name == "" || symbol == "" {
			return nil, fmt.Errorf("seed entry %d: name and symbol are required", i)
		}
		key := name + "|" + symbol
		if seen[key] {
			return nil, fmt.Errorf("seed entry %d: duplicate %s for %s", i, name, symbol)
		}
		seen[key] = true

		cfg := model.StrategyConfig{StrategyName: name, Symbol: symbol, Enabled: true}
		if e.Enabled != nil {
			cfg.Enabled = *e.Enabled
		}
		if len(e.Parameters) > 0 {
			params, err := json.Marshal(e.Parameters)
			if err != nil {
				return nil, fmt.Errorf("seed entry %d parameters: %w", i, err)
			}
			cfg.Parameters = params
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
