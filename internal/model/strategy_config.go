package model

import "encoding/json"

// StrategyConfig binds a registered strategy to a symbol with its parameters.
// Parameters is an opaque JSON blob interpreted by the strategy.
type StrategyConfig struct {
	ID           int64           `json:"id,omitempty"`
	StrategyName string          `json:"strategy_name"`
	Symbol       string          `json:"symbol"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	Enabled      bool            `json:"enabled"`
}
