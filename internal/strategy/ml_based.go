package strategy

import (
	"context"
	"fmt"
	"strings"

	"trading-platform/internal/model"
)

// MlBasedName is the registered name of MlBased.
const MlBasedName = "ML_BASED"

// MLConfidenceThreshold is the exclusive lower bound on prediction confidence.
const MLConfidenceThreshold = 0.70

// MlBased relays external model predictions as signals. It does not look at
// bars; GenerateSignals always returns nothing.
type MlBased struct{}

// NewMlBased creates the prediction-driven strategy.
func NewMlBased() *MlBased { return &MlBased{} }

func (s *MlBased) Name() string {
	return MlBasedName
}

func (s *MlBased) GenerateSignals(context.Context, Input) ([]model.TradingSignal, error) {
	return nil, nil
}

// FromPrediction emits one signal when the prediction is BUY or SELL
// (case-insensitive) and confidence > MLConfidenceThreshold.
func (s *MlBased) FromPrediction(p model.MLPrediction) []model.TradingSignal {
	if p.Confidence <= MLConfidenceThreshold {
		return nil
	}
	var typ model.SignalType
	switch strings.ToUpper(strings.TrimSpace(p.Prediction)) {
	case "BUY":
		typ = model.SignalBuy
	case "SELL":
		typ = model.SignalSell
	default:
		return nil
	}
	desc := fmt.Sprintf("ML %s: Prediction %s with %.2f confidence", typ, p.Prediction, p.Confidence)
	return []model.TradingSignal{model.NewSignal(p.Symbol, p.Timestamp, typ, MlBasedName, desc)}
}
