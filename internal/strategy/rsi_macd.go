package strategy

import (
	"context"
	"fmt"

	"trading-platform/internal/crossover"
	"trading-platform/internal/indicator"
	"trading-platform/internal/model"
)

// RsiMacdName is the registered name of RsiMacd.
const RsiMacdName = "RSI_MACD"

// RsiMacd combines an RSI filter with a MACD / signal-line cross.
//
// Buy signal: RSI < oversold and MACD crosses above its signal line
// Sell signal: RSI > overbought and MACD crosses below its signal line
//
// The cross compares the last index with the one before it on the full
// series, so the strategy keeps no state between calls.
type RsiMacd struct{}

// NewRsiMacd creates the RSI/MACD strategy.
func NewRsiMacd() *RsiMacd { return &RsiMacd{} }

func (s *RsiMacd) Name() string {
	return RsiMacdName
}

func (s *RsiMacd) GenerateSignals(_ context.Context, in Input) ([]model.TradingSignal, error) {
	p, _ := ParseRsiMacdParams(in.Parameters)
	series := buildSeries(RsiMacdName, in)
	end := series.EndIndex()
	if end < 1 {
		return nil, nil
	}

	rsi, err := indicator.RSI(series, p.RSIPeriod, end)
	if err != nil {
		return nil, ignoreInsufficient(err)
	}
	cur, err := indicator.MACD(series, p.MACDFast, p.MACDSlow, p.MACDSignal, end)
	if err != nil {
		return nil, ignoreInsufficient(err)
	}
	prev := indicator.MACDSeries(series, p.MACDFast, p.MACDSlow, p.MACDSignal)[end-1]
	if !cur.SignalReady || !prev.SignalReady {
		return nil, nil
	}

	edge, ok := crossover.Detect(prev.MACD, prev.Signal, cur.MACD, cur.Signal)
	if !ok {
		return nil, nil
	}

	var desc string
	switch {
	case edge == model.SignalBuy && rsi < p.RSIOversold:
		desc = fmt.Sprintf("BUY: RSI (%.2f) oversold & MACD (%.2f) crossed above Signal (%.2f)", rsi, cur.MACD, cur.Signal)
	case edge == model.SignalSell && rsi > p.RSIOverbought:
		desc = fmt.Sprintf("SELL: RSI (%.2f) overbought & MACD (%.2f) crossed below Signal (%.2f)", rsi, cur.MACD, cur.Signal)
	default:
		return nil, nil
	}
	sig := model.NewSignal(in.Current.Symbol, in.Current.Timestamp, edge, RsiMacdName, desc)
	return []model.TradingSignal{sig}, nil
}
