package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"trading-platform/internal/model"
)

type costEntry struct {
	Qty      decimal.Decimal
	AvgPrice decimal.Decimal
}

// PnLTracker tracks per-symbol cost basis and realized P&L.
type PnLTracker struct {
	mu          sync.RWMutex
	trades      int
	realizedPnL decimal.Decimal
	costBasis   map[string]costEntry
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{costBasis: make(map[string]costEntry)}
}

// Record applies one fill and returns the P&L it realized.
func (p *PnLTracker) Record(symbol string, side model.SignalType, qty, price decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trades++
	entry := p.costBasis[symbol]
	realized := decimal.Zero

	if side == model.SignalBuy {
		// Weighted average price
		totalCost := entry.AvgPrice.Mul(entry.Qty).Add(price.Mul(qty))
		entry.Qty = entry.Qty.Add(qty)
		if entry.Qty.IsPositive() {
			entry.AvgPrice = totalCost.Div(entry.Qty)
		}
	} else {
		sellQty := decimal.Min(qty, entry.Qty)
		realized = price.Sub(entry.AvgPrice).Mul(sellQty)
		entry.Qty = entry.Qty.Sub(sellQty)
		if !entry.Qty.IsPositive() {
			entry = costEntry{}
		}
		p.realizedPnL = p.realizedPnL.Add(realized)
	}

	if entry.Qty.IsZero() {
		delete(p.costBasis, symbol)
	} else {
		p.costBasis[symbol] = entry
	}
	return realized
}

// AvgCost returns the average entry price of the open position in symbol.
func (p *PnLTracker) AvgCost(symbol string) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.costBasis[symbol].AvgPrice
}

// PnLSummary is the realized side of the ledger.
type PnLSummary struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	TotalTrades   int     `json:"total_trades"`
	OpenPositions int     `json:"open_positions"`
}

// Summary returns the current P&L summary.
func (p *PnLTracker) Summary() PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PnLSummary{
		RealizedPnL:   p.realizedPnL.InexactFloat64(),
		TotalTrades:   p.trades,
		OpenPositions: len(p.costBasis),
	}
}
