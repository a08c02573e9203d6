package sqlite

import (
	"context"
	"fmt"

	"trading-platform/internal/model"
)

// SaveSignal stores an emitted signal.
func (s *Store) SaveSignal(ctx context.Context, sig model.TradingSignal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trading_signals (id, symbol, ts, signal_type, strategy_name, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.Symbol, toMillis(sig.Timestamp), string(sig.Type), sig.StrategyName, sig.Description)
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// FindRecentSignals returns up to limit signals for symbol, newest first.
// An empty symbol matches every symbol.
func (s *Store) FindRecentSignals(ctx context.Context, symbol string, limit int) ([]model.TradingSignal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, ts, signal_type, strategy_name, description
		FROM trading_signals
		WHERE (? = '' OR symbol = ?)
		ORDER BY ts DESC
		LIMIT ?
	`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []model.TradingSignal
	for rows.Next() {
		var sig model.TradingSignal
		var ts int64
		var typ string
		if err := rows.Scan(&sig.ID, &sig.Symbol, &ts, &typ, &sig.StrategyName, &sig.Description); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		sig.Timestamp = fromMillis(ts)
		sig.Type = model.SignalType(typ)
		out = append(out, sig)
	}
	return out, rows.Err()
}

// SaveTrade stores an accepted simulated trade.
func (s *Store) SaveTrade(ctx context.Context, t model.SimulatedTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO simulated_trades
			(id, signal_id, symbol, ts, trade_type, price, quantity, strategy_name, cash_after_trade, portfolio_value_after_trade)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.SignalID, t.Symbol, toMillis(t.Timestamp), string(t.Type), t.Price, t.Quantity,
		t.StrategyName, t.CashAfterTrade, t.PortfolioValueAfterTrade)
	if err != nil {
		return fmt.Errorf("sqlite insert trade: %w", err)
	}
	return nil
}

// FindTrades returns every stored trade, oldest first.
func (s *Store) FindTrades(ctx context.Context) ([]model.SimulatedTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, signal_id, symbol, ts, trade_type, price, quantity, strategy_name, cash_after_trade, portfolio_value_after_trade
		FROM simulated_trades
		ORDER BY ts ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var out []model.SimulatedTrade
	for rows.Next() {
		var t model.SimulatedTrade
		var ts int64
		var typ string
		if err := rows.Scan(&t.ID, &t.SignalID, &t.Symbol, &ts, &typ, &t.Price, &t.Quantity,
			&t.StrategyName, &t.CashAfterTrade, &t.PortfolioValueAfterTrade); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		t.Timestamp = fromMillis(ts)
		t.Type = model.SignalType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}
