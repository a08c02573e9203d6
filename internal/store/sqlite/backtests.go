package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"trading-platform/internal/model"
)

// SaveBacktestResult inserts r and returns it with the assigned ID.
func (s *Store) SaveBacktestResult(ctx context.Context, r model.BacktestResult) (model.BacktestResult, error) {
	trades, err := json.Marshal(r.Trades)
	if err != nil {
		return r, fmt.Errorf("marshal backtest trades: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO backtest_results
			(strategy_name, symbol, start_date, end_date, initial_capital, final_capital,
			 total_profit_loss, percentage_profit_loss, total_trades, winning_trades, losing_trades,
			 run_time, description, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.StrategyName, r.Symbol, toMillis(r.StartDate), toMillis(r.EndDate), r.InitialCapital, r.FinalCapital,
		r.TotalProfitLoss, r.PercentageProfitLoss, r.TotalTrades, r.WinningTrades, r.LosingTrades,
		toMillis(r.RunTime), r.Description, string(trades))
	if err != nil {
		return r, fmt.Errorf("sqlite insert backtest result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return r, fmt.Errorf("sqlite backtest result id: %w", err)
	}
	r.ID = id
	return r, nil
}

// FindAllBacktestResults returns every stored result, most recent run first.
func (s *Store) FindAllBacktestResults(ctx context.Context) ([]model.BacktestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy_name, symbol, start_date, end_date, initial_capital, final_capital,
		       total_profit_loss, percentage_profit_loss, total_trades, winning_trades, losing_trades,
		       run_time, description, trades
		FROM backtest_results
		ORDER BY run_time DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query backtest results: %w", err)
	}
	defer rows.Close()

	var out []model.BacktestResult
	for rows.Next() {
		var r model.BacktestResult
		var start, end, run int64
		var desc, trades sql.NullString
		if err := rows.Scan(&r.ID, &r.StrategyName, &r.Symbol, &start, &end, &r.InitialCapital, &r.FinalCapital,
			&r.TotalProfitLoss, &r.PercentageProfitLoss, &r.TotalTrades, &r.WinningTrades, &r.LosingTrades,
			&run, &desc, &trades); err != nil {
			return nil, fmt.Errorf("sqlite scan backtest results: %w", err)
		}
		r.StartDate = fromMillis(start)
		r.EndDate = fromMillis(end)
		r.RunTime = fromMillis(run)
		r.Description = desc.String
		if trades.Valid && trades.String != "" && trades.String != "null" {
			if err := json.Unmarshal([]byte(trades.String), &r.Trades); err != nil {
				return nil, fmt.Errorf("unmarshal backtest trades %d: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
