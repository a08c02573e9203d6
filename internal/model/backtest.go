package model

import "time"

// BacktestResult summarises one backtest run. Created once per invocation.
type BacktestResult struct {
	ID                   int64           `json:"id,omitempty"`
	StrategyName         string          `json:"strategy_name"`
	Symbol               string          `json:"symbol"`
	StartDate            time.Time       `json:"start_date"`
	EndDate              time.Time       `json:"end_date"`
	InitialCapital       float64         `json:"initial_capital"`
	FinalCapital         float64         `json:"final_capital"`
	TotalProfitLoss      float64         `json:"total_profit_loss"`
	PercentageProfitLoss float64         `json:"percentage_profit_loss"`
	TotalTrades          int             `json:"total_trades"`
	WinningTrades        int             `json:"winning_trades"`
	LosingTrades         int             `json:"losing_trades"`
	RunTime              time.Time       `json:"backtest_run_time"`
	Description          string          `json:"description,omitempty"`
	Trades               []BacktestTrade `json:"trades,omitempty"`
}

// BacktestTrade is one closed round trip inside a backtest.
type BacktestTrade struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	ProfitLoss float64   `json:"profit_loss"`
	ForceClose bool      `json:"force_close,omitempty"`
}
