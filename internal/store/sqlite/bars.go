package sqlite

import (
	"context"
	"fmt"

	"trading-platform/internal/model"
)

// SaveBar upserts a bar. A second bar with the same symbol and timestamp
// replaces the first.
func (s *Store) SaveBar(ctx context.Context, b model.Bar) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.Symbol, toMillis(b.Timestamp), b.Open, b.High, b.Low, b.Close, b.Volume)
	if err != nil {
		return fmt.Errorf("sqlite insert bar: %w", err)
	}
	return nil
}

// SaveBars inserts bars in a single transaction.
func (s *Store) SaveBars(ctx context.Context, bars []model.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, toMillis(b.Timestamp), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar batch: %w", err)
		}
	}
	return tx.Commit()
}

// FindBarsBySymbolOrderByTimestampAsc returns every bar for symbol, oldest first.
func (s *Store) FindBarsBySymbolOrderByTimestampAsc(ctx context.Context, symbol string) ([]model.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ?
		ORDER BY ts ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var ts int64
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Timestamp = fromMillis(ts)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
