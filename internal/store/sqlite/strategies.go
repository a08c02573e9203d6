package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mattn/go-sqlite3"

	"trading-platform/internal/model"
)

const strategyColumns = `id, strategy_name, symbol, parameters, enabled`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrategyConfig(r rowScanner) (model.StrategyConfig, error) {
	var cfg model.StrategyConfig
	var params sql.NullString
	var enabled int
	if err := r.Scan(&cfg.ID, &cfg.StrategyName, &cfg.Symbol, &params, &enabled); err != nil {
		return cfg, err
	}
	if params.Valid && params.String != "" {
		cfg.Parameters = json.RawMessage(params.String)
	}
	cfg.Enabled = enabled != 0
	return cfg, nil
}

func (s *Store) queryStrategyConfigs(ctx context.Context, where string, args ...any) ([]model.StrategyConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+strategyColumns+` FROM strategy_configs `+where+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query strategy configs: %w", err)
	}
	defer rows.Close()

	var out []model.StrategyConfig
	for rows.Next() {
		cfg, err := scanStrategyConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan strategy configs: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// FindAllEnabledStrategyConfigs returns the configs the dispatcher evaluates.
func (s *Store) FindAllEnabledStrategyConfigs(ctx context.Context) ([]model.StrategyConfig, error) {
	return s.queryStrategyConfigs(ctx, `WHERE enabled = 1`)
}

// FindAllStrategyConfigs returns every config, enabled or not.
func (s *Store) FindAllStrategyConfigs(ctx context.Context) ([]model.StrategyConfig, error) {
	return s.queryStrategyConfigs(ctx, ``)
}

// FindStrategyConfig returns the config with id, or model.ErrNotFound.
func (s *Store) FindStrategyConfig(ctx context.Context, id int64) (model.StrategyConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategy_configs WHERE id = ?`, id)
	cfg, err := scanStrategyConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("strategy config %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return cfg, fmt.Errorf("sqlite read strategy config: %w", err)
	}
	return cfg, nil
}

// FindByNameAndSymbol returns the config for (strategyName, symbol), or model.ErrNotFound.
func (s *Store) FindByNameAndSymbol(ctx context.Context, strategyName, symbol string) (model.StrategyConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategy_configs WHERE strategy_name = ? AND symbol = ?`,
		strategyName, symbol)
	cfg, err := scanStrategyConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("strategy config %s/%s: %w", strategyName, symbol, model.ErrNotFound)
	}
	if err != nil {
		return cfg, fmt.Errorf("sqlite read strategy config: %w", err)
	}
	return cfg, nil
}

// SaveStrategyConfig inserts cfg when its ID is zero and updates it otherwise.
// Updating a missing ID returns model.ErrNotFound.
func (s *Store) SaveStrategyConfig(ctx context.Context, cfg model.StrategyConfig) (model.StrategyConfig, error) {
	var params any
	if len(cfg.Parameters) > 0 {
		params = string(cfg.Parameters)
	}

	if cfg.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO strategy_configs (strategy_name, symbol, parameters, enabled)
			VALUES (?, ?, ?, ?)
		`, cfg.StrategyName, cfg.Symbol, params, cfg.Enabled)
		if err != nil {
			return cfg, fmt.Errorf("sqlite insert strategy config: %w", mapConstraint(err))
		}
		if cfg.ID, err = res.LastInsertId(); err != nil {
			return cfg, fmt.Errorf("sqlite strategy config id: %w", err)
		}
		return cfg, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE strategy_configs SET strategy_name = ?, symbol = ?, parameters = ?, enabled = ?
		WHERE id = ?
	`, cfg.StrategyName, cfg.Symbol, params, cfg.Enabled, cfg.ID)
	if err != nil {
		return cfg, fmt.Errorf("sqlite update strategy config: %w", mapConstraint(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cfg, fmt.Errorf("strategy config %d: %w", cfg.ID, model.ErrNotFound)
	}
	return cfg, nil
}

// DeleteStrategyConfig removes the config with id, or returns model.ErrNotFound.
func (s *Store) DeleteStrategyConfig(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM strategy_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite delete strategy config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("strategy config %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// SeedStrategyConfigs inserts configs when the table is empty and reports
// how many were written. A populated table is left untouched.
func (s *Store) SeedStrategyConfigs(ctx context.Context, configs []model.StrategyConfig) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM strategy_configs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite count strategy configs: %w", err)
	}
	if count > 0 {
		log.Printf("[sqlite] %d strategy configs present, seed skipped", count)
		return 0, nil
	}
	for i, cfg := range configs {
		cfg.ID = 0
		if _, err := s.SaveStrategyConfig(ctx, cfg); err != nil {
			return i, err
		}
	}
	return len(configs), nil
}

// mapConstraint turns a UNIQUE violation into model.ErrConflict.
func mapConstraint(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}
