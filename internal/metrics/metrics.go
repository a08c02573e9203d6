package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the trading core.
type Metrics struct {
	BarsTotal        *prometheus.CounterVec // labels: symbol
	BarsFailed       *prometheus.CounterVec // labels: stage
	PredictionsTotal prometheus.Counter

	SignalsTotal   *prometheus.CounterVec // labels: strategy, type
	DispatchSkips  *prometheus.CounterVec // labels: reason
	DispatchDur    prometheus.Histogram
	DispatchErrors prometheus.Counter

	TradesExecuted *prometheus.CounterVec // labels: type
	TradesRejected *prometheus.CounterVec // labels: reason
	PortfolioCash  prometheus.Gauge
	PortfolioValue prometheus.Gauge

	BacktestsTotal *prometheus.CounterVec // labels: outcome
	BacktestDur    prometheus.Histogram

	// Backpressure
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	WSClients        prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_bars_total",
			Help: "Market data bars processed by the pipeline",
		}, []string{"symbol"}),
		BarsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_bars_failed_total",
			Help: "Bars whose processing failed (by stage)",
		}, []string{"stage"}),
		PredictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_ml_predictions_total",
			Help: "ML predictions received",
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_signals_total",
			Help: "Trading signals emitted (by strategy and type)",
		}, []string{"strategy", "type"}),
		DispatchSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_dispatch_skips_total",
			Help: "Strategy configs skipped during dispatch (by reason)",
		}, []string{"reason"}),
		DispatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecore_dispatch_duration_seconds",
			Help:    "Strategy dispatch latency per bar",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		DispatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_dispatch_errors_total",
			Help: "Dispatch calls that failed (history lookup, timeout)",
		}),

		TradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_trades_executed_total",
			Help: "Simulated trades filled (by type)",
		}, []string{"type"}),
		TradesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_trades_rejected_total",
			Help: "Simulated trades rejected (by reason)",
		}, []string{"reason"}),
		PortfolioCash: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradecore_portfolio_cash",
			Help: "Simulated portfolio cash",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradecore_portfolio_value",
			Help: "Simulated portfolio mark-to-market value",
		}),

		BacktestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_backtests_total",
			Help: "Backtests run (by outcome)",
		}, []string{"outcome"}),
		BacktestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecore_backtest_duration_seconds",
			Help:    "Backtest wall time",
			Buckets: prometheus.DefBuckets,
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_fanout_drops_total",
			Help: "Signals dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradecore_ws_clients",
			Help: "Connected WebSocket signal subscribers",
		}),
	}

	reg.MustRegister(
		m.BarsTotal,
		m.BarsFailed,
		m.PredictionsTotal,
		m.SignalsTotal,
		m.DispatchSkips,
		m.DispatchDur,
		m.DispatchErrors,
		m.TradesExecuted,
		m.TradesRejected,
		m.PortfolioCash,
		m.PortfolioValue,
		m.BacktestsTotal,
		m.BacktestDur,
		m.FanoutDropsTotal,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastBarTime    time.Time `json:"last_bar_time"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	return &HealthStatus{
		RedisEnabled: redisEnabled,
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the health endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Determine overall status
	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.RedisEnabled && !h.RedisConnected
	if !h.SQLiteOK || redisDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK && redisDown {
		overallStatus = "unhealthy"
	}

	barAge := ""
	if !h.LastBarTime.IsZero() {
		barAge = time.Since(h.LastBarTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastBarTime     string  `json:"last_bar_time"`
		BarAge          string  `json:"bar_age"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		BarAge:          barAge,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
