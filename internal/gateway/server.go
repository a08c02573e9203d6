// Package gateway is the HTTP surface: REST endpoints over bars, indicators,
// backtests, strategy configs and the paper portfolio, plus the WebSocket
// signal hub.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trading-platform/internal/backtest"
	"trading-platform/internal/execution"
	"trading-platform/internal/metrics"
	"trading-platform/internal/model"
	"trading-platform/internal/portfolio"
	"trading-platform/internal/strategy"
)

// SignalReader lists recently emitted signals.
type SignalReader interface {
	FindRecentSignals(ctx context.Context, symbol string, limit int) ([]model.TradingSignal, error)
}

// Deps are the collaborators behind the routes. Signals, Executor, Hub,
// Health, Metrics and Gatherer may be nil.
type Deps struct {
	Bars       model.BarRepository
	Signals    SignalReader
	Strategies model.StrategyConfigRepository
	Backtests  model.BacktestRepository
	Engine     *backtest.Engine
	Registry   *strategy.Registry
	Simulator  *portfolio.Simulator
	Executor   *execution.PaperExecutor
	Hub        *Hub
	Health     http.Handler
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// Options tunes the guards.
type Options struct {
	TOTPSecret    string  // empty disables the admin guard
	BacktestRate  float64 // backtests per second per client IP; <= 0 disables
	BacktestBurst int
}

// Server wires Deps into an http.Handler.
type Server struct {
	deps    Deps
	opts    Options
	limiter *ipLimiter
}

// NewServer creates the HTTP server handler set.
func NewServer(deps Deps, opts Options) *Server {
	s := &Server{deps: deps, opts: opts}
	if opts.BacktestRate > 0 {
		s.limiter = newIPLimiter(opts.BacktestRate, opts.BacktestBurst)
	}
	if opts.TOTPSecret == "" {
		log.Println("[gateway] WARNING: ADMIN_TOTP_SECRET not set, strategy writes are unguarded")
	}
	return s
}

// Handler returns the routed mux wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/stock/{symbol}", s.handleBars)
	mux.HandleFunc("GET /api/v1/stock/{symbol}/sma/{barCount}", s.handleSMA)
	mux.HandleFunc("GET /api/v1/stock/{symbol}/rsi/{barCount}", s.handleRSI)
	mux.HandleFunc("GET /api/v1/stock/{symbol}/macd/{fast}/{slow}/{signal}", s.handleMACD)
	mux.HandleFunc("GET /api/v1/stock/{symbol}/indicators", s.handleSummary)
	mux.Handle("GET /api/v1/stock/{symbol}/backtest/sma-crossover", s.rateLimited(http.HandlerFunc(s.handleBacktest)))
	mux.HandleFunc("GET /api/v1/stock/backtest/results", s.handleBacktestResults)

	mux.HandleFunc("GET /api/v1/strategies", s.handleListStrategies)
	mux.HandleFunc("GET /api/v1/strategies/registered", s.handleRegisteredStrategies)
	mux.HandleFunc("GET /api/v1/strategies/{id}", s.handleGetStrategy)
	mux.HandleFunc("GET /api/v1/strategies/name/{name}/symbol/{symbol}", s.handleStrategyByNameAndSymbol)
	mux.Handle("POST /api/v1/strategies", s.requireTOTP(http.HandlerFunc(s.handleCreateStrategy)))
	mux.Handle("PUT /api/v1/strategies/{id}", s.requireTOTP(http.HandlerFunc(s.handleUpdateStrategy)))
	mux.Handle("DELETE /api/v1/strategies/{id}", s.requireTOTP(http.HandlerFunc(s.handleDeleteStrategy)))

	mux.HandleFunc("GET /api/v1/signals", s.handleSignals)
	mux.HandleFunc("GET /api/v1/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /api/v1/portfolio/trades", s.handleTrades)

	if s.deps.Health != nil {
		mux.Handle("GET /api/v1/health", s.deps.Health)
	} else {
		mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	if s.deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	if s.deps.Hub != nil {
		mux.Handle("GET /ws/signals", s.deps.Hub)
	}

	return withCORS(mux)
}

// withCORS sets CORS headers and answers preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+totpHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}
