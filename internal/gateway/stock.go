package gateway

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"trading-platform/internal/backtest"
	"trading-platform/internal/indicator"
	"trading-platform/internal/model"
)

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	bars, err := s.deps.Bars.FindBarsBySymbolOrderByTimestampAsc(r.Context(), r.PathValue("symbol"))
	if err != nil {
		log.Printf("[gateway] load bars: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load bars")
		return
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	writeJSON(w, http.StatusOK, bars)
}

// loadSeries returns the series for the path symbol, or writes the
// "No data found" response and returns nil.
func (s *Server) loadSeries(w http.ResponseWriter, r *http.Request) *model.BarSeries {
	symbol := r.PathValue("symbol")
	bars, err := s.deps.Bars.FindBarsBySymbolOrderByTimestampAsc(r.Context(), symbol)
	if err != nil {
		log.Printf("[gateway] load bars: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load bars")
		return nil
	}
	if len(bars) == 0 {
		writeText(w, http.StatusOK, "No data found for symbol: "+symbol)
		return nil
	}
	series, _ := model.BuildSeries(symbol, bars, nil)
	return series
}

func pathInt(w http.ResponseWriter, r *http.Request, names ...string) ([]int, bool) {
	out := make([]int, len(names))
	for i, name := range names {
		n, err := strconv.Atoi(r.PathValue(name))
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", name))
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func (s *Server) handleSMA(w http.ResponseWriter, r *http.Request) {
	n, ok := pathInt(w, r, "barCount")
	if !ok {
		return
	}
	series := s.loadSeries(w, r)
	if series == nil {
		return
	}
	if series.Len() < n[0] {
		writeText(w, http.StatusOK, fmt.Sprintf("Not enough data (%d bars) to calculate SMA for %d bars.", series.Len(), n[0]))
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("SMA for %s over %d bars: %.2f",
		series.Symbol(), n[0], indicator.BestEffortSMA(series, n[0])))
}

func (s *Server) handleRSI(w http.ResponseWriter, r *http.Request) {
	n, ok := pathInt(w, r, "barCount")
	if !ok {
		return
	}
	series := s.loadSeries(w, r)
	if series == nil {
		return
	}
	if series.Len() < n[0] {
		writeText(w, http.StatusOK, fmt.Sprintf("Not enough data (%d bars) to calculate RSI for %d bars.", series.Len(), n[0]))
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("RSI for %s over %d bars: %.2f",
		series.Symbol(), n[0], indicator.BestEffortRSI(series, n[0])))
}

func (s *Server) handleMACD(w http.ResponseWriter, r *http.Request) {
	p, ok := pathInt(w, r, "fast", "slow", "signal")
	if !ok {
		return
	}
	series := s.loadSeries(w, r)
	if series == nil {
		return
	}
	if series.Len() < max(p[0], p[1]) {
		writeText(w, http.StatusOK, fmt.Sprintf("Not enough data (%d bars) to calculate MACD.", series.Len()))
		return
	}
	v := indicator.BestEffortMACD(series, p[0], p[1], p[2])
	writeText(w, http.StatusOK, fmt.Sprintf("MACD for %s (MACD: %.2f, Signal: %.2f, Histogram: %.2f)",
		series.Symbol(), v.MACD, v.Signal, v.Histogram))
}

// handleSummary returns SMA(20), EMA(20), RSI(14) and MACD(12,26,9) as JSON.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	bars, err := s.deps.Bars.FindBarsBySymbolOrderByTimestampAsc(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load bars")
		return
	}
	series, _ := model.BuildSeries(symbol, bars, nil)
	writeJSON(w, http.StatusOK, indicator.Summarize(series))
}

const dateLayout = "2006-01-02"

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := backtest.Request{
		Symbol:         r.PathValue("symbol"),
		InitialCapital: 10000,
		ShortPeriod:    5,
		LongPeriod:     20,
	}

	var problems []string
	parseDate := func(key string) time.Time {
		v := q.Get(key)
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s must be a date like 2024-01-31, got %q", key, v))
		}
		return t
	}
	req.StartDate = parseDate("startDate")
	req.EndDate = parseDate("endDate")
	if v := q.Get("initialCapital"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			problems = append(problems, "initialCapital must be a number")
		}
		req.InitialCapital = f
	}
	for key, dst := range map[string]*int{"shortSmaPeriod": &req.ShortPeriod, "longSmaPeriod": &req.LongPeriod} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				problems = append(problems, key+" must be an integer")
			}
			*dst = n
		}
	}
	if len(problems) > 0 {
		s.countBacktest("invalid", 0)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid backtest request", "problems": problems})
		return
	}

	start := time.Now()
	result, err := s.deps.Engine.RunSmaCrossover(r.Context(), req)
	elapsed := time.Since(start)

	var invalid *backtest.InvalidRequestError
	switch {
	case errors.As(err, &invalid):
		s.countBacktest("invalid", 0)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid backtest request", "problems": invalid.Problems})
	case err != nil:
		s.countBacktest("error", elapsed)
		log.Printf("[gateway] backtest %s: %v", req.Symbol, err)
		writeError(w, http.StatusInternalServerError, "backtest failed")
	default:
		outcome := "ok"
		if result.Description == backtest.InsufficientDataDescription {
			outcome = "insufficient_data"
		}
		s.countBacktest(outcome, elapsed)
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) countBacktest(outcome string, elapsed time.Duration) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.BacktestsTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		s.deps.Metrics.BacktestDur.Observe(elapsed.Seconds())
	}
}

func (s *Server) handleBacktestResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.deps.Backtests.FindAllBacktestResults(r.Context())
	if err != nil {
		log.Printf("[gateway] list backtest results: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load backtest results")
		return
	}
	if results == nil {
		results = []model.BacktestResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
