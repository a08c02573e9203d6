package gateway

import (
	"log"
	"net/http"
	"strconv"

	"trading-platform/internal/model"
)

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Simulator.Snapshot())
}

// handleTrades returns the executor's recent fills, oldest first.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades := []model.SimulatedTrade{}
	if s.deps.Executor != nil {
		trades = append(trades, s.deps.Executor.Fills()...)
	}
	writeJSON(w, http.StatusOK, trades)
}

// handleSignals lists stored signals, newest first. ?symbol= filters and
// ?limit= caps the count (default 100).
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if s.deps.Signals == nil {
		writeError(w, http.StatusNotImplemented, "signal history not available")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	signals, err := s.deps.Signals.FindRecentSignals(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		log.Printf("[gateway] list signals: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load signals")
		return
	}
	if signals == nil {
		signals = []model.TradingSignal{}
	}
	writeJSON(w, http.StatusOK, signals)
}
