package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"trading-platform/internal/model"
)

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	configs, err := s.deps.Strategies.FindAllStrategyConfigs(r.Context())
	if err != nil {
		s.storeError(w, "list strategies", err)
		return
	}
	if configs == nil {
		configs = []model.StrategyConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleRegisteredStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Names())
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cfg, err := s.deps.Strategies.FindStrategyConfig(r.Context(), id)
	if err != nil {
		s.storeError(w, "get strategy", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleStrategyByNameAndSymbol(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Strategies.FindByNameAndSymbol(r.Context(), r.PathValue("name"), r.PathValue("symbol"))
	if err != nil {
		s.storeError(w, "get strategy by name", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	cfg, ok := decodeStrategy(w, r)
	if !ok {
		return
	}
	cfg.ID = 0
	saved, err := s.deps.Strategies.SaveStrategyConfig(r.Context(), cfg)
	if err != nil {
		s.storeError(w, "create strategy", err)
		return
	}
	log.Printf("[gateway] strategy config %d created: %s/%s", saved.ID, saved.StrategyName, saved.Symbol)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cfg, ok := decodeStrategy(w, r)
	if !ok {
		return
	}
	cfg.ID = id
	saved, err := s.deps.Strategies.SaveStrategyConfig(r.Context(), cfg)
	if err != nil {
		s.storeError(w, "update strategy", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Strategies.DeleteStrategyConfig(r.Context(), id); err != nil {
		s.storeError(w, "delete strategy", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeStrategy reads a config body. Parameters must be a JSON object when present.
func decodeStrategy(w http.ResponseWriter, r *http.Request) (model.StrategyConfig, bool) {
	var cfg model.StrategyConfig
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return cfg, false
	}
	cfg.StrategyName = strings.TrimSpace(cfg.StrategyName)
	cfg.Symbol = strings.TrimSpace(cfg.Symbol)
	if cfg.StrategyName == "" || cfg.Symbol == "" {
		writeError(w, http.StatusBadRequest, "strategy_name and symbol are required")
		return cfg, false
	}
	if p := strings.TrimSpace(string(cfg.Parameters)); p != "" && p != "null" && !strings.HasPrefix(p, "{") {
		writeError(w, http.StatusBadRequest, "parameters must be a JSON object")
		return cfg, false
	}
	return cfg, true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "a config for this strategy and symbol already exists")
	default:
		log.Printf("[gateway] %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}
