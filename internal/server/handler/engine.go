package handler

import (
	"context"
	"net/http"

	"github.com/coinarb/arbot/internal/domain"
)

// ScanEngine is the slice of the arbitrage engine the HTTP surface needs.
type ScanEngine interface {
	Stats() domain.ArbitrageStats
	LastCycle() (domain.ScanCycleResult, bool)
	RecentOpportunities(limit int) []domain.ArbitrageOpportunity
	ScanOnce(ctx context.Context) domain.ScanCycleResult
}

// EngineHandler serves the engine-backed endpoints: statistics, the recent
// opportunity ring, and the manual scan trigger.
type EngineHandler struct {
	engine ScanEngine
}

// NewEngineHandler creates the engine endpoints.
func NewEngineHandler(engine ScanEngine) *EngineHandler {
	return &EngineHandler{engine: engine}
}

type statsResponse struct {
	Stats     domain.ArbitrageStats   `json:"stats"`
	LastCycle *domain.ScanCycleResult `json:"last_cycle,omitempty"`
}

// GetStats returns the session counters and the last cycle summary.
// GET /api/stats
func (h *EngineHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Stats: h.engine.Stats()}
	if cycle, ok := h.engine.LastCycle(); ok {
		resp.LastCycle = &cycle
	}
	writeJSON(w, http.StatusOK, resp)
}

type listOpportunitiesResponse struct {
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
}

// ListRecent returns the most recently detected opportunities, newest first.
// GET /api/opportunities/recent?limit=20
func (h *EngineHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	opps := h.engine.RecentOpportunities(limit)
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}

// TriggerScan runs one scan cycle synchronously and returns its result.
// The cycle goes through the same budget and gate as scheduled ones.
// POST /api/scan
func (h *EngineHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	result := h.engine.ScanOnce(r.Context())
	writeJSON(w, http.StatusOK, result)
}
