package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coinarb/arbot/internal/domain"
)

// HeartbeatSource exposes the component heartbeats the health endpoint
// reports on.
type HeartbeatSource interface {
	Heartbeats(ctx context.Context) (map[string]time.Time, error)
}

// HealthHandler serves liveness for the whole bot, not just the HTTP
// process: it reflects the loop heartbeats from the state store.
type HealthHandler struct {
	beats      HeartbeatSource
	mode       domain.ExecutionMode
	staleAfter time.Duration
	startedAt  time.Time
	logger     *slog.Logger
}

// NewHealthHandler creates the health endpoint.
func NewHealthHandler(beats HeartbeatSource, mode domain.ExecutionMode, staleAfter time.Duration, startedAt time.Time, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		beats:      beats,
		mode:       mode,
		staleAfter: staleAfter,
		startedAt:  startedAt,
		logger:     logger,
	}
}

type componentHealth struct {
	LastBeat time.Time `json:"last_beat"`
	AgeSec   float64   `json:"age_seconds"`
	Stale    bool      `json:"stale"`
}

// HealthCheck reports overall status and per-loop heartbeat ages.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	status := "ok"
	components := map[string]componentHealth{}
	beats, err := h.beats.Heartbeats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: heartbeats failed", slog.String("error", err.Error()))
		status = "degraded"
	}
	for component, at := range beats {
		age := now.Sub(at)
		stale := age > h.staleAfter
		if stale {
			status = "degraded"
		}
		components[component] = componentHealth{
			LastBeat: at.UTC(),
			AgeSec:   age.Seconds(),
			Stale:    stale,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"mode":           h.mode,
		"uptime_seconds": int64(now.Sub(h.startedAt).Seconds()),
		"components":     components,
		"timestamp":      now.Format(time.RFC3339),
	})
}
