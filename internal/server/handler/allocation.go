package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coinarb/arbot/internal/domain"
)

// AllocationSource reads the current capital split.
type AllocationSource interface {
	LoadAllocation(ctx context.Context) (domain.Allocation, error)
}

// AllocationHandler serves the capital allocation endpoint.
type AllocationHandler struct {
	source AllocationSource
	logger *slog.Logger
}

// NewAllocationHandler creates the allocation endpoint.
func NewAllocationHandler(source AllocationSource, logger *slog.Logger) *AllocationHandler {
	return &AllocationHandler{source: source, logger: logger}
}

// GetAllocation returns the current split with the derived budgets.
// GET /api/allocation
func (h *AllocationHandler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	alloc, err := h.source.LoadAllocation(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no allocation yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: load allocation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load allocation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"allocation":       alloc,
		"arbitrage_budget": alloc.ArbitrageBudget(),
	})
}
