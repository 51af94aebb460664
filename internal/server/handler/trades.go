package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coinarb/arbot/internal/domain"
)

// TradeSource reads the bounded trade journal.
type TradeSource interface {
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
}

// TradesHandler serves the executed-trade journal.
type TradesHandler struct {
	source TradeSource
	logger *slog.Logger
}

// NewTradesHandler creates the trade journal endpoint.
func NewTradesHandler(source TradeSource, logger *slog.Logger) *TradesHandler {
	return &TradesHandler{source: source, logger: logger}
}

type listTradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
}

// ListTrades returns the most recent executions, newest first. An empty
// journal is an empty list, not an error.
// GET /api/trades/recent?limit=20
func (h *TradesHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	trades, err := h.source.RecentTrades(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
