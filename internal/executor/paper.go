// Package executor settles sized arbitrage opportunities, either simulated
// on paper or as real market orders through venue adapters.
package executor

import (
	"context"
	"log/slog"

	"github.com/coinarb/arbot/internal/domain"
)

// Paper simulates executions. It never touches a venue, it just records the
// fill the gate asked for.
type Paper struct {
	logger *slog.Logger
}

// NewPaper creates the paper executor.
func NewPaper(logger *slog.Logger) *Paper {
	return &Paper{logger: logger.With(slog.String("component", "paper_executor"))}
}

// Mode reports paper.
func (p *Paper) Mode() domain.ExecutionMode { return domain.ModePaper }

// Execute logs the simulated fill and succeeds.
func (p *Paper) Execute(_ context.Context, opp domain.ArbitrageOpportunity, size float64) error {
	p.logger.Info("simulated arbitrage",
		slog.String("kind", string(opp.Kind)),
		slog.String("symbol", opp.Symbol),
		slog.String("buy_venue", opp.BuyVenue),
		slog.Float64("buy_price", opp.BuyPrice),
		slog.String("sell_venue", opp.SellVenue),
		slog.Float64("sell_price", opp.SellPrice),
		slog.Float64("spread_pct", opp.SpreadPct),
		slog.Float64("size", size),
	)
	return nil
}
