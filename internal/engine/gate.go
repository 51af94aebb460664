package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/coinarb/arbot/internal/domain"
)

// TradeExecutor settles a sized opportunity. Paper implementations simulate,
// live implementations place real orders.
type TradeExecutor interface {
	Execute(ctx context.Context, opp domain.ArbitrageOpportunity, size float64) error
	Mode() domain.ExecutionMode
}

// TradeJournal persists executed trades for reporting.
type TradeJournal interface {
	AppendTrade(ctx context.Context, trade domain.TradeRecord) error
}

// Alerter delivers execution notices. The gate logs delivery errors and
// moves on; a lost alert never fails a trade.
type Alerter interface {
	TradeExecuted(ctx context.Context, trade domain.TradeRecord, opp domain.ArbitrageOpportunity) error
	TradeFailed(ctx context.Context, opp domain.ArbitrageOpportunity, size float64, execErr error) error
}

// GateConfig holds the execution gate's sizing rules.
type GateConfig struct {
	// MaxExecutions caps how many of the ranked candidates are even
	// considered per cycle.
	MaxExecutions int
	// MinConfidence is the confidence floor applied within that window.
	MinConfidence float64
	// BudgetFraction of the remaining cycle budget is the per-trade
	// ceiling (0.1 = ten percent).
	BudgetFraction float64
	// MinTradeSize in quote currency; smaller sizings are skipped without
	// consuming budget.
	MinTradeSize float64
}

// Gate turns ranked opportunities into sized executions under a per-cycle
// budget. Sizing is sequential against the remaining budget, so one cycle
// can never commit more than its snapshot.
type Gate struct {
	cfg      GateConfig
	executor TradeExecutor
	journal  TradeJournal
	alerter  Alerter
	stats    *Stats
	logger   *slog.Logger
}

// NewGate creates the execution gate.
func NewGate(cfg GateConfig, executor TradeExecutor, journal TradeJournal, alerter Alerter, stats *Stats, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:      cfg,
		executor: executor,
		journal:  journal,
		alerter:  alerter,
		stats:    stats,
		logger:   logger.With(slog.String("component", "execution_gate")),
	}
}

// ExecuteTop walks the first MaxExecutions ranked candidates and executes
// the ones that pass the confidence floor and size to at least the minimum.
// It returns the executed trades and their summed estimated profit.
func (g *Gate) ExecuteTop(ctx context.Context, ranked []domain.ArbitrageOpportunity, budget float64) ([]domain.TradeRecord, float64) {
	remaining := budget
	var trades []domain.TradeRecord
	var totalEst float64

	for i := 0; i < len(ranked) && i < g.cfg.MaxExecutions; i++ {
		opp := ranked[i]
		log := g.logger.With(
			slog.String("opportunity_id", opp.ID),
			slog.String("kind", string(opp.Kind)),
			slog.String("symbol", opp.Symbol),
		)

		// 1. Confidence floor inside the execution window.
		if opp.Confidence < g.cfg.MinConfidence {
			log.Debug("confidence below execution floor, skipping",
				slog.Float64("confidence", opp.Confidence),
			)
			continue
		}

		// 2. Size against the remaining budget.
		size := math.Min(opp.MaxSize, remaining*g.cfg.BudgetFraction)
		if size < g.cfg.MinTradeSize {
			// Too small to be worth the fees; the budget stays intact.
			log.Debug("sized below minimum trade, skipping",
				slog.Float64("size", size),
				slog.Float64("remaining_budget", remaining),
			)
			continue
		}

		// 3. Reserve before executing. A failed execution may still have
		// moved money, so the reservation stands either way.
		remaining -= size
		estProfit := size * opp.NetProfitPct / 100

		if err := g.executor.Execute(ctx, opp, size); err != nil {
			log.Error("execution failed",
				slog.Float64("size", size),
				slog.String("error", err.Error()),
			)
			if alertErr := g.alerter.TradeFailed(ctx, opp, size, err); alertErr != nil {
				log.Warn("failure alert not delivered", slog.String("error", alertErr.Error()))
			}
			continue
		}

		// 4. Record the trade.
		trade := domain.TradeRecord{
			ID:              uuid.New().String(),
			OpportunityID:   opp.ID,
			Kind:            opp.Kind,
			Symbol:          opp.Symbol,
			BuyVenue:        opp.BuyVenue,
			SellVenue:       opp.SellVenue,
			Size:            size,
			NetProfitPct:    opp.NetProfitPct,
			EstimatedProfit: estProfit,
			Mode:            g.executor.Mode(),
			ExecutedAt:      time.Now().UTC(),
		}
		g.stats.RecordExecution(estProfit)
		totalEst += estProfit
		trades = append(trades, trade)

		if err := g.journal.AppendTrade(ctx, trade); err != nil {
			log.Warn("trade journal append failed", slog.String("error", err.Error()))
		}
		if err := g.alerter.TradeExecuted(ctx, trade, opp); err != nil {
			log.Warn("execution alert not delivered", slog.String("error", err.Error()))
		}

		log.Info("arbitrage executed",
			slog.String("mode", string(trade.Mode)),
			slog.Float64("size", size),
			slog.Float64("net_profit_pct", opp.NetProfitPct),
			slog.Float64("estimated_profit", estProfit),
		)
	}
	return trades, totalEst
}
