// Package alloc maintains the capital split between the trading, arbitrage
// and reserve desks and publishes it to the state store, where the scan
// engine reads its per-cycle budget from.
package alloc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coinarb/arbot/internal/domain"
)

// Store is the slice of the state store the allocator writes.
type Store interface {
	SaveAllocation(ctx context.Context, alloc domain.Allocation) error
	Heartbeat(ctx context.Context, component string, at time.Time) error
}

// AllocationAlerter is told when a rebalance lands. Delivery errors are
// logged and ignored.
type AllocationAlerter interface {
	AllocationUpdated(ctx context.Context, alloc domain.Allocation) error
}

// Config carries the desired split plus the guardrails it is clamped to.
type Config struct {
	TotalCapital float64
	TradingPct   float64
	ArbitragePct float64
	ReservePct   float64

	// MinReservePct is the floor on dry powder. When the configured split
	// leaves less, the shortfall is taken from the larger of the other
	// two desks.
	MinReservePct   float64
	MaxArbitragePct float64
	MaxTradingPct   float64

	Interval time.Duration
}

// Allocator is the rule-based capital allocator.
type Allocator struct {
	cfg     Config
	store   Store
	alerter AllocationAlerter
	logger  *slog.Logger
}

// New creates the allocator. alerter may be nil.
func New(cfg Config, store Store, alerter AllocationAlerter, logger *slog.Logger) *Allocator {
	return &Allocator{
		cfg:     cfg,
		store:   store,
		alerter: alerter,
		logger:  logger.With(slog.String("component", "allocator")),
	}
}

// Decide computes the allocation: take the configured split, raise reserve
// to its floor, cap the arbitrage and trading desks (excess flows to
// reserve), and renormalize so the three always sum to 100.
func (a *Allocator) Decide(now time.Time) domain.Allocation {
	trading := a.cfg.TradingPct
	arb := a.cfg.ArbitragePct
	reserve := a.cfg.ReservePct

	if reserve < a.cfg.MinReservePct {
		diff := a.cfg.MinReservePct - reserve
		reserve = a.cfg.MinReservePct
		if arb >= trading {
			arb -= diff
		} else {
			trading -= diff
		}
	}
	if a.cfg.MaxArbitragePct > 0 && arb > a.cfg.MaxArbitragePct {
		reserve += arb - a.cfg.MaxArbitragePct
		arb = a.cfg.MaxArbitragePct
	}
	if a.cfg.MaxTradingPct > 0 && trading > a.cfg.MaxTradingPct {
		reserve += trading - a.cfg.MaxTradingPct
		trading = a.cfg.MaxTradingPct
	}
	if arb < 0 {
		arb = 0
	}
	if trading < 0 {
		trading = 0
	}

	total := trading + arb + reserve
	if total > 0 && total != 100 {
		factor := 100 / total
		trading *= factor
		arb *= factor
		reserve *= factor
	}

	return domain.Allocation{
		TradingPct:   trading,
		ArbitragePct: arb,
		ReservePct:   reserve,
		TotalCapital: a.cfg.TotalCapital,
		UpdatedAt:    now,
	}
}

// Rebalance writes the current decision to the store.
func (a *Allocator) Rebalance(ctx context.Context) (domain.Allocation, error) {
	alloc := a.Decide(time.Now().UTC())
	if err := a.store.SaveAllocation(ctx, alloc); err != nil {
		return domain.Allocation{}, err
	}
	if err := a.store.Heartbeat(ctx, "allocator", alloc.UpdatedAt); err != nil {
		a.logger.Debug("heartbeat failed", slog.String("error", err.Error()))
	}
	a.logger.Info("allocation rebalanced",
		slog.Float64("trading_pct", alloc.TradingPct),
		slog.Float64("arbitrage_pct", alloc.ArbitragePct),
		slog.Float64("reserve_pct", alloc.ReservePct),
		slog.Float64("arbitrage_budget", alloc.ArbitrageBudget()),
	)
	if a.alerter != nil {
		if err := a.alerter.AllocationUpdated(ctx, alloc); err != nil {
			a.logger.Warn("allocation alert not delivered", slog.String("error", err.Error()))
		}
	}
	return alloc, nil
}

// RunLoop rebalances immediately and then on every tick until ctx is
// cancelled. Store failures are retried on the next tick.
func (a *Allocator) RunLoop(ctx context.Context) error {
	a.logger.Info("allocation loop started", slog.Duration("interval", a.cfg.Interval))

	if _, err := a.Rebalance(ctx); err != nil {
		a.logger.Error("rebalance failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("allocation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Rebalance(ctx); err != nil {
				a.logger.Error("rebalance failed", slog.String("error", err.Error()))
			}
		}
	}
}

// StoreBudget adapts the persisted allocation into the engine's budget
// source. A missing allocation reads as zero budget, which makes the scan
// cycle a no-op rather than an error.
type StoreBudget struct {
	store AllocationReader
}

// AllocationReader is the read side of the allocation state.
type AllocationReader interface {
	LoadAllocation(ctx context.Context) (domain.Allocation, error)
}

// NewStoreBudget wraps an allocation reader as a budget source.
func NewStoreBudget(store AllocationReader) *StoreBudget {
	return &StoreBudget{store: store}
}

// ArbitrageBudget returns the arbitrage desk's absolute budget.
func (b *StoreBudget) ArbitrageBudget(ctx context.Context) (float64, error) {
	alloc, err := b.store.LoadAllocation(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return alloc.ArbitrageBudget(), nil
}
