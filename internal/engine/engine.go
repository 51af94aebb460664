// Package engine runs the arbitrage scan cycle: read the budget, fan the
// detectors out, filter and rank what they find, and hand the best candidates
// to the execution gate.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coinarb/arbot/internal/detector"
	"github.com/coinarb/arbot/internal/domain"
)

// Signal bus channels the engine publishes on.
const (
	ChannelScans  = "arbot:scans"
	ChannelTrades = "arbot:trades"
)

const defaultRecentLimit = 100

// BudgetSource yields the arbitrage budget for one scan cycle. The value is
// snapshotted at cycle start and never re-read mid-cycle.
type BudgetSource interface {
	ArbitrageBudget(ctx context.Context) (float64, error)
}

// CycleStore is the slice of the state store the engine touches each cycle.
type CycleStore interface {
	SaveStats(ctx context.Context, stats domain.ArbitrageStats) error
	Heartbeat(ctx context.Context, component string, at time.Time) error
}

// Publisher fans cycle summaries and trades out to observers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Config holds the orchestrator knobs.
type Config struct {
	ScanInterval time.Duration
	// MinProfitPct is the net-profit floor an opportunity must meet to
	// survive filtering.
	MinProfitPct float64
	// RecentLimit caps the in-memory ring of recent opportunities served
	// to the API. Zero means the default.
	RecentLimit int
}

// Engine is the scan orchestrator. One Engine runs one scan at a time;
// RunLoop serializes cycles on a ticker.
type Engine struct {
	cfg       Config
	detectors *detector.Registry
	budget    BudgetSource
	gate      *Gate
	store     CycleStore
	bus       Publisher
	stats     *Stats
	logger    *slog.Logger

	mu        sync.RWMutex
	lastCycle *domain.ScanCycleResult
	recent    []domain.ArbitrageOpportunity
}

// New creates the engine. All collaborators are required.
func New(cfg Config, detectors *detector.Registry, budget BudgetSource, gate *Gate, store CycleStore, bus Publisher, stats *Stats, logger *slog.Logger) *Engine {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = defaultRecentLimit
	}
	return &Engine{
		cfg:       cfg,
		detectors: detectors,
		budget:    budget,
		gate:      gate,
		store:     store,
		bus:       bus,
		stats:     stats,
		logger:    logger.With(slog.String("component", "engine")),
	}
}

// RunLoop scans immediately and then on every tick until ctx is cancelled.
// With no detectors registered the engine stays alive but idle, so a bot
// configured with no venues degrades to a no-op instead of crashing.
func (e *Engine) RunLoop(ctx context.Context) error {
	if e.detectors.Len() == 0 {
		e.logger.Warn("no detectors registered, scanning disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	e.logger.Info("scan loop started",
		slog.Duration("interval", e.cfg.ScanInterval),
		slog.Int("detectors", e.detectors.Len()),
	)

	e.ScanOnce(ctx)

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			e.ScanOnce(ctx)
		}
	}
}

// ScanOnce runs a single cycle. Cycles never fail: venue outages, detector
// errors and store hiccups all degrade to log lines and smaller results.
func (e *Engine) ScanOnce(ctx context.Context) domain.ScanCycleResult {
	startedAt := time.Now().UTC()
	e.stats.RecordScan(startedAt)
	e.heartbeat(ctx)

	result := domain.ScanCycleResult{StartedAt: startedAt}

	// Budget snapshot. A missing or zero allocation short-circuits the
	// cycle before any venue traffic.
	budget, err := e.budget.ArbitrageBudget(ctx)
	if err != nil {
		e.logger.Warn("budget read failed, treating as zero", slog.String("error", err.Error()))
		budget = 0
	}
	result.BudgetSnapshot = budget
	if budget <= 0 {
		e.logger.Debug("no arbitrage budget allocated, scan skipped")
		result.Skipped = true
		result.Duration = time.Since(startedAt)
		e.remember(result)
		return result
	}

	detected := e.runDetectors(ctx)
	result.Considered = len(detected)

	var profitable []domain.ArbitrageOpportunity
	for _, opp := range detected {
		if opp.NetProfitPct < e.cfg.MinProfitPct {
			e.logger.Debug("opportunity below profit floor",
				slog.String("opportunity_id", opp.ID),
				slog.Float64("net_profit_pct", opp.NetProfitPct),
			)
			continue
		}
		profitable = append(profitable, opp)
	}
	// Stable sort keeps equal-profit opportunities in detector order, so
	// replayed snapshots rank identically.
	sort.SliceStable(profitable, func(i, j int) bool {
		return profitable[i].NetProfitPct > profitable[j].NetProfitPct
	})

	e.stats.RecordOpportunities(len(profitable))
	result.Opportunities = profitable

	trades, estProfit := e.gate.ExecuteTop(ctx, profitable, budget)
	result.Executed = len(trades)
	result.EstimatedProfit = estProfit
	result.Duration = time.Since(startedAt)

	if err := e.store.SaveStats(ctx, e.stats.Snapshot()); err != nil {
		e.logger.Warn("stats persist failed, will retry next cycle", slog.String("error", err.Error()))
	}

	e.remember(result)
	e.publish(ctx, result, trades)

	if len(profitable) > 0 {
		e.logger.Info("scan cycle complete",
			slog.Int("considered", result.Considered),
			slog.Int("opportunities", len(profitable)),
			slog.Int("executed", result.Executed),
			slog.Float64("estimated_profit", estProfit),
			slog.Duration("duration", result.Duration),
		)
	}
	return result
}

// runDetectors fans all registered detectors out and merges their finds in
// registry order. A failing detector contributes nothing.
func (e *Engine) runDetectors(ctx context.Context) []domain.ArbitrageOpportunity {
	dets := e.detectors.List()
	results := make([][]domain.ArbitrageOpportunity, len(dets))

	var g errgroup.Group
	for i, det := range dets {
		i, det := i, det // per-iteration copies; required until go.mod can declare go >= 1.22
		g.Go(func() error {
			opps, err := det.Detect(ctx)
			if err != nil {
				e.logger.Error("detector failed",
					slog.String("detector", det.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = opps
			return nil
		})
	}
	g.Wait() // detector errors are logged, never returned

	var merged []domain.ArbitrageOpportunity
	for _, opps := range results {
		merged = append(merged, opps...)
	}
	return merged
}

func (e *Engine) heartbeat(ctx context.Context) {
	if err := e.store.Heartbeat(ctx, "engine", time.Now().UTC()); err != nil {
		e.logger.Debug("heartbeat failed", slog.String("error", err.Error()))
	}
}

// remember stores the cycle for the API: last result plus a bounded ring of
// recent opportunities, newest first.
func (e *Engine) remember(result domain.ScanCycleResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastCycle = &result
	if len(result.Opportunities) > 0 {
		e.recent = append(append([]domain.ArbitrageOpportunity{}, result.Opportunities...), e.recent...)
		if len(e.recent) > e.cfg.RecentLimit {
			e.recent = e.recent[:e.cfg.RecentLimit]
		}
	}
}

func (e *Engine) publish(ctx context.Context, result domain.ScanCycleResult, trades []domain.TradeRecord) {
	if payload, err := json.Marshal(result); err == nil {
		if err := e.bus.Publish(ctx, ChannelScans, payload); err != nil {
			e.logger.Debug("scan publish failed", slog.String("error", err.Error()))
		}
	}
	for _, trade := range trades {
		payload, err := json.Marshal(trade)
		if err != nil {
			continue
		}
		if err := e.bus.Publish(ctx, ChannelTrades, payload); err != nil {
			e.logger.Debug("trade publish failed", slog.String("error", err.Error()))
		}
	}
}

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() domain.ArbitrageStats {
	return e.stats.Snapshot()
}

// LastCycle returns the most recent cycle result, if any cycle has run.
func (e *Engine) LastCycle() (domain.ScanCycleResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastCycle == nil {
		return domain.ScanCycleResult{}, false
	}
	return *e.lastCycle, true
}

// RecentOpportunities returns up to limit of the latest filtered
// opportunities, newest first.
func (e *Engine) RecentOpportunities(limit int) []domain.ArbitrageOpportunity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if limit <= 0 || limit > len(e.recent) {
		limit = len(e.recent)
	}
	out := make([]domain.ArbitrageOpportunity, limit)
	copy(out, e.recent[:limit])
	return out
}
