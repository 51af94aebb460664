// Package report runs the recurring operational jobs: the periodic summary
// pushed to the notifier, the daily market catalogue check, and the loop
// liveness monitor.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coinarb/arbot/internal/domain"
	"github.com/coinarb/arbot/internal/venue"
)

// StatsSource is the live engine counters, not the persisted snapshot.
type StatsSource interface {
	Stats() domain.ArbitrageStats
}

// StateReader reads the shared state the summary reports on.
type StateReader interface {
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
	LoadAllocation(ctx context.Context) (domain.Allocation, error)
}

// Alerter delivers the composed report.
type Alerter interface {
	Report(ctx context.Context, body string) error
}

// Config schedules the jobs. Both specs are standard five-field cron lines
// evaluated in UTC.
type Config struct {
	ReportCron        string
	MarketRefreshCron string
	Symbols           []string
	MinVolume24h      float64
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cfg       Config
	cron      *cron.Cron
	stats     StatsSource
	state     StateReader
	venues    *venue.Registry
	alerts    Alerter
	logger    *slog.Logger
	startedAt time.Time
}

// NewScheduler creates the scheduler; Start registers and runs the jobs.
func NewScheduler(cfg Config, stats StatsSource, state StateReader, venues *venue.Registry, alerts Alerter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		stats:     stats,
		state:     state,
		venues:    venues,
		alerts:    alerts,
		logger:    logger.With(slog.String("component", "report")),
		startedAt: time.Now().UTC(),
	}
}

// Start registers the cron entries and starts the runner. The context is
// captured by the jobs so shutdown cancels in-flight venue calls.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.ReportCron, func() { s.sendReport(ctx) }); err != nil {
		return fmt.Errorf("report: schedule %q: %w", s.cfg.ReportCron, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.MarketRefreshCron, func() { s.RefreshMarkets(ctx) }); err != nil {
		return fmt.Errorf("report: schedule %q: %w", s.cfg.MarketRefreshCron, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.String("report_cron", s.cfg.ReportCron),
		slog.String("market_refresh_cron", s.cfg.MarketRefreshCron),
	)
	return nil
}

// Stop halts the runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendReport(ctx context.Context) {
	body := s.compose(ctx)
	if err := s.alerts.Report(ctx, body); err != nil {
		s.logger.WarnContext(ctx, "report delivery failed", slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "report sent")
}

func (s *Scheduler) compose(ctx context.Context) string {
	stats := s.stats.Stats()

	var alloc *domain.Allocation
	if a, err := s.state.LoadAllocation(ctx); err == nil {
		alloc = &a
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "report: load allocation failed", slog.String("error", err.Error()))
	}

	trades, err := s.state.RecentTrades(ctx, 5)
	if err != nil {
		s.logger.WarnContext(ctx, "report: recent trades failed", slog.String("error", err.Error()))
	}

	return BuildSummary(time.Since(s.startedAt), stats, alloc, trades)
}

// BuildSummary renders the periodic report body. Kept pure so the format is
// testable without a scheduler.
func BuildSummary(uptime time.Duration, stats domain.ArbitrageStats, alloc *domain.Allocation, trades []domain.TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "uptime: %s\n", uptime.Round(time.Second))
	fmt.Fprintf(&b, "scans: %d | opportunities: %d | executed: %d\n",
		stats.TotalScans, stats.TotalOpportunities, stats.TotalExecuted)
	fmt.Fprintf(&b, "est. profit: $%+.2f\n", stats.TotalProfit)

	if alloc != nil {
		fmt.Fprintf(&b, "allocation: arbitrage %.0f%% / trading %.0f%% / reserve %.0f%% of $%.2f\n",
			alloc.ArbitragePct, alloc.TradingPct, alloc.ReservePct, alloc.TotalCapital)
	} else {
		b.WriteString("allocation: not set\n")
	}

	if len(trades) == 0 {
		b.WriteString("recent trades: none")
		return b.String()
	}
	b.WriteString("recent trades:")
	for _, t := range trades {
		fmt.Fprintf(&b, "\n- %s %s $%.2f est $%+.2f [%s]",
			t.Symbol, t.Kind, t.Size, t.EstimatedProfit, t.Mode)
	}
	return b.String()
}

// RefreshMarkets re-pulls every venue's catalogue and warns about configured
// symbols that are delisted, inactive, or too thin to arbitrage. It runs
// once at startup and then on the daily cron.
func (s *Scheduler) RefreshMarkets(ctx context.Context) {
	for _, v := range s.venues.List() {
		markets, err := v.FetchMarkets(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "market refresh failed",
				slog.String("venue", v.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		listed := make(map[string]domain.Market, len(markets))
		for _, m := range markets {
			listed[m.Symbol] = m
		}

		for _, symbol := range s.cfg.Symbols {
			m, ok := listed[symbol]
			if !ok {
				s.logger.WarnContext(ctx, "configured symbol not listed",
					slog.String("venue", v.Name()),
					slog.String("symbol", symbol),
				)
				continue
			}
			if !m.Active {
				s.logger.WarnContext(ctx, "configured symbol inactive",
					slog.String("venue", v.Name()),
					slog.String("symbol", symbol),
				)
				continue
			}
			s.checkLiquidity(ctx, v, symbol)
		}

		s.logger.InfoContext(ctx, "market catalogue refreshed",
			slog.String("venue", v.Name()),
			slog.Int("markets", len(markets)),
		)
	}
}

// checkLiquidity flags symbols whose 24h quote volume sits under the
// configured floor. Thin books make the detectors' size ceilings
// meaningless, so the operator should drop the symbol or the venue.
func (s *Scheduler) checkLiquidity(ctx context.Context, v venue.Venue, symbol string) {
	if s.cfg.MinVolume24h <= 0 {
		return
	}
	tick, err := v.FetchTicker(ctx, symbol)
	if err != nil || tick.QuoteVolume24h <= 0 {
		return
	}
	if tick.QuoteVolume24h < s.cfg.MinVolume24h {
		s.logger.WarnContext(ctx, "thin market",
			slog.String("venue", v.Name()),
			slog.String("symbol", symbol),
			slog.Float64("quote_volume_24h", tick.QuoteVolume24h),
			slog.Float64("min_volume_24h", s.cfg.MinVolume24h),
		)
	}
}
