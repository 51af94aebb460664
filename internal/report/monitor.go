package report

import (
	"context"
	"log/slog"
	"time"
)

// HeartbeatStore is the slice of the state store the monitor needs.
type HeartbeatStore interface {
	Heartbeat(ctx context.Context, component string, at time.Time) error
	Heartbeats(ctx context.Context) (map[string]time.Time, error)
}

// HealthAlerter is told when a watched loop stalls.
type HealthAlerter interface {
	HealthWarning(ctx context.Context, component string, staleFor time.Duration) error
}

// Monitor watches the loop heartbeats and alerts when one goes stale. Each
// stall is alerted once; the slot re-arms when the component beats again.
type Monitor struct {
	store      HeartbeatStore
	alerts     HealthAlerter
	watch      []string
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger

	startedAt time.Time
	lastSeen  map[string]time.Time // survives heartbeat key expiry in the store
	warned    map[string]bool
}

// NewMonitor creates a monitor for the named components.
func NewMonitor(store HeartbeatStore, alerts HealthAlerter, watch []string, interval, staleAfter time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:      store,
		alerts:     alerts,
		watch:      watch,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger.With(slog.String("component", "health")),
		startedAt:  time.Now().UTC(),
		lastSeen:   make(map[string]time.Time),
		warned:     make(map[string]bool),
	}
}

// RunLoop checks immediately, then on every tick, until the context ends.
func (m *Monitor) RunLoop(ctx context.Context) error {
	m.logger.Info("health monitor started",
		slog.Duration("interval", m.interval),
		slog.Duration("stale_after", m.staleAfter),
	)

	m.CheckOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs one liveness pass.
func (m *Monitor) CheckOnce(ctx context.Context) {
	now := time.Now().UTC()
	if err := m.store.Heartbeat(ctx, "health", now); err != nil {
		m.logger.WarnContext(ctx, "heartbeat failed", slog.String("error", err.Error()))
	}

	beats, err := m.store.Heartbeats(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "read heartbeats failed", slog.String("error", err.Error()))
		return
	}

	for _, component := range m.watch {
		if at, ok := beats[component]; ok {
			m.lastSeen[component] = at
		}
		last, seen := m.lastSeen[component]
		if !seen {
			// Never beat: measure from monitor start so a loop that dies
			// before its first beat still gets flagged.
			last = m.startedAt
		}

		staleFor := now.Sub(last)
		if staleFor <= m.staleAfter {
			delete(m.warned, component)
			continue
		}
		if m.warned[component] {
			continue
		}
		m.warned[component] = true

		m.logger.WarnContext(ctx, "component stalled",
			slog.String("stalled", component),
			slog.Duration("stale_for", staleFor),
		)
		if err := m.alerts.HealthWarning(ctx, component, staleFor); err != nil {
			m.logger.WarnContext(ctx, "health alert failed", slog.String("error", err.Error()))
		}
	}
}
