package report

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinarb/arbot/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSummary(t *testing.T) {
	stats := domain.ArbitrageStats{
		TotalScans:         2880,
		TotalOpportunities: 31,
		TotalExecuted:      9,
		TotalProfit:        14.52,
	}
	alloc := &domain.Allocation{
		TradingPct:   40,
		ArbitragePct: 40,
		ReservePct:   20,
		TotalCapital: 10000,
	}
	trades := []domain.TradeRecord{
		{Symbol: "BTC/USDT", Kind: domain.KindCrossExchange, Size: 101, EstimatedProfit: 0.16, Mode: domain.ModePaper},
	}

	got := BuildSummary(4*time.Hour, stats, alloc, trades)

	want := "uptime: 4h0m0s\n" +
		"scans: 2880 | opportunities: 31 | executed: 9\n" +
		"est. profit: $+14.52\n" +
		"allocation: arbitrage 40% / trading 40% / reserve 20% of $10000.00\n" +
		"recent trades:\n" +
		"- BTC/USDT cross_exchange $101.00 est $+0.16 [paper]"
	assert.Equal(t, want, got)
}

func TestBuildSummaryEmptySession(t *testing.T) {
	got := BuildSummary(30*time.Second, domain.ArbitrageStats{}, nil, nil)

	want := "uptime: 30s\n" +
		"scans: 0 | opportunities: 0 | executed: 0\n" +
		"est. profit: $+0.00\n" +
		"allocation: not set\n" +
		"recent trades: none"
	assert.Equal(t, want, got)
}

type beatStore struct {
	beats    map[string]time.Time
	recorded []string
}

func (s *beatStore) Heartbeat(ctx context.Context, component string, at time.Time) error {
	s.recorded = append(s.recorded, component)
	return nil
}

func (s *beatStore) Heartbeats(ctx context.Context) (map[string]time.Time, error) {
	return s.beats, nil
}

type warnCounter struct {
	warnings map[string]int
}

func (w *warnCounter) HealthWarning(ctx context.Context, component string, staleFor time.Duration) error {
	if w.warnings == nil {
		w.warnings = make(map[string]int)
	}
	w.warnings[component]++
	return nil
}

func TestMonitorAlertsOncePerStall(t *testing.T) {
	store := &beatStore{beats: map[string]time.Time{
		"engine":    time.Now().Add(-10 * time.Minute),
		"allocator": time.Now(),
	}}
	alerts := &warnCounter{}
	m := NewMonitor(store, alerts, []string{"engine", "allocator"}, time.Minute, 5*time.Minute, discard())

	ctx := context.Background()
	m.CheckOnce(ctx)
	m.CheckOnce(ctx)

	assert.Equal(t, 1, alerts.warnings["engine"], "one alert per stall, not one per check")
	assert.Zero(t, alerts.warnings["allocator"], "fresh component stays quiet")
	assert.Contains(t, store.recorded, "health", "monitor heartbeats itself")
}

func TestMonitorRearmsAfterRecovery(t *testing.T) {
	store := &beatStore{beats: map[string]time.Time{
		"engine": time.Now().Add(-10 * time.Minute),
	}}
	alerts := &warnCounter{}
	m := NewMonitor(store, alerts, []string{"engine"}, time.Minute, 5*time.Minute, discard())

	ctx := context.Background()
	m.CheckOnce(ctx)
	require.Equal(t, 1, alerts.warnings["engine"])

	// Recovery clears the latch.
	store.beats["engine"] = time.Now()
	m.CheckOnce(ctx)
	assert.Equal(t, 1, alerts.warnings["engine"])

	// A second stall alerts again.
	store.beats["engine"] = time.Now().Add(-10 * time.Minute)
	m.CheckOnce(ctx)
	assert.Equal(t, 2, alerts.warnings["engine"])
}

func TestMonitorFlagsComponentThatNeverBeat(t *testing.T) {
	store := &beatStore{beats: map[string]time.Time{}}
	alerts := &warnCounter{}
	m := NewMonitor(store, alerts, []string{"engine"}, time.Minute, time.Millisecond, discard())

	time.Sleep(10 * time.Millisecond)
	m.CheckOnce(context.Background())
	assert.Equal(t, 1, alerts.warnings["engine"])
}

func TestMonitorSurvivesExpiredStoreKeys(t *testing.T) {
	// The store aged the key out, but the monitor remembers the last beat it
	// saw and measures staleness from there.
	store := &beatStore{beats: map[string]time.Time{
		"engine": time.Now().Add(-10 * time.Minute),
	}}
	alerts := &warnCounter{}
	m := NewMonitor(store, alerts, []string{"engine"}, time.Minute, 5*time.Minute, discard())

	ctx := context.Background()
	m.CheckOnce(ctx)
	require.Equal(t, 1, alerts.warnings["engine"])

	store.beats = map[string]time.Time{}
	m.CheckOnce(ctx)
	assert.Equal(t, 1, alerts.warnings["engine"], "expiry does not reset the latch")
}
