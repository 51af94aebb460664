package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinarb/arbot/internal/detector"
	"github.com/coinarb/arbot/internal/domain"
)

var detectedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubDetector struct {
	name  string
	opps  []domain.ArbitrageOpportunity
	err   error
	calls int
}

func (d *stubDetector) Name() string { return d.name }

func (d *stubDetector) Detect(context.Context) ([]domain.ArbitrageOpportunity, error) {
	d.calls++
	return d.opps, d.err
}

type stubBudget struct {
	amount float64
	err    error
}

func (b *stubBudget) ArbitrageBudget(context.Context) (float64, error) {
	return b.amount, b.err
}

// captureStore satisfies CycleStore and TradeJournal and records every call.
type captureStore struct {
	mu       sync.Mutex
	stats    []domain.ArbitrageStats
	trades   []domain.TradeRecord
	beats    []string
	statsErr error
}

func (s *captureStore) SaveStats(_ context.Context, stats domain.ArbitrageStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, stats)
	return s.statsErr
}

func (s *captureStore) Heartbeat(_ context.Context, component string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats = append(s.beats, component)
	return nil
}

func (s *captureStore) AppendTrade(_ context.Context, trade domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

type captureExecutor struct {
	mu        sync.Mutex
	sizes     []float64
	executed  []string
	calls     int
	failFirst bool
}

func (e *captureExecutor) Execute(_ context.Context, opp domain.ArbitrageOpportunity, size float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failFirst && e.calls == 1 {
		return errors.New("venue rejected order")
	}
	e.sizes = append(e.sizes, size)
	e.executed = append(e.executed, opp.ID)
	return nil
}

func (e *captureExecutor) Mode() domain.ExecutionMode { return domain.ModePaper }

type captureAlerter struct {
	executed []string
	failed   []string
}

func (a *captureAlerter) TradeExecuted(_ context.Context, trade domain.TradeRecord, _ domain.ArbitrageOpportunity) error {
	a.executed = append(a.executed, trade.OpportunityID)
	return nil
}

func (a *captureAlerter) TradeFailed(_ context.Context, opp domain.ArbitrageOpportunity, _ float64, _ error) error {
	a.failed = append(a.failed, opp.ID)
	return nil
}

type captureBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *captureBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func mkOpp(id string, netPct, maxSize, confidence float64) domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		ID:           id,
		Kind:         domain.KindCrossExchange,
		Symbol:       "BTC/USDT",
		BuyVenue:     "alpha",
		SellVenue:    "beta",
		NetProfitPct: netPct,
		MaxSize:      maxSize,
		Confidence:   confidence,
		DetectedAt:   detectedAt,
	}
}

type testRig struct {
	engine   *Engine
	store    *captureStore
	executor *captureExecutor
	alerter  *captureAlerter
	bus      *captureBus
	stats    *Stats
}

func newRig(budget BudgetSource, dets ...detector.Detector) *testRig {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := detector.NewRegistry()
	for _, d := range dets {
		registry.Register(d)
	}
	store := &captureStore{}
	executor := &captureExecutor{}
	alerter := &captureAlerter{}
	bus := &captureBus{}
	stats := NewStats()
	gate := NewGate(GateConfig{
		MaxExecutions:  3,
		MinConfidence:  0.7,
		BudgetFraction: 0.1,
		MinTradeSize:   10,
	}, executor, store, alerter, stats, logger)
	eng := New(Config{
		ScanInterval: 5 * time.Millisecond,
		MinProfitPct: 0.1,
	}, registry, budget, gate, store, bus, stats, logger)
	return &testRig{engine: eng, store: store, executor: executor, alerter: alerter, bus: bus, stats: stats}
}

func TestScanSkipsWhenNoBudget(t *testing.T) {
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{mkOpp("x", 1, 500, 0.9)}}
	rig := newRig(&stubBudget{amount: 0}, det)

	result := rig.engine.ScanOnce(context.Background())

	assert.True(t, result.Skipped)
	assert.Zero(t, result.BudgetSnapshot)
	assert.Zero(t, det.calls, "detectors must not run without budget")
	assert.Empty(t, rig.store.stats, "skipped cycles persist nothing")
	assert.Equal(t, int64(1), rig.engine.Stats().TotalScans, "skipped cycles still count as scans")
	assert.Equal(t, []string{"engine"}, rig.store.beats)
}

func TestScanTreatsBudgetErrorAsZero(t *testing.T) {
	det := &stubDetector{name: "a"}
	rig := newRig(&stubBudget{err: domain.ErrStateUnavailable}, det)

	result := rig.engine.ScanOnce(context.Background())

	assert.True(t, result.Skipped)
	assert.Zero(t, result.BudgetSnapshot)
	assert.Zero(t, det.calls)
}

func TestScanFiltersAndRanksByNetProfit(t *testing.T) {
	detA := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("mid", 0.5, 500, 0.9),
		mkOpp("dust", 0.05, 500, 0.9), // below the 0.1 net floor
	}}
	detB := &stubDetector{name: "b", opps: []domain.ArbitrageOpportunity{
		mkOpp("low", 0.3, 500, 0.9),
		mkOpp("high", 0.9, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, detA, detB)

	result := rig.engine.ScanOnce(context.Background())

	assert.Equal(t, 4, result.Considered)
	require.Len(t, result.Opportunities, 3)
	assert.Equal(t, "high", result.Opportunities[0].ID)
	assert.Equal(t, "mid", result.Opportunities[1].ID)
	assert.Equal(t, "low", result.Opportunities[2].ID)
	assert.Equal(t, int64(3), rig.engine.Stats().TotalOpportunities, "only survivors are counted")
	require.Len(t, rig.store.stats, 1, "stats persist once per cycle")
}

func TestScanToleratesDetectorFailure(t *testing.T) {
	broken := &stubDetector{name: "broken", err: errors.New("venue melted")}
	healthy := &stubDetector{name: "healthy", opps: []domain.ArbitrageOpportunity{
		mkOpp("ok", 0.5, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, broken, healthy)

	result := rig.engine.ScanOnce(context.Background())

	assert.Equal(t, 1, result.Considered)
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, "ok", result.Opportunities[0].ID)
}

func TestGateSizesAgainstRemainingBudget(t *testing.T) {
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("one", 1.0, 500, 0.9),
		mkOpp("two", 1.0, 500, 0.9),
		mkOpp("three", 1.0, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, det)

	result := rig.engine.ScanOnce(context.Background())

	require.Len(t, rig.executor.sizes, 3)
	assert.InDelta(t, 100.0, rig.executor.sizes[0], 1e-9, "ten percent of 1000")
	assert.InDelta(t, 90.0, rig.executor.sizes[1], 1e-9, "ten percent of the remaining 900")
	assert.InDelta(t, 81.0, rig.executor.sizes[2], 1e-9, "ten percent of the remaining 810")

	var committed float64
	for _, s := range rig.executor.sizes {
		committed += s
	}
	assert.LessOrEqual(t, committed, 1000.0, "the cycle can never overspend its snapshot")

	assert.Equal(t, 3, result.Executed)
	assert.InDelta(t, 2.71, result.EstimatedProfit, 1e-9)
	assert.Equal(t, int64(3), rig.engine.Stats().TotalExecuted)
	assert.InDelta(t, 2.71, rig.engine.Stats().TotalProfit, 1e-9)
	assert.Len(t, rig.store.trades, 3)
	assert.Len(t, rig.alerter.executed, 3)
}

func TestGateSkipsDustWithoutConsumingBudget(t *testing.T) {
	// First candidate sizes to 5, below the $10 floor. If skipping consumed
	// budget the second candidate would size to 9.60 and be skipped too.
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("tiny", 2.0, 5, 0.9),
		mkOpp("fine", 1.0, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 101}, det)

	result := rig.engine.ScanOnce(context.Background())

	require.Len(t, rig.executor.sizes, 1)
	assert.Equal(t, []string{"fine"}, rig.executor.executed)
	assert.InDelta(t, 10.1, rig.executor.sizes[0], 1e-9)
	assert.Equal(t, 1, result.Executed)
}

func TestGateHonorsConfidenceInsideWindowOnly(t *testing.T) {
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("first", 2.0, 500, 0.9),
		mkOpp("timid", 1.5, 500, 0.5), // inside window, low confidence
		mkOpp("third", 1.2, 500, 0.9),
		mkOpp("fourth", 1.1, 500, 0.95), // confident but outside the top 3
	}}
	rig := newRig(&stubBudget{amount: 1000}, det)

	rig.engine.ScanOnce(context.Background())

	assert.Equal(t, []string{"first", "third"}, rig.executor.executed)
	require.Len(t, rig.executor.sizes, 2)
	assert.InDelta(t, 100.0, rig.executor.sizes[0], 1e-9)
	assert.InDelta(t, 90.0, rig.executor.sizes[1], 1e-9, "the skipped candidate consumed nothing")
}

func TestGateKeepsReservationWhenExecutionFails(t *testing.T) {
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("doomed", 2.0, 500, 0.9),
		mkOpp("fine", 1.0, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, det)
	rig.executor.failFirst = true

	result := rig.engine.ScanOnce(context.Background())

	assert.Equal(t, []string{"fine"}, rig.executor.executed)
	require.Len(t, rig.executor.sizes, 1)
	assert.InDelta(t, 90.0, rig.executor.sizes[0], 1e-9, "the failed attempt still reserved its 100")
	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, []string{"doomed"}, rig.alerter.failed)
	assert.Equal(t, int64(1), rig.engine.Stats().TotalExecuted)
	assert.Len(t, rig.store.trades, 1)
}

func TestScanPublishesCycleAndTrades(t *testing.T) {
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("one", 1.0, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, det)

	rig.engine.ScanOnce(context.Background())

	require.Len(t, rig.bus.published[ChannelScans], 1)
	var cycle domain.ScanCycleResult
	require.NoError(t, json.Unmarshal(rig.bus.published[ChannelScans][0], &cycle))
	assert.Equal(t, 1, cycle.Executed)

	require.Len(t, rig.bus.published[ChannelTrades], 1)
	var trade domain.TradeRecord
	require.NoError(t, json.Unmarshal(rig.bus.published[ChannelTrades][0], &trade))
	assert.Equal(t, "one", trade.OpportunityID)
	assert.Equal(t, domain.ModePaper, trade.Mode)
}

func TestScanRetriesStatsPersistNextCycle(t *testing.T) {
	det := &stubDetector{name: "a"}
	rig := newRig(&stubBudget{amount: 1000}, det)
	rig.store.statsErr = domain.ErrStateUnavailable

	rig.engine.ScanOnce(context.Background())
	rig.engine.ScanOnce(context.Background())

	assert.Len(t, rig.store.stats, 2, "every cycle retries the persist")
}

func TestStatsStayMonotonic(t *testing.T) {
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("one", 1.0, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, det)

	var prev domain.ArbitrageStats
	for i := 0; i < 3; i++ {
		rig.engine.ScanOnce(context.Background())
		snap := rig.engine.Stats()
		assert.GreaterOrEqual(t, snap.TotalScans, prev.TotalScans)
		assert.GreaterOrEqual(t, snap.TotalOpportunities, prev.TotalOpportunities)
		assert.GreaterOrEqual(t, snap.TotalExecuted, prev.TotalExecuted)
		assert.GreaterOrEqual(t, snap.TotalProfit, prev.TotalProfit)
		prev = snap
	}
	assert.Equal(t, int64(3), prev.TotalScans)
}

func TestStatsSnapshotsAreIsolated(t *testing.T) {
	stats := NewStats()
	stats.RecordScan(detectedAt)
	stats.RecordExecution(2.5)

	before := stats.Snapshot()
	stats.RecordScan(detectedAt.Add(5 * time.Second))
	stats.RecordOpportunities(4)

	assert.Equal(t, int64(1), before.TotalScans, "earlier snapshot does not move")
	assert.Zero(t, before.TotalOpportunities)
	assert.Equal(t, detectedAt, before.LastScan)

	after := stats.Snapshot()
	assert.Equal(t, int64(2), after.TotalScans)
	assert.Equal(t, int64(4), after.TotalOpportunities)
	assert.InDelta(t, 2.5, after.TotalProfit, 1e-9)
}

func TestScanIsDeterministicOnReplayedData(t *testing.T) {
	// Opportunity IDs derive from snapshot timestamps, so replaying the
	// same data produces identical rankings and identifiers.
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("cross_exchange_BTC/USDT_alpha_beta_1748779200000", 1.0, 500, 0.9),
		mkOpp("cross_exchange_ETH/USDT_alpha_beta_1748779200000", 0.5, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, det)

	first := rig.engine.ScanOnce(context.Background())
	second := rig.engine.ScanOnce(context.Background())

	require.Equal(t, len(first.Opportunities), len(second.Opportunities))
	for i := range first.Opportunities {
		assert.Equal(t, first.Opportunities[i].ID, second.Opportunities[i].ID)
		assert.Equal(t, first.Opportunities[i].NetProfitPct, second.Opportunities[i].NetProfitPct)
	}
}

func TestEngineServesRecentAndLastCycle(t *testing.T) {
	det := &stubDetector{name: "a", opps: []domain.ArbitrageOpportunity{
		mkOpp("one", 1.0, 500, 0.9),
		mkOpp("two", 0.5, 500, 0.9),
	}}
	rig := newRig(&stubBudget{amount: 1000}, det)

	_, ok := rig.engine.LastCycle()
	assert.False(t, ok, "no cycle has run yet")

	rig.engine.ScanOnce(context.Background())

	last, ok := rig.engine.LastCycle()
	require.True(t, ok)
	assert.Len(t, last.Opportunities, 2)

	recent := rig.engine.RecentOpportunities(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "one", recent[0].ID, "newest first, best ranked first")

	all := rig.engine.RecentOpportunities(0)
	assert.Len(t, all, 2)
}

func TestRunLoopIdlesWithoutDetectors(t *testing.T) {
	rig := newRig(&stubBudget{amount: 1000})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := rig.engine.RunLoop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, rig.engine.Stats().TotalScans, "disabled engine runs no cycles")
}

func TestRunLoopScansImmediatelyThenOnTicks(t *testing.T) {
	det := &stubDetector{name: "a"}
	rig := newRig(&stubBudget{amount: 1000}, det)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := rig.engine.RunLoop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, rig.engine.Stats().TotalScans, int64(2), "immediate scan plus at least one tick")
}
