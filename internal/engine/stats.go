package engine

import (
	"sync"
	"time"

	"github.com/coinarb/arbot/internal/domain"
)

// Stats is the engine's counter accumulator. Only the scan cycle and the
// execution gate write to it; everyone else reads snapshots. Counters never
// decrease within a process lifetime.
type Stats struct {
	mu    sync.Mutex
	inner domain.ArbitrageStats
}

// NewStats returns a zeroed accumulator.
func NewStats() *Stats {
	return &Stats{}
}

// RecordScan counts a cycle start. Skipped cycles count too.
func (s *Stats) RecordScan(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.TotalScans++
	s.inner.LastScan = at
}

// RecordOpportunities counts post-filter opportunities from one cycle.
func (s *Stats) RecordOpportunities(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.TotalOpportunities += int64(n)
}

// RecordExecution counts one executed trade and its estimated profit.
func (s *Stats) RecordExecution(estProfit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.TotalExecuted++
	s.inner.TotalProfit += estProfit
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() domain.ArbitrageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner
}
