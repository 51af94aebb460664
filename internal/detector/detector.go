// Package detector provides the arbitrage strategy detectors -- cross-exchange,
// triangular, funding-rate and stablecoin-depeg -- and a registry the scan
// engine runs them from.
package detector

import (
	"context"
	"sort"
	"sync"

	"github.com/coinarb/arbot/internal/domain"
)

// Detector is one arbitrage strategy. Detect returns zero or more
// opportunities from current venue data; a detector that finds nothing
// returns (nil, nil). Detectors never abort a scan cycle: venue-level
// failures are degraded to skipped symbols or venues internally.
type Detector interface {
	Name() string
	Detect(ctx context.Context) ([]domain.ArbitrageOpportunity, error)
}

// Registry holds the enabled detectors for a scan engine.
type Registry struct {
	detectors map[string]Detector
	mu        sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add detectors.
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]Detector)}
}

// Register adds a detector under its own name.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[d.Name()] = d
}

// List returns all registered detectors sorted by name, so scan cycles
// visit them in a stable order.
func (r *Registry) List() []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.detectors))
	for n := range r.detectors {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Detector, 0, len(names))
	for _, n := range names {
		out = append(out, r.detectors[n])
	}
	return out
}

// Len reports how many detectors are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.detectors)
}
