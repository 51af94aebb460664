// Package venue provides uniform adapters for the exchanges the bot scans.
// Each adapter isolates one venue's API quirks behind the Venue interface:
// detectors see typed errors and normalized tickers, never raw HTTP.
package venue

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/coinarb/arbot/internal/domain"
)

// Venue is one connected exchange. Implementations apply their own per-call
// timeout and map transport failures to domain sentinels; they never retry —
// the next scan cycle is the retry.
type Venue interface {
	Name() string
	FetchTicker(ctx context.Context, symbol string) (domain.VenueTicker, error)
	FetchMarkets(ctx context.Context) ([]domain.Market, error)
	FetchFundingRate(ctx context.Context, symbol string) (domain.FundingRate, error)
}

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderPlacer is implemented by venues that support live order execution.
// quoteAmount is denominated in the quote currency of the symbol.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quoteAmount float64) (orderID string, err error)
}

// Registry holds the connected venues by name.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]Venue
}

// NewRegistry creates an empty venue registry.
func NewRegistry() *Registry {
	return &Registry{venues: make(map[string]Venue)}
}

// Register adds a venue, replacing any previous adapter with the same name.
func (r *Registry) Register(v Venue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues[strings.ToLower(v.Name())] = v
}

// Get returns the venue with the given name.
func (r *Registry) Get(name string) (Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("venue %q: %w", name, domain.ErrNotFound)
	}
	return v, nil
}

// List returns all registered venues sorted by name, for deterministic
// iteration order across scan cycles.
func (r *Registry) List() []Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.venues))
	for name := range r.venues {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Venue, 0, len(names))
	for _, name := range names {
		out = append(out, r.venues[name])
	}
	return out
}

// Len returns the number of registered venues.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.venues)
}

// --------------------------------------------------------------------------
// Shared symbol and parsing helpers
// --------------------------------------------------------------------------

// compactSymbol turns "BTC/USDT" into "BTCUSDT" (binance, bybit, mexc form).
func compactSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// dashSymbol turns "BTC/USDT" into "BTC-USDT" (okx form).
func dashSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

// splitSymbol returns the base and quote assets of "BASE/QUOTE".
func splitSymbol(symbol string) (base, quote string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return symbol, ""
	}
	return parts[0], parts[1]
}

// parsePrice parses a decimal string field from a venue response. Venues
// serialize every number as a string; a field that fails to parse means the
// response shape changed and the ticker cannot be trusted.
func parsePrice(venue, field, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parse %s %q: %w", venue, field, value, err)
	}
	return f, nil
}

// parseOptional parses a decimal string, treating empty or malformed values
// as zero. Used for fields like 24h volume where a missing number degrades
// an opportunity's max size rather than invalidating the ticker.
func parseOptional(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
