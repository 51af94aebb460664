// Package fees maps venue identifiers to taker fee percentages. Every
// detector prices profitability through the same model so opportunities from
// different strategies rank on comparable numbers.
package fees

import "strings"

// takerPct is the stock taker-fee schedule, in percent per leg.
var takerPct = map[string]float64{
	"binance": 0.075,
	"bybit":   0.075,
	"okx":     0.08,
	"kucoin":  0.10,
	"mexc":    0.10,
}

// Model resolves a venue's taker fee with per-venue overrides on top of the
// stock schedule. Unknown venues get the conservative default — a venue is
// never assumed to trade for free.
type Model struct {
	defaultPct float64
	overrides  map[string]float64
}

// NewModel builds a fee model. overridesPct (percent, keyed by venue) wins
// over the stock schedule; defaultPct applies to venues in neither.
func NewModel(defaultPct float64, overridesPct map[string]float64) *Model {
	m := &Model{
		defaultPct: defaultPct,
		overrides:  make(map[string]float64, len(overridesPct)),
	}
	for venue, pct := range overridesPct {
		m.overrides[strings.ToLower(venue)] = pct
	}
	return m
}

// TakerFeePct returns the taker fee for one leg on venue, in percent.
func (m *Model) TakerFeePct(venue string) float64 {
	key := strings.ToLower(venue)
	if pct, ok := m.overrides[key]; ok {
		return pct
	}
	if pct, ok := takerPct[key]; ok {
		return pct
	}
	return m.defaultPct
}

// RoundTripPct returns the combined taker fee of buying on one venue and
// selling on another, in percent.
func (m *Model) RoundTripPct(buyVenue, sellVenue string) float64 {
	return m.TakerFeePct(buyVenue) + m.TakerFeePct(sellVenue)
}
