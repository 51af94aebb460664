package domain

import "time"

// Allocation splits total capital across the bot's desks, in percent.
// The arbitrage engine only ever reads it; the allocator owns writes.
type Allocation struct {
	TradingPct   float64   `json:"trading_pct"`
	ArbitragePct float64   `json:"arbitrage_pct"`
	ReservePct   float64   `json:"reserve_pct"`
	TotalCapital float64   `json:"total_capital"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ArbitrageBudget is the absolute quote-currency budget the engine may
// deploy in one cycle.
func (a Allocation) ArbitrageBudget() float64 {
	return a.TotalCapital * a.ArbitragePct / 100
}
