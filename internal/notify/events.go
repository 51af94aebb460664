package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coinarb/arbot/internal/domain"
)

// Alerts wraps a Notifier with the bot's concrete alert vocabulary. Every
// title carries the execution mode so a paper deployment is never mistaken
// for a live one in a shared chat.
type Alerts struct {
	n    *Notifier
	mode domain.ExecutionMode
}

// NewAlerts binds the notifier to the process's execution mode.
func NewAlerts(n *Notifier, mode domain.ExecutionMode) *Alerts {
	return &Alerts{n: n, mode: mode}
}

func (a *Alerts) title(s string) string {
	return fmt.Sprintf("%s [%s]", s, a.mode)
}

// Startup announces the bot coming up with its scan surface and capital.
func (a *Alerts) Startup(ctx context.Context, venues, symbols []string, totalCapital float64) error {
	msg := fmt.Sprintf("venues: %s\nsymbols: %s\ncapital: $%.2f",
		strings.Join(venues, ", "),
		strings.Join(symbols, ", "),
		totalCapital,
	)
	return a.n.Notify(ctx, EventStartup, a.title("arbot started"), msg)
}

// Shutdown summarizes the session on the way out.
func (a *Alerts) Shutdown(ctx context.Context, uptime time.Duration, stats domain.ArbitrageStats) error {
	msg := fmt.Sprintf("uptime: %s\nscans: %d\nopportunities: %d\nexecuted: %d\nest. profit: $%+.2f",
		uptime.Round(time.Second),
		stats.TotalScans,
		stats.TotalOpportunities,
		stats.TotalExecuted,
		stats.TotalProfit,
	)
	return a.n.Notify(ctx, EventShutdown, a.title("arbot stopped"), msg)
}

// TradeExecuted announces one settled opportunity.
func (a *Alerts) TradeExecuted(ctx context.Context, trade domain.TradeRecord, opp domain.ArbitrageOpportunity) error {
	msg := fmt.Sprintf(
		"type: %s\nsymbol: %s\nbuy: %s @ $%.4f\nsell: %s @ $%.4f\nspread: %.3f%%\nsize: $%.2f\nest. profit: $%+.2f",
		opp.Kind,
		opp.Symbol,
		opp.BuyVenue, opp.BuyPrice,
		opp.SellVenue, opp.SellPrice,
		opp.SpreadPct,
		trade.Size,
		trade.EstimatedProfit,
	)
	return a.n.Notify(ctx, EventExecuted, a.title("arbitrage executed"), msg)
}

// TradeFailed reports an execution attempt that errored. In live mode this
// can mean a one-sided position that needs manual attention.
func (a *Alerts) TradeFailed(ctx context.Context, opp domain.ArbitrageOpportunity, size float64, execErr error) error {
	msg := fmt.Sprintf("type: %s\nsymbol: %s\nvenues: %s -> %s\nsize: $%.2f\nerror: %s",
		opp.Kind,
		opp.Symbol,
		opp.BuyVenue, opp.SellVenue,
		size,
		execErr,
	)
	return a.n.Notify(ctx, EventFailed, a.title("execution failed"), msg)
}

// AllocationUpdated reports the new capital split after a rebalance.
func (a *Alerts) AllocationUpdated(ctx context.Context, alloc domain.Allocation) error {
	msg := fmt.Sprintf(
		"arbitrage: %.0f%% ($%.2f)\ntrading: %.0f%% ($%.2f)\nreserve: %.0f%% ($%.2f)",
		alloc.ArbitragePct, alloc.TotalCapital*alloc.ArbitragePct/100,
		alloc.TradingPct, alloc.TotalCapital*alloc.TradingPct/100,
		alloc.ReservePct, alloc.TotalCapital*alloc.ReservePct/100,
	)
	return a.n.Notify(ctx, EventAllocation, a.title("allocation rebalanced"), msg)
}

// Report forwards the periodic summary composed by the report scheduler.
func (a *Alerts) Report(ctx context.Context, body string) error {
	return a.n.Notify(ctx, EventReport, a.title("periodic report"), body)
}

// HealthWarning reports a component loop that has stopped heartbeating.
func (a *Alerts) HealthWarning(ctx context.Context, component string, staleFor time.Duration) error {
	msg := fmt.Sprintf("component: %s\nlast heartbeat: %s ago\ncheck the logs", component, staleFor.Round(time.Second))
	return a.n.Notify(ctx, EventHealth, a.title("component stalled"), msg)
}
