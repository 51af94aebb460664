package domain

import (
	"context"
	"time"
)

// StateStore is the shared state held outside the process: capital
// allocation, engine statistics, the bounded trade journal, and component
// heartbeats. Implementations decide durability; statistics carry a fixed
// expiry so a dead bot's numbers age out.
type StateStore interface {
	SaveStats(ctx context.Context, stats ArbitrageStats) error
	LoadStats(ctx context.Context) (ArbitrageStats, error)

	SaveAllocation(ctx context.Context, alloc Allocation) error
	LoadAllocation(ctx context.Context) (Allocation, error)

	AppendTrade(ctx context.Context, trade TradeRecord) error
	RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error)

	Heartbeat(ctx context.Context, component string, at time.Time) error
	Heartbeats(ctx context.Context) (map[string]time.Time, error)

	Close() error
}

// SignalBus fans engine events out to observers (WebSocket hub, dashboards).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
