// Package memory implements the state store and signal bus in process
// memory. It is the degraded fallback when Redis is unreachable at startup:
// the bot keeps scanning and trading, but state dies with the process and
// other instances cannot see it.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/coinarb/arbot/internal/domain"
)

const journalCap = 1000

// Store implements domain.StateStore without any external dependency.
type Store struct {
	mu sync.RWMutex

	stats    domain.ArbitrageStats
	statsSet bool

	alloc    domain.Allocation
	allocSet bool

	trades []domain.TradeRecord // newest first
	beats  map[string]time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{beats: make(map[string]time.Time)}
}

func (s *Store) SaveStats(ctx context.Context, stats domain.ArbitrageStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	s.statsSet = true
	return nil
}

func (s *Store) LoadStats(ctx context.Context) (domain.ArbitrageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.statsSet {
		return domain.ArbitrageStats{}, domain.ErrNotFound
	}
	return s.stats, nil
}

func (s *Store) SaveAllocation(ctx context.Context, alloc domain.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc = alloc
	s.allocSet = true
	return nil
}

func (s *Store) LoadAllocation(ctx context.Context) (domain.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.allocSet {
		return domain.Allocation{}, domain.ErrNotFound
	}
	return s.alloc, nil
}

func (s *Store) AppendTrade(ctx context.Context, trade domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append([]domain.TradeRecord{trade}, s.trades...)
	if len(s.trades) > journalCap {
		s.trades = s.trades[:journalCap]
	}
	return nil
}

func (s *Store) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.trades) {
		limit = len(s.trades)
	}
	out := make([]domain.TradeRecord, limit)
	copy(out, s.trades[:limit])
	return out, nil
}

func (s *Store) Heartbeat(ctx context.Context, component string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats[component] = at
	return nil
}

func (s *Store) Heartbeats(ctx context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.beats))
	for component, at := range s.beats {
		out[component] = at
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

var _ domain.StateStore = (*Store)(nil)

// Bus is an in-process signal bus with exact-channel matching. Slow
// subscribers drop messages instead of blocking publishers, matching the
// delivery guarantees of the Redis bus.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan []byte
}

// NewBus creates an empty in-memory bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan []byte)}
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default: // subscriber is not keeping up
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan []byte)
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], id)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

var _ domain.SignalBus = (*Bus)(nil)
