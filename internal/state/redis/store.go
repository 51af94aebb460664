// Package redis implements the shared state store and signal bus on
// go-redis/v9. All bot instances pointed at the same Redis see the same
// allocation, statistics, and trade journal.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinarb/arbot/internal/domain"
)

// Key layout. Everything the bot owns lives under the arbot: prefix so a
// shared Redis can host other tenants.
const (
	keyStats      = "arbot:stats:arbitrage"
	keyAllocation = "arbot:allocation"
	keyTrades     = "arbot:trades"
	keyHeartbeat  = "arbot:heartbeat:" // + component
)

// Expiries. Statistics and heartbeats age out so a dead bot does not leave
// stale numbers behind; the allocation outlives several allocator intervals
// so a restart picks up the last split.
const (
	statsTTL      = 24 * time.Hour
	allocationTTL = 4 * time.Hour
	journalTTL    = 7 * 24 * time.Hour
	heartbeatTTL  = 5 * time.Minute

	journalCap = 1000
)

// Config holds Redis connection parameters.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Store implements domain.StateStore on a Redis connection.
type Store struct {
	rdb *redis.Client
}

// New dials Redis and verifies connectivity with a ping. Callers treat a
// returned error as "Redis unavailable" and may fall back to in-process
// state.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Store{rdb: rdb}, nil
}

// SaveStats overwrites the arbitrage statistics snapshot. The 24h expiry
// means the numbers disappear if no engine has written for a day.
func (s *Store) SaveStats(ctx context.Context, stats domain.ArbitrageStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: encode stats: %w", err)
	}
	if err := s.rdb.Set(ctx, keyStats, data, statsTTL).Err(); err != nil {
		return fmt.Errorf("redis: save stats: %w", err)
	}
	return nil
}

// LoadStats returns the last persisted statistics snapshot, or
// domain.ErrNotFound when none exists (or it has expired).
func (s *Store) LoadStats(ctx context.Context) (domain.ArbitrageStats, error) {
	data, err := s.rdb.Get(ctx, keyStats).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ArbitrageStats{}, domain.ErrNotFound
		}
		return domain.ArbitrageStats{}, fmt.Errorf("redis: load stats: %w", err)
	}
	var stats domain.ArbitrageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.ArbitrageStats{}, fmt.Errorf("redis: decode stats: %w", err)
	}
	return stats, nil
}

// SaveAllocation overwrites the capital split.
func (s *Store) SaveAllocation(ctx context.Context, alloc domain.Allocation) error {
	data, err := json.Marshal(alloc)
	if err != nil {
		return fmt.Errorf("redis: encode allocation: %w", err)
	}
	if err := s.rdb.Set(ctx, keyAllocation, data, allocationTTL).Err(); err != nil {
		return fmt.Errorf("redis: save allocation: %w", err)
	}
	return nil
}

// LoadAllocation returns the current capital split, or domain.ErrNotFound
// when the allocator has not written one yet.
func (s *Store) LoadAllocation(ctx context.Context) (domain.Allocation, error) {
	data, err := s.rdb.Get(ctx, keyAllocation).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Allocation{}, domain.ErrNotFound
		}
		return domain.Allocation{}, fmt.Errorf("redis: load allocation: %w", err)
	}
	var alloc domain.Allocation
	if err := json.Unmarshal(data, &alloc); err != nil {
		return domain.Allocation{}, fmt.Errorf("redis: decode allocation: %w", err)
	}
	return alloc, nil
}

// AppendTrade pushes a trade onto the journal, newest first, and trims the
// list to the journal cap in the same pipeline.
func (s *Store) AppendTrade(ctx context.Context, trade domain.TradeRecord) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("redis: encode trade: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, keyTrades, data)
	pipe.LTrim(ctx, keyTrades, 0, journalCap-1)
	pipe.Expire(ctx, keyTrades, journalTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit journal entries, newest first. Entries
// that no longer decode are skipped rather than failing the whole read.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = journalCap
	}
	raw, err := s.rdb.LRange(ctx, keyTrades, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: recent trades: %w", err)
	}

	trades := make([]domain.TradeRecord, 0, len(raw))
	for _, item := range raw {
		var trade domain.TradeRecord
		if err := json.Unmarshal([]byte(item), &trade); err != nil {
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// Heartbeat records that a component loop ran at the given time. The key
// expires on its own, so a stalled component simply vanishes from
// Heartbeats after five minutes.
func (s *Store) Heartbeat(ctx context.Context, component string, at time.Time) error {
	key := keyHeartbeat + component
	value := strconv.FormatInt(at.UnixNano(), 10)
	if err := s.rdb.Set(ctx, key, value, heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("redis: heartbeat %s: %w", component, err)
	}
	return nil
}

// Heartbeats returns the last-seen time of every live component.
func (s *Store) Heartbeats(ctx context.Context) (map[string]time.Time, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, keyHeartbeat+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan heartbeats: %w", err)
	}
	if len(keys) == 0 {
		return map[string]time.Time{}, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(keys))
	for _, key := range keys {
		cmds[key] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: read heartbeats: %w", err)
	}

	beats := make(map[string]time.Time, len(keys))
	for key, cmd := range cmds {
		value, err := cmd.Result()
		if err != nil {
			continue // expired between scan and read
		}
		nanos, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		component := strings.TrimPrefix(key, keyHeartbeat)
		beats[component] = time.Unix(0, nanos)
	}
	return beats, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Underlying returns the raw client for the signal bus.
func (s *Store) Underlying() *redis.Client {
	return s.rdb
}

var _ domain.StateStore = (*Store)(nil)
