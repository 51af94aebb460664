package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/coinarb/arbot/internal/domain"
)

// Bus implements domain.SignalBus on Redis Pub/Sub. Delivery is ephemeral:
// a subscriber that connects after a scan cycle fires never sees it, which
// is the right behavior for live dashboards.
type Bus struct {
	rdb *redis.Client
}

// NewBus creates a signal bus sharing the store's connection pool.
func NewBus(s *Store) *Bus {
	return &Bus{rdb: s.Underlying()}
}

// Publish sends a payload to a channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription and returns a channel of raw payloads.
// The subscription closes when the context is cancelled; the returned
// channel closes at that point as well.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		pubsub = b.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = b.rdb.Subscribe(ctx, channel)
	}

	// Wait for the subscription confirmation so a publish immediately after
	// Subscribe returns is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ domain.SignalBus = (*Bus)(nil)
