package space

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes a space-commit event so other processes watching
// the same spaces can invalidate caches or wake up reactive observers,
// the cross-process analogue of the in-process reactive recomputation
// described in spec.md §5.
type Notifier interface {
	Publish(ctx context.Context, space string) error
}

// RedisNotifier publishes one message per committed space to a Redis
// pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier constructs a Notifier publishing to addr's channel.
func NewRedisNotifier(addr, channel string) *RedisNotifier {
	return &RedisNotifier{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// Publish announces that space has committed new facts.
func (n *RedisNotifier) Publish(ctx context.Context, space string) error {
	if err := n.client.Publish(ctx, n.channel, space).Err(); err != nil {
		return fmt.Errorf("notify: publish %q: %w", space, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// WithNotifier attaches a Notifier to m, used by NotifyCommit.
func (m *Manager) WithNotifier(n Notifier) *Manager {
	m.notifier = n
	return m
}

// NotifyCommit publishes a commit event for space if a Notifier is
// attached; it is a no-op otherwise. Failures are returned to the
// caller (internal/txn logs but does not fail a transaction on a
// notification error, since notification is best-effort).
func (m *Manager) NotifyCommit(ctx context.Context, space string) error {
	if m.notifier == nil {
		return nil
	}
	return m.notifier.Publish(ctx, space)
}
