package pubsub

import (
	"time"

	"github.com/okian/turf/pkg/logger"
)

// Option configures a RedisNotifier.
type Option func(*RedisNotifier)

// WithChannelPrefix sets the channel prefix; windows are appended after a colon.
func WithChannelPrefix(prefix string) Option {
	return func(n *RedisNotifier) {
		if prefix != "" {
			n.prefix = prefix
		}
	}
}

// WithLogger sets the notifier logger.
func WithLogger(l logger.Logger) Option {
	return func(n *RedisNotifier) {
		if l != nil {
			n.log = l
		}
	}
}

// WithClock sets the time stamped on snapshots.
func WithClock(now func() time.Time) Option {
	return func(n *RedisNotifier) {
		if now != nil {
			n.now = now
		}
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(n *RedisNotifier) {
		if maxFailures > 0 {
			n.maxFailures = maxFailures
		}
		if openTimeout > 0 {
			n.openTimeout = openTimeout
		}
	}
}

// WithOrigin sets the instance id carried in every message.
func WithOrigin(id string) Option {
	return func(n *RedisNotifier) {
		if id != "" {
			n.origin = id
		}
	}
}
