// Package pubsub relays leaderboard snapshots between turf instances over
// Redis pub/sub. Each window publishes on <prefix>:<window>.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/types"
	"github.com/okian/turf/pkg/logger"
)

// NotifierName labels this notifier in metrics and logs.
const NotifierName = "redis"

// DefaultChannelPrefix is used when no prefix is configured.
const DefaultChannelPrefix = "turf:leaderboard"

// envelope is the wire format. Origin lets an instance skip its own
// messages when it also subscribes.
type envelope struct {
	Origin      string            `json:"origin"`
	Leaderboard types.Leaderboard `json:"leaderboard"`
}

// Handler receives snapshots published by other instances.
type Handler func(ctx context.Context, snap types.Leaderboard)

// RedisNotifier publishes leaderboard snapshots to Redis. Publishing goes
// through a circuit breaker so an unreachable Redis fails fast.
type RedisNotifier struct {
	client  redis.UniversalClient
	prefix  string
	origin  string
	breaker *gobreaker.CircuitBreaker[int64]
	now     func() time.Time
	log     logger.Logger

	maxFailures  uint32
	openTimeout  time.Duration
	readyTimeout time.Duration
}

// NewRedisNotifier creates a notifier over client.
func NewRedisNotifier(client redis.UniversalClient, opts ...Option) *RedisNotifier {
	n := &RedisNotifier{
		client:       client,
		prefix:       DefaultChannelPrefix,
		origin:       uuid.NewString(),
		now:          time.Now,
		log:          logger.Nop(),
		maxFailures:  5,
		openTimeout:  30 * time.Second,
		readyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.breaker = gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:        "redis-leaderboard",
		MaxRequests: 1,
		Timeout:     n.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= n.maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			n.log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	return n
}

// Name identifies the notifier.
func (n *RedisNotifier) Name() string { return NotifierName }

// Channel returns the Redis channel for window.
func (n *RedisNotifier) Channel(window model.Window) string {
	return n.prefix + ":" + string(window)
}

// BreakerState reports the circuit breaker state.
func (n *RedisNotifier) BreakerState() string {
	return n.breaker.State().String()
}

// Publish sends the snapshot for window to Redis.
func (n *RedisNotifier) Publish(ctx context.Context, window model.Window, entries []model.LeaderboardEntry) error {
	payload, err := json.Marshal(envelope{
		Origin: n.origin,
		Leaderboard: types.Leaderboard{
			Window:      string(window),
			GeneratedAt: n.now().UTC(),
			Entries:     types.FromEntries(entries),
		},
	})
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}

	_, err = n.breaker.Execute(func() (int64, error) {
		return n.client.Publish(ctx, n.Channel(window), payload).Result()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrUnavailable, window, err)
	}
	return nil
}

// Subscribe forwards snapshots published by other instances to handle
// until ctx is done.
func (n *RedisNotifier) Subscribe(ctx context.Context, handle Handler) error {
	ps := n.client.PSubscribe(ctx, n.prefix+":*")
	defer ps.Close()

	rctx, cancel := context.WithTimeout(ctx, n.readyTimeout)
	_, err := ps.Receive(rctx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: subscribe: %v", ErrUnavailable, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			snap, own, err := n.decode(msg)
			if err != nil {
				n.log.Warn(ctx, "ignoring leaderboard message",
					logger.String("channel", msg.Channel), logger.Error(err))
				continue
			}
			if own {
				continue
			}
			handle(ctx, snap)
		}
	}
}

func (n *RedisNotifier) decode(msg *redis.Message) (types.Leaderboard, bool, error) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		return types.Leaderboard{}, false, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	window := strings.TrimPrefix(msg.Channel, n.prefix+":")
	if _, err := model.ParseWindow(window); err != nil || env.Leaderboard.Window != window {
		return types.Leaderboard{}, false, fmt.Errorf("%w: channel %q", ErrBadMessage, msg.Channel)
	}
	return env.Leaderboard, env.Origin == n.origin, nil
}

// Close releases the Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
