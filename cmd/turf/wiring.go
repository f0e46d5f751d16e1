package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/turf/internal/adapters/mq/pubsub"
	"github.com/okian/turf/internal/adapters/push"
	"github.com/okian/turf/internal/adapters/repository"
	service "github.com/okian/turf/internal/app"
	"github.com/okian/turf/internal/config"
	"github.com/okian/turf/internal/domain/leaderboard"
	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/types"
	"github.com/okian/turf/pkg/logger"
)

// openStore builds the run store selected by cfg.Store.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreBadger:
		db, err := repository.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		return repository.NewBadgerStore(db), nil
	case config.StorePostgres:
		pool, err := repository.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		store := repository.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// seedUsers loads the configured users into a fresh directory.
func seedUsers(ctx context.Context, users []config.User) (*repository.UserDirectory, error) {
	dir := repository.NewUserDirectory()
	for _, u := range users {
		if err := dir.Upsert(ctx, model.User{ID: u.ID, Name: u.Name, Avatar: u.Avatar}); err != nil {
			return nil, fmt.Errorf("seed user %q: %w", u.ID, err)
		}
	}
	return dir, nil
}

// notifiers holds the leaderboard fan-out targets.
type notifiers struct {
	hub   *push.Hub
	redis *pubsub.RedisNotifier
}

// buildNotifiers creates the websocket hub and, when configured, the Redis
// notifier whose remote snapshots are relayed to local subscribers.
func buildNotifiers(ctx context.Context, cfg *config.Config, log logger.Logger) (notifiers, func(), error) {
	n := notifiers{hub: push.NewHub(push.WithLogger(log.Named("push")))}
	cleanup := func() { n.hub.Close() }
	if cfg.RedisAddr == "" {
		return n, cleanup, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		n.hub.Close()
		return notifiers{}, nil, fmt.Errorf("%w: %v", pubsub.ErrUnavailable, err)
	}
	n.redis = pubsub.NewRedisNotifier(client,
		pubsub.WithChannelPrefix(cfg.RedisChannelPrefix),
		pubsub.WithLogger(log.Named("redis")),
	)

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		err := n.redis.Subscribe(subCtx, func(ctx context.Context, lb types.Leaderboard) {
			if err := n.hub.Broadcast(ctx, lb); err != nil {
				log.Warn(ctx, "relay remote leaderboard", logger.String("window", lb.Window), logger.Error(err))
			}
		})
		if err != nil && subCtx.Err() == nil {
			log.Error(ctx, "redis subscription ended", logger.Error(err))
		}
	}()

	cleanup = func() {
		cancel()
		_ = n.redis.Close()
		n.hub.Close()
	}
	return n, cleanup, nil
}

func (n notifiers) list() []service.LeaderboardNotifier {
	out := []service.LeaderboardNotifier{n.hub}
	if n.redis != nil {
		out = append(out, n.redis)
	}
	return out
}

func newService(cfg *config.Config, log logger.Logger, store repository.Store,
	users *repository.UserDirectory, n notifiers,
) *service.Service {
	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithUsers(users),
		service.WithStrideLength(cfg.StrideLengthM),
		service.WithTerritoryBuffer(cfg.TerritoryBufferDeg),
		service.WithLeaderboardLimit(cfg.LeaderboardLimit),
		service.WithLeaderboardFilter(leaderboard.ParseFilter(cfg.LeaderboardFilter)),
		service.WithLocation(cfg.Location()),
		service.WithQueueSize(cfg.RefreshQueueSize),
		service.WithWorkerCount(cfg.RefreshWorkers),
		service.WithDedupeSize(cfg.DedupeSize),
	}
	for _, notifier := range n.list() {
		opts = append(opts, service.WithNotifier(notifier))
	}
	return service.New(opts...)
}
