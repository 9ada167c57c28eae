package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/taskqueue/pkg/config"
	"github.com/dmitrymomot/taskqueue/pkg/mongo"
	"github.com/dmitrymomot/taskqueue/pkg/pg"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
	"github.com/dmitrymomot/taskqueue/pkg/queue/boltstore"
	"github.com/dmitrymomot/taskqueue/pkg/queue/mongostore"
	"github.com/dmitrymomot/taskqueue/pkg/queue/pgstore"
	"github.com/dmitrymomot/taskqueue/pkg/queue/redisstore"
	"github.com/dmitrymomot/taskqueue/pkg/redis"
)

// backend is an opened store plus its health check and cleanup
type backend struct {
	store queue.Store
	check func(context.Context) error
	close func()
}

func openBackend(ctx context.Context, cfg appConfig, log *slog.Logger) (*backend, error) {
	log = log.With(slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case "memory":
		log.WarnContext(ctx, "memory backend keeps tasks in this process only")
		return &backend{store: queue.NewMemoryStorage(), close: func() {}}, nil

	case "bolt":
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return &backend{store: s, close: func() { _ = s.Close() }}, nil

	case "mongo":
		var mcfg mongo.Config
		if err := config.Load(&mcfg); err != nil {
			return nil, err
		}
		db, err := mongo.ConnectDatabase(ctx, mcfg)
		if err != nil {
			return nil, err
		}
		s, err := mongostore.New(ctx, db, mongostore.WithCollection(cfg.Collection))
		if err != nil {
			_ = db.Client().Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return &backend{
			store: s,
			check: mongo.Healthcheck(db.Client()),
			close: func() { _ = db.Client().Disconnect(context.Background()) },
		}, nil

	case "postgres":
		var pcfg pg.Config
		if err := config.Load(&pcfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pcfg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pcfg, log); err != nil {
			pool.Close()
			return nil, err
		}
		s, err := pgstore.New(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{store: s, check: pg.Healthcheck(pool), close: pool.Close}, nil

	case "redis":
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return nil, err
		}
		s, err := redisstore.New(client, redisstore.WithKeyPrefix(rcfg.KeyPrefix))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &backend{
			store: s,
			check: redis.Healthcheck(client),
			close: func() { _ = client.Close() },
		}, nil
	}

	return nil, fmt.Errorf("unknown QUEUE_BACKEND %q (want memory, bolt, mongo, postgres or redis)", cfg.Backend)
}
