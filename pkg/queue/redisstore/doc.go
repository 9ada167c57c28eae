// Package redisstore implements queue.Store on Redis.
//
// Tasks are hashes and the queue itself is a sorted set of ids scored by
// creation time. Claiming and guarded updates run as Lua scripts, which Redis
// executes atomically, so several workers can share one store.
//
//	client, err := redis.Connect(ctx, cfg)
//	store, err := redisstore.New(client, redisstore.WithKeyPrefix(cfg.KeyPrefix))
package redisstore
