// Package redis connects to Redis with retries and exposes a health check.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := redisstore.New(client, redisstore.WithKeyPrefix(cfg.KeyPrefix))
package redis
