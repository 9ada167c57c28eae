// Package config loads typed configuration structs from environment
// variables.
//
// Structs declare their variables with caarlos0/env tags; an optional .env
// file is merged in through godotenv the first time Load runs.
//
//	type Config struct {
//		PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
//		MaxTries     int           `env:"QUEUE_MAX_TRIES" envDefault:"3"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// Every package that needs configuration ships its own struct (queue.Config,
// pg.Config, mongo.Config and so on) so a binary composes exactly what it uses.
package config
