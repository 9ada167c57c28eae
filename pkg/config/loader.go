package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Option tunes a single Load call
type Option func(*loadOptions)

type loadOptions struct {
	prefix   string
	envFiles []string
}

// WithPrefix prepends prefix to every env key of the struct, e.g. "WORKER_"
// turns QUEUE_MAX_TRIES into WORKER_QUEUE_MAX_TRIES.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.prefix = prefix
	}
}

// WithEnvFiles loads the given dotenv files before parsing.
// Unlike the implicit .env, a missing file is an error.
// Variables already present in the environment win.
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) {
		o.envFiles = append(o.envFiles, files...)
	}
}

// Load fills v from environment variables according to its `env` and
// `envDefault` struct tags. A .env file in the working directory is read
// once per process when present.
//
// Example:
//
//	var cfg queue.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	defaultEnvLoaded.Do(func() {
		// .env is optional
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.envFiles) > 0 {
		if err := godotenv.Load(o.envFiles...); err != nil {
			return errors.Join(ErrEnvFile, err)
		}
	}

	if err := env.ParseWithOptions(v, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Use it for configuration the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
