package queue

import "time"

// Config holds the configuration for queue workers
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"4"`
	MaxTries           int           `env:"QUEUE_MAX_TRIES" envDefault:"3"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// WorkerOptions converts the config into worker options
func (c Config) WorkerOptions() []WorkerOption {
	return []WorkerOption{
		WithPullInterval(c.PollInterval),
		WithMaxConcurrentTasks(c.MaxConcurrentTasks),
		WithMaxTries(c.MaxTries),
	}
}
