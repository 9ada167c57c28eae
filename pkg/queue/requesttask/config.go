package requesttask

import "time"

// Config holds the environment configuration of request tasks
type Config struct {
	Timeout          time.Duration `env:"REQUEST_TASK_TIMEOUT" envDefault:"30s"`
	MaxResponseBytes int64         `env:"REQUEST_TASK_MAX_RESPONSE_BYTES" envDefault:"1048576"`
}

// Options converts the config into factory options
func (c Config) Options() []Option {
	return []Option{
		WithTimeout(c.Timeout),
		WithMaxResponseBytes(c.MaxResponseBytes),
	}
}
