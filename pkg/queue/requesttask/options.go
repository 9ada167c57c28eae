package requesttask

import (
	"log/slog"
	"net/http"
	"time"
)

const defaultMaxResponseBytes = 1 << 20

// Option configures the request task factory
type Option func(*settings)

type settings struct {
	client           *http.Client
	timeout          time.Duration
	maxResponseBytes int64
	logger           *slog.Logger
}

func defaultSettings() *settings {
	return &settings{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:          30 * time.Second,
		maxResponseBytes: defaultMaxResponseBytes,
		logger:           slog.Default(),
	}
}

// WithHTTPClient replaces the client used to send requests.
// Useful for custom transports, proxies, or testing.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTimeout bounds each attempt. Zero disables the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithMaxResponseBytes caps how much of a response body is kept as task output
func WithMaxResponseBytes(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxResponseBytes = n
		}
	}
}

// WithLogger sets the logger for attempt-level diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
