package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TaskID records the task identifier under the key "task_id".
func TaskID(id string) slog.Attr {
	return slog.String("task_id", id)
}

// TaskType records the task type under the key "task_type".
func TaskType(t string) slog.Attr {
	return slog.String("task_type", t)
}

// Status records a task status under the key "status".
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

// Attempt records a 1-based attempt number out of max under the key "attempt".
func Attempt(n, max int) slog.Attr {
	return slog.Group("attempt", slog.Int("n", n), slog.Int("max", max))
}

// WorkerID records the worker identifier under the key "worker_id".
func WorkerID(id string) slog.Attr {
	return slog.String("worker_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
