package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
)

// Check is a named dependency check
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// HealthCheckHandler reports liveness when no checks are given and
// readiness otherwise: 200 when every check passes, 503 when any fails.
// The body is a JSON object mapping check names to "ok" or the error text.
func HealthCheckHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		for _, c := range checks {
			if err := c.Fn(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", slog.String("check", c.Name), logger.Error(err))
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
				body[c.Name] = err.Error()
				continue
			}
			body[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
