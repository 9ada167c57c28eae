package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/requestid"
	"github.com/dmitrymomot/taskqueue/pkg/validator"
)

type errorResponse struct {
	Error     string              `json:"error"`
	Fields    map[string][]string `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: requestid.FromContext(r.Context())})
}

func (a *API) writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     validator.ErrValidationFailed.Error(),
		Fields:    validator.ExtractValidationErrors(err).Fields(),
		RequestID: requestid.FromContext(r.Context()),
	})
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// logRequests logs one line per request at debug level
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		a.logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logger.Duration(time.Since(start)))
	})
}
