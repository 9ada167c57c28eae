package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/taskqueue/pkg/binder"
	"github.com/dmitrymomot/taskqueue/pkg/httpserver"
	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
	"github.com/dmitrymomot/taskqueue/pkg/requestid"
	"github.com/dmitrymomot/taskqueue/pkg/validator"
)

const (
	// maxBodyBytes caps POST /tasks request bodies
	maxBodyBytes = 1 << 20
	// maxTypeLen bounds task type names accepted by POST /tasks
	maxTypeLen = 128
)

// API exposes a store over HTTP for enqueueing and inspecting tasks
type API struct {
	store    queue.Store
	registry *queue.Registry
	enqueuer *queue.Enqueuer
	logger   *slog.Logger
	checks   []httpserver.Check
	bind     func(r *http.Request, v any) error
}

// Option configures an API
type Option func(*API)

// WithLogger sets the logger for request and error logging
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHealthCheck adds a dependency check to GET /healthz
func WithHealthCheck(name string, fn func(context.Context) error) Option {
	return func(a *API) {
		if fn != nil {
			a.checks = append(a.checks, httpserver.Check{Name: name, Fn: fn})
		}
	}
}

// New builds an API over store. The registry is used to validate payloads of
// known task types on submission and to report validity on inspection.
func New(store queue.Store, registry *queue.Registry, opts ...Option) (*API, error) {
	if store == nil {
		return nil, queue.ErrRepositoryNil
	}
	if registry == nil {
		return nil, queue.ErrRegistryNil
	}

	a := &API{store: store, registry: registry, logger: slog.Default(), bind: binder.JSON(binder.WithMaxBytes(maxBodyBytes))}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logger.Component("httpapi"))

	enq, err := queue.NewEnqueuer(store, queue.WithEnqueuerLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.enqueuer = enq
	return a, nil
}

// Routes returns the router:
//
//	POST /tasks        enqueue {"type": "...", "payload": {...}}
//	GET  /tasks/{id}   inspect; ?verbose=1 adds payload validity
//	GET  /healthz      health checks
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Post("/tasks", a.createTask)
	r.Get("/tasks/{id}", a.getTask)
	r.Get("/healthz", httpserver.HealthCheckHandler(a.logger, a.checks...))

	return r
}

type createRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createResponse struct {
	ID string `json:"id"`
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := a.bind(r, &req); err != nil {
		a.writeError(w, r, binder.StatusCode(err), err.Error())
		return
	}
	if err := validator.Apply(
		validator.RequiredString("type", req.Type),
		validator.MaxLenString("type", req.Type, maxTypeLen),
		validator.NoWhitespace("type", req.Type),
		validator.RequiredJSON("payload", req.Payload),
	); err != nil {
		a.writeValidationError(w, r, err)
		return
	}

	// Types served by other processes are accepted as-is
	if valid, known := a.validate(&queue.Task{Type: req.Type, Payload: req.Payload}); known && !valid {
		a.writeError(w, r, http.StatusBadRequest, queue.ErrInvalidPayload.Error())
		return
	}

	id, err := a.enqueuer.EnqueueRaw(r.Context(), req.Type, req.Payload)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	w.Header().Set("Location", "/tasks/"+id)
	writeJSON(w, http.StatusCreated, createResponse{ID: id})
}

type taskView struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Status         queue.Status    `json:"status"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Message        string          `json:"message,omitempty"`
	Output         string          `json:"output,omitempty"`
	OutputEncoding string          `json:"output_encoding,omitempty"`
	Created        time.Time       `json:"created"`
	Updated        time.Time       `json:"updated"`
	Valid          *bool           `json:"valid,omitempty"`
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := a.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	view := taskView{
		ID:      task.ID,
		Type:    task.Type,
		Status:  task.Status,
		Message: task.Message,
		Created: task.Created,
		Updated: task.Updated,
	}
	if json.Valid(task.Payload) {
		view.Payload = task.Payload
	}
	if len(task.Output) > 0 {
		if utf8.Valid(task.Output) {
			view.Output = string(task.Output)
		} else {
			view.Output = base64Encode(task.Output)
			view.OutputEncoding = "base64"
		}
	}

	if verbose, _ := strconv.ParseBool(r.URL.Query().Get("verbose")); verbose {
		if valid, known := a.validate(task); known {
			view.Valid = &valid
		}
	}

	writeJSON(w, http.StatusOK, view)
}

// validate builds the task's Executable and reports Valid().
// known is false when no factory is registered for the type.
func (a *API) validate(task *queue.Task) (valid, known bool) {
	factory, err := a.registry.Resolve(task.Type)
	if err != nil {
		return false, false
	}
	defer func() {
		if recover() != nil {
			valid = false
		}
	}()
	exec := factory(task.Clone())
	return exec != nil && exec.Valid(), true
}

func (a *API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		a.writeError(w, r, http.StatusNotFound, queue.ErrNotFound.Error())
	case errors.Is(err, queue.ErrTaskTypeRequired), errors.Is(err, queue.ErrPayloadNil):
		a.writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		a.logger.ErrorContext(r.Context(), "store request failed", logger.Error(err))
		a.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
