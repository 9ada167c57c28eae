package requesttask

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
)

// Task executes an HTTP request described by a Payload.
// A Task is built per claimed record and is not reused.
type Task struct {
	settings *settings
	log      *slog.Logger

	payload   Payload
	tpl       *template
	decodeErr error

	message  string
	output   []byte
	response []byte // status line, headers and captured body of the last response
}

var _ queue.Executable = (*Task)(nil)

// Factory returns a queue.Factory building request tasks with the given options
func Factory(opts ...Option) queue.Factory {
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	return func(record *queue.Task) queue.Executable {
		return newTask(s, record)
	}
}

// Register binds the request task type to registry
func Register(registry *queue.Registry, opts ...Option) error {
	return registry.Register(TaskType, Factory(opts...))
}

// Enqueue validates p and adds it as a queued request task
func Enqueue(ctx context.Context, enq *queue.Enqueuer, p Payload) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return enq.Enqueue(ctx, TaskType, p)
}

func newTask(s *settings, record *queue.Task) *Task {
	t := &Task{
		settings: s,
		log:      s.logger.With(logger.Component("requesttask")),
	}
	if record == nil {
		t.decodeErr = ErrPayloadDecode
		return t
	}
	t.log = t.log.With(logger.TaskID(record.ID))
	t.payload, t.tpl, t.decodeErr = decodePayload(record.Payload)
	return t
}

// Valid reports whether the payload decodes into an absolute http(s) request
func (t *Task) Valid() bool {
	return t.decodeErr == nil && t.tpl != nil
}

// URI returns the target of the request, or "" when the payload is invalid
func (t *Task) URI() string {
	if t.tpl == nil {
		return ""
	}
	return t.tpl.url.String()
}

// Execute sends the request up to maxTries times without delay and stops at
// the first 2xx response. Only the last failure is kept as the message; the
// body of the last response is kept as output whatever its status.
func (t *Task) Execute(ctx context.Context, maxTries int) queue.Outcome {
	if !t.Valid() {
		t.message = fmt.Sprintf("%s: %v", queue.ErrInvalidPayload, t.decodeErr)
		return queue.Failed(t.message, nil)
	}
	maxTries = max(maxTries, 1)
	uri := t.URI()

	for attempt := 1; attempt <= maxTries; attempt++ {
		status, err := t.attempt(ctx)
		switch {
		case err != nil:
			t.message = fmt.Sprintf("unable to execute task: %s (%v)", uri, err)
		case status < 200 || status > 299:
			t.message = fmt.Sprintf("invalid response status (%d) while executing %s", status, uri)
		default:
			t.message = ""
			return queue.Completed(t.output)
		}

		t.log.DebugContext(ctx, "request attempt failed",
			logger.Attempt(attempt, maxTries),
			slog.String("message", t.message))
	}

	return queue.Failed(t.message, t.output)
}

// attempt performs one round trip and captures the response.
// A non-nil error means no usable response was received.
func (t *Task) attempt(ctx context.Context) (int, error) {
	if t.settings.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.settings.timeout)
		defer cancel()
	}

	req, err := t.tpl.newRequest(ctx)
	if err != nil {
		return 0, err
	}

	resp, err := t.settings.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.settings.maxResponseBytes))
	t.output = body

	head, _ := httputil.DumpResponse(resp, false)
	t.response = append(head, body...)

	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, nil
}

// ErrorMessage returns the last failure message. When verbose, the
// serialized request and the last captured response are appended.
func (t *Task) ErrorMessage(verbose bool) string {
	if !verbose {
		return t.message
	}

	var b strings.Builder
	b.WriteString(t.message)
	b.WriteString("\n")
	if t.tpl != nil {
		if req, err := t.tpl.newRequest(context.Background()); err == nil {
			if dump, err := httputil.DumpRequestOut(req, true); err == nil {
				b.Write(dump)
			}
		}
	}
	b.WriteString("\n")
	b.Write(t.response)
	return b.String()
}

func (tpl *template) newRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(tpl.body) > 0 {
		body = bytes.NewReader(tpl.body)
	}
	req, err := http.NewRequestWithContext(ctx, tpl.method, tpl.url.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range tpl.header {
		req.Header[k] = append([]string(nil), v...)
	}
	if tpl.host != "" {
		req.Host = tpl.host
	}
	return req, nil
}
