package requesttask_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskqueue/pkg/logger"
	"github.com/dmitrymomot/taskqueue/pkg/queue"
	"github.com/dmitrymomot/taskqueue/pkg/queue/requesttask"
)

type testServer struct {
	*httptest.Server
	flakyHits atomic.Int32
	lastBody  atomic.Value
	lastCT    atomic.Value
}

// newTestServer serves /ok (200), /err (500), /flaky (503 twice, then 200)
// and /echo (201 with the request body).
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "all good")
	})
	mux.HandleFunc("/err", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if ts.flakyHits.Add(1) <= 2 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "finally")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts.lastBody.Store(string(body))
		ts.lastCT.Store(r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func uriTask(t *testing.T, uri string, opts ...requesttask.Option) *requesttask.Task {
	t.Helper()
	p, err := requesttask.NewURIPayload(uri)
	require.NoError(t, err)
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	opts = append([]requesttask.Option{requesttask.WithLogger(logger.Discard())}, opts...)
	exec := requesttask.Factory(opts...)(&queue.Task{ID: "t1", Type: requesttask.TaskType, Payload: raw})
	task, ok := exec.(*requesttask.Task)
	require.True(t, ok)
	return task
}

func TestTask_Execute(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("2xx completes", func(t *testing.T) {
		t.Parallel()
		task := uriTask(t, srv.URL+"/ok")
		out := task.Execute(ctx, 1)
		assert.Equal(t, queue.StatusCompleted, out.Status)
		assert.Empty(t, out.Message)
		assert.Equal(t, "all good", string(out.Output))
		assert.Empty(t, task.ErrorMessage(false))
	})

	t.Run("non-2xx fails with status message", func(t *testing.T) {
		t.Parallel()
		task := uriTask(t, srv.URL+"/err")
		out := task.Execute(ctx, 2)
		assert.Equal(t, queue.StatusFailed, out.Status)
		assert.Equal(t, fmt.Sprintf("invalid response status (500) while executing %s/err", srv.URL), out.Message)
		assert.Equal(t, "broken\n", string(out.Output))
		assert.Equal(t, out.Message, task.ErrorMessage(false))
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		task := uriTask(t, "http://127.0.0.1:1/unreachable", requesttask.WithTimeout(time.Second))
		out := task.Execute(ctx, 1)
		assert.Equal(t, queue.StatusFailed, out.Status)
		assert.True(t, strings.HasPrefix(out.Message, "unable to execute task: http://127.0.0.1:1/unreachable ("), out.Message)
		assert.Empty(t, out.Output)
	})

	t.Run("verbose message includes request and response", func(t *testing.T) {
		t.Parallel()
		task := uriTask(t, srv.URL+"/err")
		task.Execute(ctx, 1)

		msg := task.ErrorMessage(true)
		assert.True(t, strings.HasPrefix(msg, task.ErrorMessage(false)))
		assert.Contains(t, msg, "GET /err HTTP/1.1")
		assert.Contains(t, msg, "500 Internal Server Error")
		assert.Contains(t, msg, "broken")
	})

	t.Run("output is capped", func(t *testing.T) {
		t.Parallel()
		task := uriTask(t, srv.URL+"/ok", requesttask.WithMaxResponseBytes(3))
		out := task.Execute(ctx, 1)
		assert.Equal(t, queue.StatusCompleted, out.Status)
		assert.Equal(t, "all", string(out.Output))
	})

	t.Run("zero tries is one try", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int32
		counter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer counter.Close()

		out := uriTask(t, counter.URL).Execute(ctx, 0)
		assert.Equal(t, queue.StatusFailed, out.Status)
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestTask_Execute_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	task := uriTask(t, srv.URL+"/flaky")
	out := task.Execute(context.Background(), 3)

	assert.Equal(t, queue.StatusCompleted, out.Status)
	assert.Empty(t, out.Message)
	assert.Equal(t, "finally", string(out.Output))
	assert.Equal(t, int32(3), srv.flakyHits.Load())
}

func TestTask_Execute_StopsAtBudget(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	out := uriTask(t, srv.URL+"/flaky").Execute(context.Background(), 2)

	assert.Equal(t, queue.StatusFailed, out.Status)
	assert.Contains(t, out.Message, "invalid response status (503)")
	assert.Equal(t, int32(2), srv.flakyHits.Load())
}

func TestTask_Execute_SerializedRequest(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/echo", strings.NewReader(`{"sync":true}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	p, err := requesttask.NewRequestPayload(req)
	require.NoError(t, err)
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	exec := requesttask.Factory(requesttask.WithLogger(logger.Discard()))(&queue.Task{ID: "t2", Payload: raw})
	require.True(t, exec.Valid())

	// the body is replayed on every attempt
	for range 2 {
		out := exec.Execute(context.Background(), 1)
		assert.Equal(t, queue.StatusCompleted, out.Status)
		assert.Equal(t, `{"sync":true}`, string(out.Output))
		assert.Equal(t, `{"sync":true}`, srv.lastBody.Load())
		assert.Equal(t, "application/json", srv.lastCT.Load())
	}
}

func TestTask_Execute_Timeout(t *testing.T) {
	t.Parallel()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	out := uriTask(t, slow.URL, requesttask.WithTimeout(20*time.Millisecond)).Execute(context.Background(), 1)
	assert.Equal(t, queue.StatusFailed, out.Status)
	assert.Contains(t, out.Message, "unable to execute task:")
}

func TestTask_InvalidPayloadExecute(t *testing.T) {
	t.Parallel()
	exec := requesttask.Factory()(&queue.Task{ID: "t3", Payload: json.RawMessage(`{"kind":"uri"}`)})
	assert.False(t, exec.Valid())

	out := exec.Execute(context.Background(), 1)
	assert.Equal(t, queue.StatusFailed, out.Status)
	assert.Contains(t, out.Message, queue.ErrInvalidPayload.Error())
}
