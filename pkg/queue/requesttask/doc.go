// Package requesttask provides the "request" task type: an HTTP request that
// is stored in the queue and executed later by a worker.
//
// A payload either names a URI, fetched with GET, or carries a complete
// request serialized in HTTP/1.1 wire format:
//
//	registry := queue.NewRegistry()
//	requesttask.Register(registry, requesttask.WithTimeout(10*time.Second))
//
//	p, _ := requesttask.NewURIPayload("https://example.com/hooks/daily")
//	id, err := requesttask.Enqueue(ctx, enqueuer, p)
//
//	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com/v1/sync", body)
//	req.Header.Set("Content-Type", "application/json")
//	p, _ = requesttask.NewRequestPayload(req)
//
// Any 2xx response completes the task. Other statuses and transport errors
// are retried immediately, up to the attempt budget RunOne was given, and
// the last failure becomes the task message. The response body, capped by
// WithMaxResponseBytes, is stored as the task output.
package requesttask
