// Package httpapi is a small JSON API over a queue.Store for enqueueing and
// inspecting tasks. It does not run tasks; workers do.
//
//	api, err := httpapi.New(store, registry, httpapi.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	srv := httpserver.NewFromConfig(cfg)
//	return srv.Run(ctx, api.Routes())
//
// Errors are returned as {"error": "...", "request_id": "..."} with 400 for
// bad input (plus "fields" for validation failures), 404 for unknown ids, 413
// and 415 for oversized or non-JSON bodies and 500 for store failures. Log
// records carry the request id when the logger is built with
// logger.WithContextExtractors(requestid.LoggerExtractor()).
package httpapi
