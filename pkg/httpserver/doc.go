// Package httpserver runs an http.Server bound to a context and exposes a
// JSON health check handler.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
package httpserver
