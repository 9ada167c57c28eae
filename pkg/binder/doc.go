// Package binder decodes HTTP request bodies into Go values.
//
// JSON returns a plain func(r *http.Request, v any) error, so it can be called
// from any net/http or chi handler:
//
//	bind := binder.JSON()
//
//	func create(w http.ResponseWriter, r *http.Request) {
//		var req CreateTaskRequest
//		if err := bind(r, &req); err != nil {
//			http.Error(w, err.Error(), binder.StatusCode(err))
//			return
//		}
//	}
//
// Decoding is strict: unknown fields, trailing data and bodies over the size
// limit (1 MiB by default) are rejected. Every failure wraps one of the
// package's sentinel errors.
package binder
