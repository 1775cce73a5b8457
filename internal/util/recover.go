package util

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
)

// WithRecover turns a handler panic into a generic 500 JSON response.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			LoggerFromContext(r.Context()).Error("handler panic", "panic", rv, "stack", string(debug.Stack()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":     "internal server error",
				"code":      "SYSTEM_INTERNAL_ERROR",
				"requestId": RequestIDFromRequest(r),
			})
		}()
		next.ServeHTTP(w, r)
	})
}
