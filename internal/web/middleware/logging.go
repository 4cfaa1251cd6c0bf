// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/linemodel/internal/logging"
)

// RequestObserver receives one call per served request.
type RequestObserver interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
}

// Logger returns middleware that logs each request with structured fields
// and reports it to obs, which may be nil.
//
// Log fields:
//   - method, path, route: request line and matched chi pattern
//   - status: HTTP response status code
//   - bytes: response body size
//   - duration_ms: processing time
//   - ip: client IP (RemoteAddr after TrustedRealIP)
//   - run_id: set when a procedure produced a result
func Logger(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", ww.status,
				"bytes", ww.bytes,
				"duration_ms", duration.Milliseconds(),
				"ip", r.RemoteAddr,
			}
			if runID := ww.Header().Get("X-Run-ID"); runID != "" {
				args = append(args, "run_id", runID)
			}

			logger := logging.FromContext(r.Context())
			if ww.status >= http.StatusInternalServerError {
				logger.Error("request", args...)
			} else {
				logger.Info("request", args...)
			}

			if obs != nil {
				obs.ObserveHTTP(route, r.Method, ww.status, duration)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying ResponseWriter to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
