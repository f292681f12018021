package api

import (
	"net/http"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
)

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// routeOf returns the mux pattern that served r. ServeMux fills it in while routing,
// so it is only known once the wrapped handler returned. Signature and program paths
// collapse onto their pattern.
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return routeUnmatched
	}
	return r.Pattern
}

// LoggingMiddleware logs and counts every request with its route, status and duration.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := routeOf(r)
			duration := time.Since(start)
			observeRequest(route, wrapped.statusCode, duration)

			log.Debugw("api request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", wrapped.statusCode,
				"duration", duration,
			)
		})
	}
}

// RecoveryMiddleware turns a panicking handler into a JSON 500 response.
func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("panic serving api request",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec,
					)
					respondError(w, http.StatusInternalServerError, "handler panicked")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
