// Package middleware holds HTTP middleware shared across the API routes.
package middleware

import (
	"net/http"
	"time"

	"shipping-gateway/internal/common/logging"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging logs every request with method, path, status, and duration.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", wrapped.statusCode),
			logging.Duration("duration", time.Since(start)),
		}
		if wrapped.statusCode >= http.StatusInternalServerError {
			logging.Warn("Request completed with server error", fields...)
			return
		}
		logging.Debug("Request completed", fields...)
	})
}
