package middleware

import (
	"net/http"
	"time"

	"github.com/davidbz/liftplan/internal/observability"
)

// RequestLog logs every request once it has been served.
func RequestLog() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			observability.FromContext(r.Context()).Info("request",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", sw.status),
				observability.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
