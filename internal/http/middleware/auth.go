package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/davidbz/liftplan/internal/config"
)

// APIKeyHeader carries the shared API key.
const APIKeyHeader = "X-API-Key"

// APIKey returns middleware that validates the X-API-Key header.
// It is a no-op when no key is configured. The health check is always open.
func APIKey(cfg *config.AuthConfig) Middleware {
	if cfg == nil || cfg.APIKey == "" {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	expected := []byte(cfg.APIKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				writeUnauthorized(w, http.StatusUnauthorized, "missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
				writeUnauthorized(w, http.StatusForbidden, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
