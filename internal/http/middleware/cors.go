package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/davidbz/liftplan/internal/config"
)

// exposedHeaders are readable by browser clients on cross-origin responses.
var exposedHeaders = []string{"X-Trace-Id", "X-Request-Id"}

// CORS creates a middleware that handles Cross-Origin Resource Sharing
// using the github.com/rs/cors library. Preflight requests are answered
// here and never reach the API key check.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	return c.Handler
}
