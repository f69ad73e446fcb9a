package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"knowledge-nest-backend/pkg/config"
)

// CORS builds the CORS middleware from the configured origins.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-API-Key",
			"X-Requested-With",
			"Cache-Control",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			"Content-Length",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}

	// Wildcard origins cannot be combined with credentials
	if cfg.IsDevelopment() {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}
	if len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] != "*" {
		corsOptions.AllowedOrigins = cfg.AllowedOrigins
		corsOptions.AllowCredentials = true
	}

	return cors.Handler(corsOptions)
}
