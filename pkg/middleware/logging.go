package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/config"
)

// Logger logs one structured line per request: method, path, status,
// duration, user and client IP.
func Logger(cfg *config.Config, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			userInfo := "anonymous"
			if user, ok := GetUserFromContext(r.Context()); ok && user != nil {
				userInfo = user.Username
			}

			log.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"user", userInfo,
				"ip", getClientIP(r),
			)
		})
	}
}

// getClientIP resolves the client address behind proxies.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
