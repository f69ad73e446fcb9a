package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"knowledge-nest-backend/pkg/config"
	"knowledge-nest-backend/pkg/utils"
)

// Recovery converts panics into 500 responses with the standard envelope.
// The stack is logged server-side; clients only see a generic message
// outside development.
func Recovery(cfg *config.Config, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Errorw("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)

					if cfg.IsDevelopment() {
						utils.WriteInternalServerErrorResponse(w, fmt.Sprintf("Internal server error: %v", err))
					} else {
						utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
