package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"knowledge-nest-backend/pkg/config"
	"knowledge-nest-backend/pkg/logger"
	"knowledge-nest-backend/pkg/models"
	"knowledge-nest-backend/pkg/utils"
)

// ContextKey is the type for request-context keys set by this package.
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// AuthMiddleware validates the Bearer access token and places the
// authenticated user in the request context. Scoped handlers always take
// the username from here, never from the request payload.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	jwtService := utils.NewJWTService(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ParseToken(tokenString)
			if err != nil {
				logger.L().Debugw("token rejected", "path", r.URL.Path, "error", err)
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}

			// Only access tokens open the API
			if claims.Type != "access" {
				utils.WriteUnauthorizedResponse(w, "Invalid token type")
				return
			}

			if time.Now().Unix() > claims.Exp {
				utils.WriteUnauthorizedResponse(w, "Token expired")
				return
			}

			user := &models.User{
				Username: claims.Username,
				Email:    claims.Email,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the authenticated user, if any.
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// RequireUser returns the authenticated user or an error when the request
// was not authenticated.
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not authenticated")
	}
	return user, nil
}
