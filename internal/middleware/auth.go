package middleware

import (
	"context"
	"net/http"
	"strings"

	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/service"

	"github.com/google/uuid"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// UserID returns the authenticated caller from the request context.
// uuid.Nil means the request did not pass the Auth middleware.
func UserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(userIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithUserID is exported for handler tests.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Auth validates a bearer token and injects the subject user id.
// Websocket clients cannot set headers from the browser, so a `token`
// query parameter is accepted as a fallback.
func Auth(jwtSecret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				unauthorized(w)
				return
			}

			userID, err := service.ParseToken(token, jwtSecret)
			if err != nil {
				logger.Debug("token rejected", slog.String("remote", r.RemoteAddr))
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
