// Package admin guards operator endpoints with a shared token and carries the
// operator identity into the context so audit events can attribute actions.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"dataguard/pkg/platform/middleware/request"
)

// DefaultActor is attributed to operator calls that do not name themselves.
const DefaultActor = "operator"

type actorKey struct{}

// WithActor stores the acting operator in ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the acting operator, falling back to DefaultActor.
func Actor(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return DefaultActor
}

// RequireToken rejects requests whose X-Admin-Token does not match expected.
// X-Admin-Actor-ID, when present, becomes the audit actor.
func RequireToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	if expected == "" {
		logger.Warn("admin token not configured, admin routes will reject every request")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch", "request_id", request.GetRequestID(ctx))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}
			if actor := r.Header.Get("X-Admin-Actor-ID"); actor != "" {
				ctx = WithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
