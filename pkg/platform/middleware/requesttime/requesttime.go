// Package requesttime pins a single "now" per request or per batch so that every
// timestamp written while handling it (audit events, status changes, cutoffs) agrees.
package requesttime

import (
	"context"
	"net/http"
	"time"
)

type nowKey struct{}

// Middleware records the arrival time of the request in its context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithTime(r.Context(), time.Now().UTC())))
	})
}

// Now returns the pinned time, or the wall clock in UTC when nothing was pinned.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// WithTime pins t as the current time for ctx. Workers call it once per tick;
// tests use it to freeze the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, t)
}
