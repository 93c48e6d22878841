// Package lease provides expiring, token-owned locks so at most one worker
// purges a tenant at a time, and a crashed worker blocks nobody for longer
// than the TTL.
package lease

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dataguard/pkg/platform/sentinel"
)

// Locker hands out leases. Acquire returns sentinel.ErrLeaseHeld when another
// holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is one ownership of a key. Extend and Release only act while the
// lease is still owned; Extend returns sentinel.ErrLeaseHeld once it is lost.
type Lease interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// Hold acquires key and keeps it alive with a heartbeat at ttl/3 until the
// returned release func is called. The returned context is cancelled when
// the lease is lost so the holder stops working on data it no longer owns.
func Hold(ctx context.Context, locker Locker, key string, ttl time.Duration, logger *slog.Logger) (context.Context, func(), error) {
	l, err := locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, nil, err
	}

	heldCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-heldCtx.Done():
				return
			case <-ticker.C:
				err := l.Extend(heldCtx)
				if err == nil {
					continue
				}
				if errors.Is(err, sentinel.ErrLeaseHeld) {
					logger.WarnContext(heldCtx, "lease lost", "key", key)
					cancel()
					return
				}
				if heldCtx.Err() == nil {
					logger.WarnContext(heldCtx, "lease heartbeat failed", "key", key, "error", err)
				}
			}
		}
	}()

	release := func() {
		cancel()
		<-done
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "lease release failed", "key", key, "error", err)
		}
	}
	return heldCtx, release, nil
}
