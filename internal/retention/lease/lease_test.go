package lease

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/pkg/platform/sentinel"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLocker_ExclusiveUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)}
	locker := NewMemoryLocker().WithClock(clock.Now)
	ctx := context.Background()

	first, err := locker.Acquire(ctx, "purge:t1", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "purge:t1", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrLeaseHeld)

	_, err = locker.Acquire(ctx, "purge:t2", time.Minute)
	assert.NoError(t, err, "other keys are independent")

	clock.Advance(time.Minute)
	second, err := locker.Acquire(ctx, "purge:t1", time.Minute)
	require.NoError(t, err, "an expired lease no longer blocks")

	assert.ErrorIs(t, first.Extend(ctx), sentinel.ErrLeaseHeld)
	require.NoError(t, first.Release(ctx))
	assert.True(t, locker.Held("purge:t1"), "a stale holder cannot release the new lease")

	require.NoError(t, second.Release(ctx))
	assert.False(t, locker.Held("purge:t1"))
}

func TestMemoryLocker_ExtendKeepsLeaseAlive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)}
	locker := NewMemoryLocker().WithClock(clock.Now)
	ctx := context.Background()

	l, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	require.NoError(t, l.Extend(ctx))
	clock.Advance(50 * time.Second)

	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrLeaseHeld)
}

func TestHold_ReleasesOnReturn(t *testing.T) {
	locker := NewMemoryLocker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, release, err := Hold(context.Background(), locker, "k", 30*time.Millisecond, logger)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	assert.True(t, locker.Held("k"), "heartbeat extends past the initial ttl")
	assert.NoError(t, ctx.Err())

	release()
	assert.False(t, locker.Held("k"))
	assert.Error(t, ctx.Err())
}

func TestHold_CancelsWhenLeaseIsLost(t *testing.T) {
	locker := NewMemoryLocker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, release, err := Hold(context.Background(), locker, "k", 30*time.Millisecond, logger)
	require.NoError(t, err)
	defer release()

	locker.mu.Lock()
	locker.leases["k"] = memoryEntry{token: "someone-else", expires: time.Now().Add(time.Hour)}
	locker.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after the lease was taken over")
	}
}

func TestHold_HeldKeyFails(t *testing.T) {
	locker := NewMemoryLocker()
	_, err := locker.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	_, _, err = Hold(context.Background(), locker, "k", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, sentinel.ErrLeaseHeld)
}
