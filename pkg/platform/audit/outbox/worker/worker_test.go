package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/platform/kafka/producer"
	"dataguard/pkg/platform/audit/outbox"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []*outbox.Entry
	trimmed int
}

func (f *fakeStore) Append(_ context.Context, e *outbox.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeStore) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range f.entries {
		if e.IsPending() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, entryID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == entryID {
			e.ProcessedAt = &at
		}
	}
	return nil
}

func (f *fakeStore) CountPending(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.entries {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) OldestPendingAge(context.Context, time.Time) (time.Duration, error) {
	return 0, nil
}

func (f *fakeStore) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trimmed++
	return 0, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []*producer.Message
	failOn string
}

func (p *fakePublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Headers["event_type"] == p.failOn {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func newEntries(store *fakeStore, tenant string, actions ...string) {
	for i, a := range actions {
		_ = store.Append(context.Background(),
			outbox.NewEntry("tenant", tenant, a, []byte(`{}`), time.Unix(int64(i), 0)))
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollOncePublishesKeyedByTenant(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	newEntries(store, "tenant-1", "DSR_REQUESTED", "DSR_APPROVED")
	w := New(store, pub, WithTopic("audit"), WithLogger(quietLogger()))

	n := w.PollOnce(context.Background())

	require.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "audit", pub.sent[0].Topic)
	assert.Equal(t, "tenant-1", string(pub.sent[0].Key))
	assert.Equal(t, "DSR_REQUESTED", pub.sent[0].Headers["event_type"])
	pending, _ := store.CountPending(context.Background())
	assert.Zero(t, pending)
}

func TestPollOnceStopsAtFirstFailureToKeepOrder(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{failOn: "DSR_IN_REVIEW"}
	newEntries(store, "tenant-1", "DSR_REQUESTED", "DSR_IN_REVIEW", "DSR_APPROVED")
	w := New(store, pub, WithLogger(quietLogger()))

	n := w.PollOnce(context.Background())

	assert.Equal(t, 1, n)
	pending, _ := store.CountPending(context.Background())
	assert.Equal(t, int64(2), pending)

	pub.failOn = ""
	assert.Equal(t, 2, w.PollOnce(context.Background()))
	require.Len(t, pub.sent, 3)
	assert.Equal(t, "DSR_APPROVED", pub.sent[2].Headers["event_type"])
}

func TestBatchSizeBoundsOnePoll(t *testing.T) {
	store := &fakeStore{}
	newEntries(store, "tenant-1", "A", "B", "C")
	w := New(store, &fakePublisher{}, WithBatchSize(2), WithLogger(quietLogger()))

	assert.Equal(t, 2, w.PollOnce(context.Background()))
	assert.Equal(t, 1, w.PollOnce(context.Background()))
	assert.Equal(t, 0, w.PollOnce(context.Background()))
}

func TestStopDrainsPendingEntries(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	w := New(store, pub, WithPollInterval(time.Hour), WithLogger(quietLogger()))
	w.Start()
	newEntries(store, "tenant-1", "RECORD_PURGED")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	pending, _ := store.CountPending(context.Background())
	assert.Zero(t, pending)
	assert.Len(t, pub.sent, 1)
}

func TestTrimRunsAtMostHourly(t *testing.T) {
	store := &fakeStore{}
	w := New(store, &fakePublisher{}, WithLogger(quietLogger()))

	w.trim(context.Background())
	w.trim(context.Background())
	assert.Equal(t, 1, store.trimmed)

	disabled := New(store, &fakePublisher{}, WithRetention(0), WithLogger(quietLogger()))
	disabled.trim(context.Background())
	assert.Equal(t, 1, store.trimmed)
}
