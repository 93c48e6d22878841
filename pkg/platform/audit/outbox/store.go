package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists staged audit events until the relay has published them.
type Store interface {
	// Append must run inside the caller's audit transaction.
	Append(ctx context.Context, entry *Entry) error
	// FetchUnprocessed returns the oldest pending entries first and locks
	// them (FOR UPDATE SKIP LOCKED on Postgres) so relays do not overlap.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	// OldestPendingAge is zero when nothing is pending.
	OldestPendingAge(ctx context.Context, now time.Time) (time.Duration, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
