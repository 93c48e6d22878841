package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is an audit event staged for relay to the broker. It is written in
// the same transaction as the audit row, so the broker never sees an event
// the ledger rolled back.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string // partition key; the tenant for audit events
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// Key keeps one tenant's events on one partition.
func (e *Entry) Key() []byte {
	return []byte(e.AggregateID)
}

// Headers describe the entry to consumers that do not decode the payload.
func (e *Entry) Headers() map[string]string {
	return map[string]string{
		"outbox_id":      e.ID.String(),
		"aggregate_type": e.AggregateType,
		"aggregate_id":   e.AggregateID,
		"event_type":     e.EventType,
	}
}

func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
