// Package notify delivers operator notifications such as escalated purge
// failures.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	id "dataguard/pkg/domain"
)

// EventPurgeFailureEscalated is sent once a record has failed to purge as
// many times as the retry bound allows.
const EventPurgeFailureEscalated = "purge_failure_escalated"

// Event is one notification. Attributes must not carry personal data.
type Event struct {
	Type       string            `json:"type"`
	TenantID   id.TenantID       `json:"tenant_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Sink accepts notifications.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, ev Event) error {
	args := []any{"type", ev.Type, "tenant_id", ev.TenantID.String()}
	for k, v := range ev.Attributes {
		args = append(args, k, v)
	}
	s.logger.WarnContext(ctx, "notification", args...)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
