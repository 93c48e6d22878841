// Package intake feeds consent decisions published on Kafka (for example by
// the web widget's webhook relay) into the consent ledger.
package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"dataguard/internal/consent/metrics"
	"dataguard/internal/consent/models"
	"dataguard/internal/consent/service"
	"dataguard/internal/platform/kafka/consumer"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/middleware/admin"
	"dataguard/pkg/platform/middleware/requesttime"
)

// Recorder is the ledger operation the intake drives.
type Recorder interface {
	Record(ctx context.Context, tenantID id.TenantID, cmd service.RecordCommand) (*models.Record, error)
}

// Message is the wire shape of a consent event.
type Message struct {
	TenantID   string     `json:"tenant_id"`
	Subject    string     `json:"subject"`
	Purpose    string     `json:"purpose"`
	Granted    bool       `json:"granted"`
	Source     string     `json:"source,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// Actor attributes intake-recorded consents in the audit trail.
const Actor = "consent-intake"

// Handler implements consumer.Handler.
type Handler struct {
	ledger  Recorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an intake handler.
func New(ledger Recorder, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{ledger: ledger, logger: logger, metrics: m}
}

var _ consumer.Handler = (*Handler)(nil)

// Handle records one consent event. Malformed or invalid events are logged
// and dropped so they cannot stall the partition; storage and audit failures
// are returned so the record is redelivered.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var in Message
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		h.drop(ctx, msg, "malformed payload", err)
		return nil
	}
	tenantID, err := id.ParseTenantID(in.TenantID)
	if err != nil {
		h.drop(ctx, msg, "invalid tenant", err)
		return nil
	}
	source := models.Source(strings.ToLower(strings.TrimSpace(in.Source)))
	if source == "" {
		source = models.SourceWebhook
	}

	ctx = admin.WithActor(ctx, Actor)
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		ctx = requesttime.WithTime(ctx, in.OccurredAt.UTC())
	}

	_, err = h.ledger.Record(ctx, tenantID, service.RecordCommand{
		Subject: strings.TrimSpace(in.Subject),
		Purpose: models.Purpose(strings.ToUpper(strings.TrimSpace(in.Purpose))),
		Granted: in.Granted,
		Source:  source,
	})
	switch {
	case err == nil:
		h.count("recorded")
		return nil
	case dErrors.HasCode(err, dErrors.CodeValidation):
		h.drop(ctx, msg, "rejected by ledger", err)
		return nil
	default:
		h.count("retry")
		h.logger.ErrorContext(ctx, "consent intake failed, will retry",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return err
	}
}

func (h *Handler) drop(ctx context.Context, msg *consumer.Message, reason string, err error) {
	h.count("dropped")
	h.logger.WarnContext(ctx, "dropping consent event",
		"reason", reason,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err,
	)
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.IncIntake(outcome)
	}
}
