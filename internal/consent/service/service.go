package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"dataguard/internal/consent/metrics"
	"dataguard/internal/consent/models"
	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/audit"
	"dataguard/pkg/platform/middleware/requesttime"
	"dataguard/pkg/platform/sentinel"
	"dataguard/pkg/platform/tx"
	"dataguard/pkg/validation"
)

// Store defines the persistence interface for the consent ledger.
// Error Contract:
// - Latest returns sentinel.ErrNotFound when the subject has no record for the purpose
// - ListBySubject returns records newest first
type Store interface {
	Append(ctx context.Context, rec *models.Record) error
	Latest(ctx context.Context, tenantID id.TenantID, subject string, purpose models.Purpose) (*models.Record, error)
	ListBySubject(ctx context.Context, tenantID id.TenantID, subject string) ([]*models.Record, error)
}

type Option func(*Service)

const defaultValidity = 365 * 24 * time.Hour

// Service appends consent decisions and answers status queries.
type Service struct {
	store    Store
	auditor  audit.Recorder
	tx       tx.Runner
	metrics  *metrics.Metrics
	logger   *slog.Logger
	validity time.Duration
}

func New(store Store, auditor audit.Recorder, runner tx.Runner, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		auditor:  auditor,
		tx:       runner,
		logger:   logger,
		validity: defaultValidity,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithValidity sets how long a recorded decision stays current.
// Zero or negative values keep the one year default.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// RecordCommand is one consent decision to append.
type RecordCommand struct {
	Subject string
	Purpose models.Purpose
	Granted bool
	Source  models.Source
}

// Record appends a consent decision together with its CONSENT_RECORDED audit
// event. If the audit write fails the record is rolled back.
func (s *Service) Record(ctx context.Context, tenantID id.TenantID, cmd RecordCommand) (*models.Record, error) {
	start := time.Now()
	if err := validation.CheckStringLength("subject", cmd.Subject, validation.MaxSubjectLength); err != nil {
		return nil, err
	}
	rec, err := models.NewRecord(tenantID, cmd.Subject, cmd.Purpose, cmd.Granted, cmd.Source, requesttime.Now(ctx), s.validity)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Append(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record consent")
		}
		_, err := s.auditor.Append(ctx, audit.Event{
			TenantID:   tenantID,
			Action:     audit.ActionConsentRecorded,
			TargetType: audit.TargetConsent,
			TargetID:   rec.ID.String(),
			OccurredAt: rec.RecordedAt,
			Payload: map[string]string{
				"subject": rec.Subject,
				"purpose": string(rec.Purpose),
				"granted": strconv.FormatBool(rec.Granted),
				"source":  string(rec.Source),
			},
		})
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record consent",
			"tenant_id", tenantID.String(),
			"purpose", string(cmd.Purpose),
			"error", err,
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncRecorded(string(rec.Purpose), rec.Granted)
		s.metrics.ObserveRecordLatency(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "consent recorded",
		"tenant_id", tenantID.String(),
		"consent_id", rec.ID.String(),
		"purpose", string(rec.Purpose),
		"granted", rec.Granted,
	)
	return rec, nil
}

// CurrentStatus reports the subject's consent for purpose as of the request
// time. Expiry is evaluated here, at read time.
func (s *Service) CurrentStatus(ctx context.Context, tenantID id.TenantID, subject string, purpose models.Purpose) (models.Status, error) {
	if subject == "" {
		return models.Status{}, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if !purpose.IsValid() {
		return models.Status{}, dErrors.New(dErrors.CodeValidation, "unknown consent purpose: "+string(purpose))
	}

	latest, err := s.store.Latest(ctx, tenantID, subject, purpose)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return models.Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	status := models.StatusAt(latest, requesttime.Now(ctx))

	if s.metrics != nil {
		switch {
		case !status.Known:
			s.metrics.IncStatusCheck("unknown")
		case status.Granted:
			s.metrics.IncStatusCheck("granted")
		default:
			s.metrics.IncStatusCheck("denied")
		}
	}
	return status, nil
}

// History returns every decision recorded for subject, newest first.
func (s *Service) History(ctx context.Context, tenantID id.TenantID, subject string) ([]*models.Record, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	records, err := s.store.ListBySubject(ctx, tenantID, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	return records, nil
}
