package audit

//go:generate mockgen -source=models.go -destination=mocks/recorder_mock.go -package=mocks Recorder

import (
	"context"
	"time"

	id "dataguard/pkg/domain"
)

// Action identifies what happened. Actions are past-tense facts.
type Action string

const (
	ActionConsentRecorded Action = "CONSENT_RECORDED"

	ActionDSRRequested         Action = "DSR_REQUESTED"
	ActionDSRInReview          Action = "DSR_IN_REVIEW"
	ActionDSRApproved          Action = "DSR_APPROVED"
	ActionDSRRejected          Action = "DSR_REJECTED"
	ActionDSRProcessingStarted Action = "DSR_PROCESSING_STARTED"
	ActionDSRCompleted         Action = "DSR_COMPLETED"
	ActionDSRFailed            Action = "DSR_FAILED"
	ActionDSRAbandoned         Action = "DSR_ABANDONED"

	ActionRecordPurged          Action = "RECORD_PURGED"
	ActionRecordPurgeNotFound   Action = "RECORD_PURGE_NOT_FOUND"
	ActionRecordPurgeFailed     Action = "RECORD_PURGE_FAILED"
	ActionRecordPurgeReset      Action = "RECORD_PURGE_RESET"
	ActionRetentionPurgeStarted Action = "RETENTION_PURGE_STARTED"
	ActionRetentionPurgeRun     Action = "RETENTION_PURGE_RUN"

	ActionTenantRegistered  Action = "TENANT_REGISTERED"
	ActionTenantSuspended   Action = "TENANT_SUSPENDED"
	ActionTenantReactivated Action = "TENANT_REACTIVATED"
)

// Target types name the kind of entity an event refers to.
const (
	TargetConsent  = "consent"
	TargetDSR      = "dsr_request"
	TargetPurgeRun = "purge_run"
	TargetTenant   = "tenant"
)

// Event is one link of a tenant's audit chain.
//
// Seq is dense per tenant starting at 1. PrevHash is the Hash of the event with
// Seq-1, or GenesisHash for the first event.
type Event struct {
	ID         id.AuditEventID   `json:"id"`
	TenantID   id.TenantID       `json:"tenant_id"`
	Seq        int64             `json:"seq"`
	Actor      string            `json:"actor"`
	Action     Action            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    map[string]string `json:"payload"`
	PrevHash   string            `json:"prev_hash"`
	Hash       string            `json:"hash"`
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Action     Action
	TargetType string
	TargetID   string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Matches reports whether ev satisfies f, ignoring Limit.
func (f Filter) Matches(ev Event) bool {
	if f.Action != "" && ev.Action != f.Action {
		return false
	}
	if f.TargetType != "" && ev.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && ev.TargetID != f.TargetID {
		return false
	}
	if !f.Since.IsZero() && ev.OccurredAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !ev.OccurredAt.Before(f.Until) {
		return false
	}
	return true
}

// Store persists chained events. Append must read the tenant's chain head,
// link ev to it with Link, and insert it as one atomic step; the store is the
// only place that serializes concurrent appends for a tenant.
type Store interface {
	Append(ctx context.Context, ev *Event) error
	List(ctx context.Context, tenantID id.TenantID, filter Filter) ([]Event, error)
	// Scan visits the tenant's events in ascending Seq order.
	Scan(ctx context.Context, tenantID id.TenantID, fn func(Event) error) error
	CountByAction(ctx context.Context, tenantID id.TenantID, since time.Time) (map[Action]int, error)
}

// Recorder is the write-side port services depend on.
type Recorder interface {
	Append(ctx context.Context, ev Event) (*Event, error)
}

// ChainError describes one break in a tenant's chain.
type ChainError struct {
	Seq    int64  `json:"seq"`
	Reason string `json:"reason"`
}

// VerifyReport is the outcome of walking a tenant's chain.
type VerifyReport struct {
	OK       bool         `json:"ok"`
	Total    int          `json:"total"`
	LastSeq  int64        `json:"last_seq"`
	LastHash string       `json:"last_hash"`
	Errors   []ChainError `json:"errors,omitempty"`
}
