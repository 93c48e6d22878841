// Package runs records purge runs and the per-record outcomes they produce.
// The outcomes of earlier runs form the ledger that makes reruns idempotent.
package runs

import (
	"sort"
	"strings"
	"time"

	"dataguard/internal/purge"
	id "dataguard/pkg/domain"
)

// Trigger tells why a run was started.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Status of a run.
type Status string

const (
	StatusRunning     Status = "RUNNING"
	StatusCompleted   Status = "COMPLETED"
	StatusInterrupted Status = "INTERRUPTED"
)

// Run is one execution of the purge scheduler against one tenant.
type Run struct {
	ID         id.PurgeRunID `json:"id"`
	TenantID   id.TenantID   `json:"tenant_id"`
	Cutoff     time.Time     `json:"cutoff"`
	Trigger    Trigger       `json:"trigger"`
	Status     Status        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Succeeded  int           `json:"succeeded"`
	NotFound   int           `json:"not_found"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
}

func NewRun(tenantID id.TenantID, cutoff time.Time, trigger Trigger, now time.Time) *Run {
	return &Run{
		ID:        id.NewPurgeRunID(),
		TenantID:  tenantID,
		Cutoff:    cutoff,
		Trigger:   trigger,
		Status:    StatusRunning,
		StartedAt: now,
	}
}

// Count adds one outcome to the run totals.
func (r *Run) Count(status purge.Status) {
	switch status {
	case purge.StatusSuccess:
		r.Succeeded++
	case purge.StatusNotFound:
		r.NotFound++
	default:
		r.Failed++
	}
}

// Finish closes the run. A run whose context was cancelled is INTERRUPTED
// and will be resumed from the ledger on the next tick.
func (r *Run) Finish(now time.Time, interrupted bool) {
	r.Status = StatusCompleted
	if interrupted {
		r.Status = StatusInterrupted
	}
	r.FinishedAt = &now
}

// Attempted is the number of records the run handed to the executor.
func (r *Run) Attempted() int {
	return r.Succeeded + r.NotFound + r.Failed
}

// Outcome is the result of one purge attempt inside a run.
type Outcome struct {
	RunID       id.PurgeRunID `json:"run_id"`
	TenantID    id.TenantID   `json:"tenant_id"`
	RecordType  string        `json:"record_type"`
	RecordID    string        `json:"record_id"`
	Status      purge.Status  `json:"outcome"`
	Reason      string        `json:"reason,omitempty"`
	AttemptedAt time.Time     `json:"attempted_at"`
}

func NewOutcome(run *Run, ref purge.RecordRef, out purge.Outcome, now time.Time) Outcome {
	return Outcome{
		RunID:       run.ID,
		TenantID:    run.TenantID,
		RecordType:  ref.Type,
		RecordID:    ref.ID,
		Status:      out.Status,
		Reason:      out.Reason,
		AttemptedAt: now,
	}
}

func (o Outcome) Key() string {
	return Key(o.RecordType, o.RecordID)
}

// Key matches purge.RecordRef.Key.
func Key(recordType, recordID string) string {
	return recordType + "/" + recordID
}

// Failure tracks the failed attempts of one record that has not been purged.
type Failure struct {
	RecordType  string    `json:"record_type"`
	RecordID    string    `json:"record_id"`
	Attempts    int       `json:"attempts"`
	LastReason  string    `json:"last_reason"`
	LastAttempt time.Time `json:"last_attempt_at"`
}

// Ledger summarises every earlier outcome of a tenant. Keys are
// purge.RecordRef.Key values.
type Ledger struct {
	done     map[string]struct{}
	failures map[string]*Failure
}

func NewLedger() *Ledger {
	return &Ledger{done: make(map[string]struct{}), failures: make(map[string]*Failure)}
}

// BuildLedger folds outcomes in attempt order.
func BuildLedger(outcomes []Outcome) *Ledger {
	sorted := append([]Outcome(nil), outcomes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AttemptedAt.Before(sorted[j].AttemptedAt) })
	l := NewLedger()
	for _, o := range sorted {
		l.Observe(o)
	}
	return l
}

// Observe applies one outcome. SUCCESS and NOT_FOUND both settle the record.
// Attempts cut short by cancellation do not count towards the retry bound.
func (l *Ledger) Observe(o Outcome) {
	key := o.Key()
	if o.Status != purge.StatusFailed {
		l.done[key] = struct{}{}
		delete(l.failures, key)
		return
	}
	if _, ok := l.done[key]; ok || strings.HasPrefix(o.Reason, purge.ReasonInterrupted) {
		return
	}
	f, ok := l.failures[key]
	if !ok {
		f = &Failure{RecordType: o.RecordType, RecordID: o.RecordID}
		l.failures[key] = f
	}
	f.Attempts++
	f.LastReason = o.Reason
	f.LastAttempt = o.AttemptedAt
}

// Reset forgets the failed attempts of an unsettled record so the scheduler
// tries it again. It reports whether there was anything to forget.
func (l *Ledger) Reset(key string) bool {
	if _, ok := l.failures[key]; !ok {
		return false
	}
	delete(l.failures, key)
	return true
}

func (l *Ledger) Settled(key string) bool {
	_, ok := l.done[key]
	return ok
}

func (l *Ledger) Attempts(key string) int {
	if f, ok := l.failures[key]; ok {
		return f.Attempts
	}
	return 0
}

// Escalated returns the unsettled records with at least maxAttempts failures,
// ordered by record key.
func (l *Ledger) Escalated(maxAttempts int) []Failure {
	out := make([]Failure, 0)
	for _, f := range l.failures {
		if f.Attempts >= maxAttempts {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordType != out[j].RecordType {
			return out[i].RecordType < out[j].RecordType
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out
}
