// Package models holds the data-subject request aggregate and its lifecycle.
package models

import (
	"fmt"
	"strings"
	"time"

	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
)

// Kind is what the data subject asks for.
type Kind string

const (
	KindAccess        Kind = "ACCESS"
	KindErasure       Kind = "ERASURE"
	KindPortability   Kind = "PORTABILITY"
	KindRectification Kind = "RECTIFICATION"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindAccess, KindErasure, KindPortability, KindRectification:
		return true
	}
	return false
}

// ParseKind accepts any casing of a supported kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown request kind: "+s)
	}
	return k, nil
}

// Status is a lifecycle state.
type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusInReview   Status = "IN_REVIEW"
	StatusApproved   Status = "APPROVED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	StatusFailed     Status = "FAILED"
)

// AllStatuses lists every state in lifecycle order.
var AllStatuses = []Status{
	StatusRequested, StatusInReview, StatusApproved, StatusProcessing,
	StatusCompleted, StatusRejected, StatusFailed,
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown request status: "+s)
}

// Event drives a transition.
type Event string

const (
	EventReview   Event = "review"
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
	EventRetry    Event = "retry"
	EventAbandon  Event = "abandon"
)

var transitions = map[Status]map[Event]Status{
	StatusRequested:  {EventReview: StatusInReview},
	StatusInReview:   {EventApprove: StatusApproved, EventReject: StatusRejected},
	StatusApproved:   {EventStart: StatusProcessing},
	StatusProcessing: {EventComplete: StatusCompleted, EventFail: StatusFailed},
	StatusFailed:     {EventRetry: StatusProcessing, EventAbandon: StatusRejected},
}

// Next looks up the state ev leads to from from. Any pair missing from the
// table is an invalid transition.
func Next(from Status, ev Event) (Status, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("cannot %s a request in %s", ev, from))
	}
	return to, nil
}

// Result is what a closed request produced.
type Result struct {
	BundleRef string        `json:"bundle_ref,omitempty"`
	Purge     *PurgeSummary `json:"purge,omitempty"`
	Note      string        `json:"note,omitempty"`
}

// PurgeSummary condenses an erasure run for storage on the request.
type PurgeSummary struct {
	Succeeded int              `json:"succeeded"`
	NotFound  int              `json:"not_found"`
	Failed    int              `json:"failed"`
	Failures  []PurgeFailEntry `json:"failures,omitempty"`
}

type PurgeFailEntry struct {
	RecordType string `json:"record_type"`
	RecordID   string `json:"record_id"`
	Reason     string `json:"reason"`
}

// Request is a data-subject request.
type Request struct {
	ID                  id.DSRID
	TenantID            id.TenantID
	RequesterContact    string
	SubjectID           string
	Kind                Kind
	Reason              string
	Status              Status
	Reviewer            string
	FailureReason       string
	Result              *Result
	CreatedAt           time.Time
	DecidedAt           *time.Time
	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
	Version             int
}

// NewRequest creates a Request in REQUESTED. The subject defaults to the
// requester contact.
func NewRequest(tenantID id.TenantID, kind Kind, contact, subject, reason string, now time.Time) (*Request, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown request kind: "+string(kind))
	}
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requester contact is required")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = contact
	}
	return &Request{
		ID:               id.NewDSRID(),
		TenantID:         tenantID,
		RequesterContact: contact,
		SubjectID:        subject,
		Kind:             kind,
		Reason:           strings.TrimSpace(reason),
		Status:           StatusRequested,
		CreatedAt:        now,
		Version:          1,
	}, nil
}

// Apply moves the request along ev and stamps the matching timestamp.
func (r *Request) Apply(ev Event, now time.Time) error {
	to, err := Next(r.Status, ev)
	if err != nil {
		return err
	}
	switch ev {
	case EventApprove, EventReject, EventAbandon:
		r.DecidedAt = &now
	case EventStart, EventRetry:
		r.ProcessingStartedAt = &now
		r.FailureReason = ""
	case EventComplete:
		r.CompletedAt = &now
	}
	r.Status = to
	return nil
}

// ClosedAt is when the request reached a terminal state, if it has.
func (r *Request) ClosedAt() (time.Time, bool) {
	switch r.Status {
	case StatusCompleted:
		if r.CompletedAt != nil {
			return *r.CompletedAt, true
		}
	case StatusRejected:
		if r.DecidedAt != nil {
			return *r.DecidedAt, true
		}
	}
	return time.Time{}, false
}

// IsOverdue reports whether an open request has outlived the processing budget.
func (r *Request) IsOverdue(now time.Time, budget time.Duration) bool {
	return !r.Status.IsTerminal() && now.Sub(r.CreatedAt) > budget
}

// ClosedWithin reports whether the request closed inside the budget.
func (r *Request) ClosedWithin(budget time.Duration) bool {
	closed, ok := r.ClosedAt()
	return ok && closed.Sub(r.CreatedAt) <= budget
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	c := *r
	if r.Result != nil {
		res := *r.Result
		if r.Result.Purge != nil {
			p := *r.Result.Purge
			p.Failures = append([]PurgeFailEntry(nil), r.Result.Purge.Failures...)
			res.Purge = &p
		}
		c.Result = &res
	}
	c.DecidedAt = cloneTime(r.DecidedAt)
	c.ProcessingStartedAt = cloneTime(r.ProcessingStartedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
