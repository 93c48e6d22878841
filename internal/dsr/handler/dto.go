package handler

import (
	"strings"
	"time"

	"dataguard/internal/dsr/models"
	"dataguard/pkg/validation"
)

// SubmitRequest is the body of POST /dsr.
type SubmitRequest struct {
	Kind             string `json:"kind" validate:"required"`
	RequesterContact string `json:"requester_contact" validate:"required,notblank,max=320"`
	SubjectID        string `json:"subject_id" validate:"max=320"`
	Reason           string `json:"reason" validate:"max=2000"`
}

func (r *SubmitRequest) Normalize() {
	r.Kind = strings.ToUpper(strings.TrimSpace(r.Kind))
	r.RequesterContact = strings.TrimSpace(r.RequesterContact)
	r.SubjectID = strings.TrimSpace(r.SubjectID)
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *SubmitRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	_, err := models.ParseKind(r.Kind)
	return err
}

// ReviewerRequest is the body of review and abandon. An empty reviewer falls
// back to the calling operator.
type ReviewerRequest struct {
	Reviewer string `json:"reviewer" validate:"max=320"`
}

func (r *ReviewerRequest) Normalize() {
	r.Reviewer = strings.TrimSpace(r.Reviewer)
}

func (r *ReviewerRequest) Validate() error {
	return validation.Validate(r)
}

// DecisionRequest is the body of POST /dsr/{requestID}/decision.
type DecisionRequest struct {
	Approve  *bool  `json:"approve" validate:"required"`
	Reviewer string `json:"reviewer" validate:"max=320"`
}

func (r *DecisionRequest) Normalize() {
	r.Reviewer = strings.TrimSpace(r.Reviewer)
}

func (r *DecisionRequest) Validate() error {
	return validation.Validate(r)
}

type RequestResponse struct {
	ID                  string         `json:"id"`
	Kind                string         `json:"kind"`
	Status              string         `json:"status"`
	RequesterContact    string         `json:"requester_contact"`
	SubjectID           string         `json:"subject_id"`
	Reason              string         `json:"reason,omitempty"`
	Reviewer            string         `json:"reviewer,omitempty"`
	FailureReason       string         `json:"failure_reason,omitempty"`
	Result              *models.Result `json:"result,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	DecidedAt           *time.Time     `json:"decided_at,omitempty"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
}

type ListResponse struct {
	Requests []RequestResponse `json:"requests"`
}

func toRequestResponse(req *models.Request) RequestResponse {
	return RequestResponse{
		ID:                  req.ID.String(),
		Kind:                string(req.Kind),
		Status:              string(req.Status),
		RequesterContact:    req.RequesterContact,
		SubjectID:           req.SubjectID,
		Reason:              req.Reason,
		Reviewer:            req.Reviewer,
		FailureReason:       req.FailureReason,
		Result:              req.Result,
		CreatedAt:           req.CreatedAt,
		DecidedAt:           req.DecidedAt,
		ProcessingStartedAt: req.ProcessingStartedAt,
		CompletedAt:         req.CompletedAt,
	}
}
