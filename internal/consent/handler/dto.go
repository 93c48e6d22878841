package handler

import (
	"strings"
	"time"

	"dataguard/internal/consent/models"
	"dataguard/pkg/validation"
)

// RecordRequest is the body of POST /consents.
type RecordRequest struct {
	Subject string `json:"subject" validate:"required,notblank,max=320"`
	Purpose string `json:"purpose" validate:"required"`
	Granted *bool  `json:"granted" validate:"required"`
	Source  string `json:"source" validate:"required"`
}

func (r *RecordRequest) Normalize() {
	r.Subject = strings.TrimSpace(r.Subject)
	r.Purpose = strings.ToUpper(strings.TrimSpace(r.Purpose))
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
}

func (r *RecordRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if _, err := models.ParsePurpose(r.Purpose); err != nil {
		return err
	}
	return nil
}

// RecordResponse describes one ledger entry.
type RecordResponse struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Purpose    string    `json:"purpose"`
	Granted    bool      `json:"granted"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// StatusResponse answers GET /consents/status.
type StatusResponse struct {
	Subject    string     `json:"subject"`
	Purpose    string     `json:"purpose"`
	Status     string     `json:"status"`
	Granted    bool       `json:"granted"`
	Source     string     `json:"source,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// HistoryResponse lists a subject's decisions, newest first.
type HistoryResponse struct {
	Subject string           `json:"subject"`
	Records []RecordResponse `json:"records"`
}

func toRecordResponse(rec *models.Record) RecordResponse {
	return RecordResponse{
		ID:         rec.ID.String(),
		Subject:    rec.Subject,
		Purpose:    string(rec.Purpose),
		Granted:    rec.Granted,
		Source:     string(rec.Source),
		RecordedAt: rec.RecordedAt,
		ExpiresAt:  rec.ExpiresAt,
	}
}

func toStatusResponse(subject string, purpose models.Purpose, st models.Status) StatusResponse {
	resp := StatusResponse{Subject: subject, Purpose: string(purpose), Status: "unknown"}
	if !st.Known {
		return resp
	}
	resp.Granted = st.Granted
	resp.Status = "denied"
	if st.Granted {
		resp.Status = "granted"
	}
	resp.Source = string(st.Source)
	recordedAt, expiresAt := st.RecordedAt, st.ExpiresAt
	resp.RecordedAt = &recordedAt
	resp.ExpiresAt = &expiresAt
	return resp
}
