package handler

import (
	"time"

	"dataguard/internal/retention/runs"
)

// RunResponse describes one purge run.
type RunResponse struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Cutoff     time.Time  `json:"cutoff"`
	Trigger    string     `json:"trigger"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Succeeded  int        `json:"succeeded"`
	NotFound   int        `json:"not_found"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
}

type ListResponse struct {
	Runs []RunResponse `json:"runs"`
}

func toRunResponse(r *runs.Run) RunResponse {
	return RunResponse{
		ID:         r.ID.String(),
		TenantID:   r.TenantID.String(),
		Cutoff:     r.Cutoff,
		Trigger:    string(r.Trigger),
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Succeeded:  r.Succeeded,
		NotFound:   r.NotFound,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
	}
}

// FailureResponse describes a record that exhausted its purge attempts.
type FailureResponse struct {
	RecordType    string    `json:"record_type"`
	RecordID      string    `json:"record_id"`
	Attempts      int       `json:"attempts"`
	LastReason    string    `json:"last_reason"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

type FailureListResponse struct {
	Failures []FailureResponse `json:"failures"`
}

type ResetResponse struct {
	RecordType string `json:"record_type"`
	RecordID   string `json:"record_id"`
	Attempts   int    `json:"attempts"`
}

func toFailureResponse(f runs.Failure) FailureResponse {
	return FailureResponse{
		RecordType:    f.RecordType,
		RecordID:      f.RecordID,
		Attempts:      f.Attempts,
		LastReason:    f.LastReason,
		LastAttemptAt: f.LastAttempt,
	}
}
