package models

import (
	"strings"
	"time"

	id "dataguard/pkg/domain"
	dErrors "dataguard/pkg/domain-errors"
)

// Purpose is the category a grant or revocation applies to.
type Purpose string

const (
	PurposeNecessary  Purpose = "NECESSARY"
	PurposeMarketing  Purpose = "MARKETING"
	PurposeAnalytics  Purpose = "ANALYTICS"
	PurposeFunctional Purpose = "FUNCTIONAL"
)

// ValidPurposes is the single source of truth for all valid consent purposes.
var ValidPurposes = map[Purpose]bool{
	PurposeNecessary:  true,
	PurposeMarketing:  true,
	PurposeAnalytics:  true,
	PurposeFunctional: true,
}

// IsValid checks if the consent purpose is one of the supported enum values.
func (p Purpose) IsValid() bool {
	return ValidPurposes[p]
}

// ParsePurpose accepts any casing of a supported purpose.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown consent purpose: "+s)
	}
	return p, nil
}

// Source names the channel a consent decision arrived through.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceUI      Source = "ui"
	SourceAPI     Source = "api"
	SourceImport  Source = "import"
)

// IsValid checks if the source is one of the supported channels.
func (s Source) IsValid() bool {
	switch s {
	case SourceWebhook, SourceUI, SourceAPI, SourceImport:
		return true
	}
	return false
}

// Record is one immutable entry of the consent ledger. A revocation is a
// Record with Granted=false; nothing is ever updated in place.
type Record struct {
	ID         id.ConsentID
	TenantID   id.TenantID
	Subject    string
	Purpose    Purpose
	Granted    bool
	Source     Source
	RecordedAt time.Time
	ExpiresAt  time.Time
}

// NewRecord creates a Record with domain invariant checks.
func NewRecord(tenantID id.TenantID, subject string, purpose Purpose, granted bool, source Source, now time.Time, validity time.Duration) (*Record, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant is required")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if !purpose.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown consent purpose: "+string(purpose))
	}
	if !source.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown consent source: "+string(source))
	}
	if validity <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "consent validity must be positive")
	}
	return &Record{
		ID:         id.NewConsentID(),
		TenantID:   tenantID,
		Subject:    subject,
		Purpose:    purpose,
		Granted:    granted,
		Source:     source,
		RecordedAt: now,
		ExpiresAt:  now.Add(validity),
	}, nil
}

// Expired reports whether the record's validity window has lapsed at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Status is the answer to "is subject consented for purpose right now".
// Known=false means there is no record or the latest one expired; consumers
// treat it as not granted.
type Status struct {
	Known      bool
	Granted    bool
	RecordID   id.ConsentID
	Source     Source
	RecordedAt time.Time
	ExpiresAt  time.Time
}

// StatusAt derives the current status from the latest record, if any.
func StatusAt(latest *Record, now time.Time) Status {
	if latest == nil || latest.Expired(now) {
		return Status{}
	}
	return Status{
		Known:      true,
		Granted:    latest.Granted,
		RecordID:   latest.ID,
		Source:     latest.Source,
		RecordedAt: latest.RecordedAt,
		ExpiresAt:  latest.ExpiresAt,
	}
}
