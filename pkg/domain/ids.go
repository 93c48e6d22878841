// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "dataguard/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a TenantID where a DSRID is expected.
type (
	TenantID     uuid.UUID
	ConsentID    uuid.UUID
	DSRID        uuid.UUID
	PurgeRunID   uuid.UUID
	AuditEventID uuid.UUID
)

// New* constructors mint random identifiers for freshly created aggregates.

func NewTenantID() TenantID         { return TenantID(uuid.New()) }
func NewConsentID() ConsentID       { return ConsentID(uuid.New()) }
func NewDSRID() DSRID               { return DSRID(uuid.New()) }
func NewPurgeRunID() PurgeRunID     { return PurgeRunID(uuid.New()) }
func NewAuditEventID() AuditEventID { return AuditEventID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

func ParseDSRID(s string) (DSRID, error) {
	id, err := parseUUID(s, "request ID")
	return DSRID(id), err
}

func ParsePurgeRunID(s string) (PurgeRunID, error) {
	id, err := parseUUID(s, "purge run ID")
	return PurgeRunID(id), err
}

// String methods - for logging and debugging.

func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id ConsentID) String() string    { return uuid.UUID(id).String() }
func (id DSRID) String() string        { return uuid.UUID(id).String() }
func (id PurgeRunID) String() string   { return uuid.UUID(id).String() }
func (id AuditEventID) String() string { return uuid.UUID(id).String() }

// MarshalText methods - IDs serialize as canonical UUID strings in JSON.

func (id TenantID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ConsentID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id DSRID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id PurgeRunID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id AuditEventID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error     { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *ConsentID) UnmarshalText(b []byte) error    { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *DSRID) UnmarshalText(b []byte) error        { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *PurgeRunID) UnmarshalText(b []byte) error   { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *AuditEventID) UnmarshalText(b []byte) error { return unmarshalUUID(b, (*uuid.UUID)(id)) }

// IsNil checks - used for service-layer validation.

func (id TenantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id DSRID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PurgeRunID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}

func unmarshalUUID(b []byte, dst *uuid.UUID) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}
