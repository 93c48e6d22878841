package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors exactly once.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: optimistic version check failed or unique key already taken
// - ErrLimitExceeded: a bounded insert was refused because the bound was reached
// - ErrLeaseHeld: another worker holds the lease for the resource
// - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrLeaseHeld     = errors.New("lease held")
	ErrUnavailable   = errors.New("unavailable")
)
