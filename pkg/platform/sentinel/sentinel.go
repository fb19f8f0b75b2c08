package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator clients
// return these (optionally wrapped) so services can translate them into domain
// errors at the boundary.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: session or token lifetime has passed
// - ErrRevoked: session explicitly revoked, no transition back
// - ErrConflict: entity already exists
// - ErrUnavailable: collaborator temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrRevoked     = errors.New("revoked")
	ErrUnavailable = errors.New("unavailable")
)
