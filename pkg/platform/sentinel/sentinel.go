package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and sync-layer code return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the store or mirror
// - ErrConflict: uniqueness violation
// - ErrStaleSnapshot: a write raced and a later revision already won
// - ErrUnavailable: remote store temporarily unreachable (fallback cache may serve reads)
// - ErrUnsubscribed: subscription token already released
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrStaleSnapshot = errors.New("stale snapshot")
	ErrUnavailable   = errors.New("unavailable")
	ErrUnsubscribed  = errors.New("unsubscribed")
)
