package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the registry client return
// these (optionally wrapped) so the orchestrator can translate them into domain
// errors or per-household results.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store or registry
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrUnavailable: store or registry temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domainerrors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
