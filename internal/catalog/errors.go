package catalog

import "errors"

// Sentinel errors surfaced across package boundaries. Probe-level failures
// never appear here; they are absorbed into absent fields.
var (
	// ErrNotFound is returned by lookups for a domain with no stored record.
	ErrNotFound = errors.New("server not found")

	// ErrConflict is returned when creation-only semantics hit an existing domain.
	ErrConflict = errors.New("server already indexed")

	// ErrUnreachableDomain means every probe failed; no record was written.
	ErrUnreachableDomain = errors.New("domain unreachable")

	// ErrStorageUnavailable means the persistence backend cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrValidation marks malformed caller input, rejected before any work.
	ErrValidation = errors.New("invalid request")
)
