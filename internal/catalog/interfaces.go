package catalog

import (
	"context"
	"time"
)

// Repository persists server records keyed by domain.
type Repository interface {
	// Upsert inserts a record or replaces the fetched fields of an existing
	// one. Idempotent on domain: the storage layer's uniqueness constraint is
	// the authority, so concurrent first inserts cannot produce duplicates.
	Upsert(ctx context.Context, record ServerRecord) (ServerRecord, error)

	// GetByDomain fetches a record, returning ErrNotFound when absent.
	GetByDomain(ctx context.Context, domain string) (ServerRecord, error)

	// ListFiltered executes a normalized search filter and returns one page
	// plus the total match count before pagination.
	ListFiltered(ctx context.Context, filter SearchFilter) (SearchResult, error)
}

// Cache is a TTL'd record store keyed by domain. Implementations must treat
// every failure as a miss; the cache is an optimization, never a dependency.
type Cache interface {
	Get(ctx context.Context, domain string) (ServerRecord, bool)
	Set(ctx context.Context, domain string, record ServerRecord)
}

// Resolver determines the federation endpoint for a domain.
type Resolver interface {
	Resolve(ctx context.Context, domain string) Delegation
}

// Fetcher runs the metadata probes against a resolved host.
type Fetcher interface {
	FetchAll(ctx context.Context, domain, targetHost string) ProbeResult
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
