// Package indexer implements the discovery pipeline: resolve delegation,
// fan out the metadata probes, merge the partial result, persist it.
package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mxindex/mxindex/internal/catalog"
	"github.com/mxindex/mxindex/internal/telemetry"
)

// Service runs indexing pipelines with per-domain single-flight deduplication
// and a read-through record cache.
type Service struct {
	resolver catalog.Resolver
	fetcher  catalog.Fetcher
	repo     catalog.Repository
	cache    catalog.Cache
	group    singleflight.Group
	logger   *zap.Logger
}

// New constructs a Service. The cache may be nil, in which case every call
// executes the pipeline directly.
func New(
	resolver catalog.Resolver,
	fetcher catalog.Fetcher,
	repo catalog.Repository,
	cache catalog.Cache,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver: resolver,
		fetcher:  fetcher,
		repo:     repo,
		cache:    cache,
		logger:   logger,
	}
}

// GetOrIndex returns the record for domain, indexing it if no fresh cache
// entry exists. force skips the cache read and always re-runs the pipeline.
// Concurrent callers for the same domain share one in-flight execution; a
// forced call joins the same flight as unforced ones, so at most one live
// pipeline exists per domain.
func (s *Service) GetOrIndex(ctx context.Context, domain string, force bool) (catalog.ServerRecord, error) {
	if !force && s.cache != nil {
		if record, ok := s.cache.Get(ctx, domain); ok {
			telemetry.ObserveCacheLookup(true)
			s.logger.Debug("cache hit", zap.String("domain", domain))
			return record, nil
		}
		telemetry.ObserveCacheLookup(false)
	}

	v, err, shared := s.group.Do(domain, func() (any, error) {
		// The flight outlives any one caller: detach from the winner's
		// cancellation so a joined caller does not inherit its failure.
		// The probes' own timeouts still bound the pipeline.
		return s.index(context.WithoutCancel(ctx), domain)
	})
	if err != nil {
		return catalog.ServerRecord{}, err
	}
	if shared {
		s.logger.Debug("joined in-flight index", zap.String("domain", domain))
	}
	return v.(catalog.ServerRecord), nil
}

// index runs one full pipeline for domain. Called at most once concurrently
// per domain via the singleflight group.
func (s *Service) index(ctx context.Context, domain string) (catalog.ServerRecord, error) {
	start := time.Now()

	delegation := s.resolver.Resolve(ctx, domain)
	result := s.fetcher.FetchAll(ctx, domain, delegation.TargetHost)

	record, err := Merge(domain, delegation, result)
	if err != nil {
		telemetry.ObserveIndex("unreachable", time.Since(start))
		s.logger.Warn("domain unreachable",
			zap.String("domain", domain),
			zap.String("target", delegation.TargetHost),
		)
		return catalog.ServerRecord{}, err
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		telemetry.ObserveIndex("storage_error", time.Since(start))
		return catalog.ServerRecord{}, err
	}

	if s.cache != nil {
		// Best effort: a cache write failure degrades to recomputation.
		s.cache.Set(ctx, domain, stored)
	}

	telemetry.ObserveIndex("success", time.Since(start))
	s.logger.Info("domain indexed",
		zap.String("domain", domain),
		zap.String("target", delegation.TargetHost),
		zap.Duration("duration", time.Since(start)),
	)
	return stored, nil
}
