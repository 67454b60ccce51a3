// Package refresher re-indexes stale catalog entries in the background so
// records converge toward what servers currently publish without caller
// traffic.
package refresher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mxindex/mxindex/internal/catalog"
)

// StaleLister picks re-index candidates, oldest first.
type StaleLister interface {
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Indexer runs the discovery pipeline for a single domain.
type Indexer interface {
	GetOrIndex(ctx context.Context, domain string, force bool) (catalog.ServerRecord, error)
}

// Config controls the refresh loop.
type Config struct {
	// Interval is the pause between refresh sweeps.
	Interval time.Duration
	// MaxAge marks a record stale once its last update is older than this.
	MaxAge time.Duration
	// BatchSize caps the domains re-indexed per sweep.
	BatchSize int
}

// Service is the background refresh loop.
type Service struct {
	lister  StaleLister
	indexer Indexer
	clock   catalog.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Service.
func New(lister StaleLister, indexer Indexer, clock catalog.Clock, cfg Config, logger *zap.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		lister:  lister,
		indexer: indexer,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run blocks, sweeping for stale records every interval until the context
// finishes. A failed domain is logged and skipped; it stays stale and is
// retried on a later sweep.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.MaxAge)
	domains, err := s.lister.ListStale(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Warn("stale listing failed", zap.Error(err))
		return
	}
	if len(domains) == 0 {
		return
	}

	s.logger.Info("refreshing stale servers", zap.Int("count", len(domains)))
	for _, domain := range domains {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.indexer.GetOrIndex(ctx, domain, true); err != nil {
			s.logger.Warn("refresh failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
		}
	}
}
