package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	cachememory "github.com/mxindex/mxindex/internal/cache/memory"
	"github.com/mxindex/mxindex/internal/cache/rediscache"
	"github.com/mxindex/mxindex/internal/catalog"
	"github.com/mxindex/mxindex/internal/config"
	"github.com/mxindex/mxindex/internal/indexer"
	"github.com/mxindex/mxindex/internal/probe"
	storememory "github.com/mxindex/mxindex/internal/storage/memory"
	"github.com/mxindex/mxindex/internal/storage/postgres"
)

// buildRepository selects the Postgres store when a DSN is configured, the
// in-memory store otherwise. The returned func releases held resources.
func buildRepository(ctx context.Context, cfg config.Config, clock catalog.Clock, logger *zap.Logger) (catalog.Repository, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("no db.dsn configured, using in-memory repository")
		return storememory.NewServerStore(clock), func() {}, nil
	}
	store, err := postgres.NewServerStore(ctx, postgres.ServerStoreConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeSeconds) * time.Second,
	}, clock)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// buildCache connects to Redis when enabled, degrading to the in-memory
// cache when Redis is unreachable. The cache is an optimization, so an
// unreachable Redis never refuses startup.
func buildCache(ctx context.Context, cfg config.Config, clock catalog.Clock, logger *zap.Logger) (catalog.Cache, func()) {
	if !cfg.Cache.Enabled {
		return cachememory.New(cfg.CacheTTL(), clock), func() {}
	}
	redisCache, err := rediscache.Connect(ctx, rediscache.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		TTL:      cfg.CacheTTL(),
	}, logger.Named("cache"))
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory cache", zap.Error(err))
		return cachememory.New(cfg.CacheTTL(), clock), func() {}
	}
	return redisCache, func() {
		if closeErr := redisCache.Close(); closeErr != nil {
			logger.Warn("redis close failed", zap.Error(closeErr))
		}
	}
}

// buildPipeline assembles the indexing service from its probe stages.
func buildPipeline(cfg config.Config, repo catalog.Repository, cache catalog.Cache, logger *zap.Logger) *indexer.Service {
	probeCfg := probe.Config{
		Timeout:           cfg.ProbeTimeout(),
		UserAgent:         cfg.Probe.UserAgent,
		RequestsPerSecond: cfg.Probe.RequestsPerSecond,
		Burst:             cfg.Probe.Burst,
	}
	resolver := probe.NewResolver(probeCfg, logger.Named("resolver"))
	fetcher := probe.NewFetcher(probeCfg, logger.Named("fetcher"))
	return indexer.New(resolver, fetcher, repo, cache, logger.Named("indexer"))
}
