// Package rediscache provides a Redis-backed record cache.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mxindex/mxindex/internal/catalog"
)

const keyPrefix = "server:"

// DefaultTTL is applied when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache stores server records in Redis with a TTL. Every failure is treated
// as a miss and logged at debug level: the cache is an optimization and must
// never fail an indexing operation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// Connect creates a Redis client and verifies the connection with a ping.
func Connect(ctx context.Context, opts Options, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.TTL, logger), nil
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get fetches the cached record for domain. Unreachable Redis, a missing key,
// and an undecodable payload all report a miss.
func (c *Cache) Get(ctx context.Context, domain string) (catalog.ServerRecord, bool) {
	data, err := c.client.Get(ctx, key(domain)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("cache get failed", zap.String("domain", domain), zap.Error(err))
		}
		return catalog.ServerRecord{}, false
	}
	var record catalog.ServerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		c.logger.Debug("cache payload undecodable", zap.String("domain", domain), zap.Error(err))
		return catalog.ServerRecord{}, false
	}
	return record, true
}

// Set writes the record with a fresh TTL. Failures are swallowed: the prior
// entry, if any, remains until natural expiry.
func (c *Cache) Set(ctx context.Context, domain string, record catalog.ServerRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		c.logger.Debug("cache marshal failed", zap.String("domain", domain), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key(domain), data, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", zap.String("domain", domain), zap.Error(err))
	}
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func key(domain string) string {
	return keyPrefix + domain
}
