// Package memory provides an in-memory TTL cache for development/testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mxindex/mxindex/internal/catalog"
)

type entry struct {
	record    catalog.ServerRecord
	expiresAt time.Time
}

// Cache implements catalog.Cache with a map and per-entry expiry. Expired
// entries are dropped lazily on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   catalog.Clock
}

// New constructs a Cache with the given TTL.
func New(ttl time.Duration, clock catalog.Clock) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached record if present and not expired.
func (c *Cache) Get(_ context.Context, domain string) (catalog.ServerRecord, bool) {
	c.mu.RLock()
	e, ok := c.entries[domain]
	c.mu.RUnlock()
	if !ok {
		return catalog.ServerRecord{}, false
	}
	if c.clock.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, domain)
		c.mu.Unlock()
		return catalog.ServerRecord{}, false
	}
	return e.record, true
}

// Set stores the record with a fresh TTL.
func (c *Cache) Set(_ context.Context, domain string, record catalog.ServerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = entry{
		record:    record,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
