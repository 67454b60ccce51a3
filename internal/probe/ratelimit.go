package probe

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// limiter applies a per-host token bucket to outbound probes so one pipeline
// burst cannot hammer a single homeserver.
type limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	disabled bool
}

func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return &limiter{disabled: true}
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *limiter) wait(ctx context.Context, host string) error {
	if l.disabled {
		return nil
	}
	l.mu.Lock()
	bucket, ok := l.buckets[host]
	if !ok {
		bucket = rate.NewLimiter(l.rps, l.burst)
		l.buckets[host] = bucket
	}
	l.mu.Unlock()

	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	return nil
}
