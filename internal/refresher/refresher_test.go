package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mxindex/mxindex/internal/catalog"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type fakeLister struct {
	mu      sync.Mutex
	domains []string
	err     error
	cutoffs []time.Time
	limits  []int
}

func (f *fakeLister) ListStale(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	return f.domains, f.err
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []string
	forced  []bool
	fail    map[string]error
}

func (f *fakeIndexer) GetOrIndex(_ context.Context, domain string, force bool) (catalog.ServerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, domain)
	f.forced = append(f.forced, force)
	if err := f.fail[domain]; err != nil {
		return catalog.ServerRecord{}, err
	}
	return catalog.ServerRecord{Domain: domain}, nil
}

func TestSweepReindexesStaleDomains(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	lister := &fakeLister{domains: []string{"a.org", "b.org"}}
	indexer := &fakeIndexer{}

	svc := New(lister, indexer, fixedClock{now: now}, Config{
		MaxAge:    time.Hour,
		BatchSize: 10,
	}, nil)
	svc.sweep(context.Background())

	require.Equal(t, []time.Time{now.Add(-time.Hour)}, lister.cutoffs)
	require.Equal(t, []int{10}, lister.limits)
	require.Equal(t, []string{"a.org", "b.org"}, indexer.indexed)
	require.Equal(t, []bool{true, true}, indexer.forced)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{domains: []string{"dead.org", "live.org"}}
	indexer := &fakeIndexer{fail: map[string]error{"dead.org": catalog.ErrUnreachableDomain}}

	svc := New(lister, indexer, fixedClock{now: time.Now()}, Config{}, nil)
	svc.sweep(context.Background())

	require.Equal(t, []string{"dead.org", "live.org"}, indexer.indexed)
}

func TestSweepListerError(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{err: errors.New("db down")}
	indexer := &fakeIndexer{}

	svc := New(lister, indexer, fixedClock{now: time.Now()}, Config{}, nil)
	svc.sweep(context.Background())

	require.Empty(t, indexer.indexed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{domains: []string{"a.org"}}
	indexer := &fakeIndexer{}
	svc := New(lister, indexer, fixedClock{now: time.Now()}, Config{
		Interval: 10 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	indexer.mu.Lock()
	defer indexer.mu.Unlock()
	require.NotEmpty(t, indexer.indexed)
}
