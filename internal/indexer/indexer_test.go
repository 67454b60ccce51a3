package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mxindex/mxindex/internal/catalog"
)

type fakeResolver struct {
	delegation catalog.Delegation
	calls      atomic.Int64
}

func (f *fakeResolver) Resolve(_ context.Context, domain string) catalog.Delegation {
	f.calls.Add(1)
	if f.delegation.TargetHost == "" {
		return catalog.Delegation{TargetHost: domain}
	}
	return f.delegation
}

type fakeFetcher struct {
	result catalog.ProbeResult
	delay  time.Duration
	calls  atomic.Int64
}

func (f *fakeFetcher) FetchAll(context.Context, string, string) catalog.ProbeResult {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result
}

type fakeRepo struct {
	mu      sync.Mutex
	upserts int
	err     error
}

func (f *fakeRepo) Upsert(_ context.Context, record catalog.ServerRecord) (catalog.ServerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return catalog.ServerRecord{}, f.err
	}
	f.upserts++
	record.ID = int64(f.upserts)
	return record, nil
}

func (f *fakeRepo) GetByDomain(context.Context, string) (catalog.ServerRecord, error) {
	return catalog.ServerRecord{}, catalog.ErrNotFound
}

func (f *fakeRepo) ListFiltered(context.Context, catalog.SearchFilter) (catalog.SearchResult, error) {
	return catalog.SearchResult{}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]catalog.ServerRecord
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]catalog.ServerRecord{}}
}

func (c *fakeCache) Get(_ context.Context, domain string) (catalog.ServerRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.entries[domain]
	return record, ok
}

func (c *fakeCache) Set(_ context.Context, domain string, record catalog.ServerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = record
	c.sets++
}

func reachableResult() catalog.ProbeResult {
	name := "Example"
	return catalog.ProbeResult{Name: &name}
}

func TestGetOrIndexPersistsAndCaches(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	cache := newFakeCache()
	svc := New(&fakeResolver{}, &fakeFetcher{result: reachableResult()}, repo, cache, nil)

	record, err := svc.GetOrIndex(context.Background(), "example.org", false)
	require.NoError(t, err)
	require.Equal(t, "example.org", record.Domain)
	require.NotZero(t, record.ID)

	require.Equal(t, 1, repo.upserts)
	cached, ok := cache.Get(context.Background(), "example.org")
	require.True(t, ok)
	require.Equal(t, record, cached)
}

func TestGetOrIndexCacheHitSkipsPipeline(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	fetcher := &fakeFetcher{result: reachableResult()}
	cache := newFakeCache()
	cache.Set(context.Background(), "example.org", catalog.ServerRecord{ID: 3, Domain: "example.org"})

	svc := New(resolver, fetcher, &fakeRepo{}, cache, nil)
	record, err := svc.GetOrIndex(context.Background(), "example.org", false)
	require.NoError(t, err)
	require.Equal(t, int64(3), record.ID)
	require.Zero(t, resolver.calls.Load())
	require.Zero(t, fetcher.calls.Load())
}

func TestGetOrIndexForceBypassesCache(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{result: reachableResult()}
	cache := newFakeCache()
	cache.Set(context.Background(), "example.org", catalog.ServerRecord{ID: 3, Domain: "example.org"})

	repo := &fakeRepo{}
	svc := New(&fakeResolver{}, fetcher, repo, cache, nil)
	_, err := svc.GetOrIndex(context.Background(), "example.org", true)
	require.NoError(t, err)
	require.Equal(t, int64(1), fetcher.calls.Load())
	require.Equal(t, 1, repo.upserts)
}

func TestGetOrIndexUnreachableDoesNotPersist(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	cache := newFakeCache()
	svc := New(&fakeResolver{}, &fakeFetcher{}, repo, cache, nil)

	_, err := svc.GetOrIndex(context.Background(), "dead.example.org", false)
	require.ErrorIs(t, err, catalog.ErrUnreachableDomain)
	require.Zero(t, repo.upserts)
	require.Zero(t, cache.sets)
}

func TestGetOrIndexStorageError(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{err: catalog.ErrStorageUnavailable}
	svc := New(&fakeResolver{}, &fakeFetcher{result: reachableResult()}, repo, newFakeCache(), nil)

	_, err := svc.GetOrIndex(context.Background(), "example.org", false)
	require.ErrorIs(t, err, catalog.ErrStorageUnavailable)
}

func TestGetOrIndexNilCache(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	svc := New(&fakeResolver{}, &fakeFetcher{result: reachableResult()}, repo, nil, nil)

	record, err := svc.GetOrIndex(context.Background(), "example.org", false)
	require.NoError(t, err)
	require.Equal(t, "example.org", record.Domain)
}

// Concurrent callers for one domain share a single pipeline run.
func TestGetOrIndexSingleFlight(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{result: reachableResult(), delay: 50 * time.Millisecond}
	repo := &fakeRepo{}
	svc := New(&fakeResolver{}, fetcher, repo, nil, nil)

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, errs[i] = svc.GetOrIndex(context.Background(), "example.org", false)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), fetcher.calls.Load())
	require.Equal(t, 1, repo.upserts)
}

type ctxFetcher struct {
	delay time.Duration
	calls atomic.Int64
}

func (f *ctxFetcher) FetchAll(ctx context.Context, _, _ string) catalog.ProbeResult {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
		return reachableResult()
	case <-ctx.Done():
		return catalog.ProbeResult{}
	}
}

// A caller that joins an in-flight pipeline must get a result even when the
// caller that started the flight cancels its context mid-run.
func TestGetOrIndexJoinedCallerSurvivesWinnerCancel(t *testing.T) {
	t.Parallel()

	fetcher := &ctxFetcher{delay: 100 * time.Millisecond}
	repo := &fakeRepo{}
	svc := New(&fakeResolver{}, fetcher, repo, nil, nil)

	winnerCtx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	var winnerErr, joinedErr error
	var joined catalog.ServerRecord
	go func() {
		defer wg.Done()
		_, winnerErr = svc.GetOrIndex(winnerCtx, "example.org", false)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		joined, joinedErr = svc.GetOrIndex(context.Background(), "example.org", false)
	}()

	time.Sleep(40 * time.Millisecond)
	cancel()
	wg.Wait()

	require.NoError(t, winnerErr)
	require.NoError(t, joinedErr)
	require.Equal(t, "example.org", joined.Domain)
	require.Equal(t, int64(1), fetcher.calls.Load())
	require.Equal(t, 1, repo.upserts)
}

func TestGetOrIndexDistinctDomainsRunIndependently(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{result: reachableResult()}
	repo := &fakeRepo{}
	svc := New(&fakeResolver{}, fetcher, repo, nil, nil)

	domains := []string{"a.example.org", "b.example.org"}
	errs := make([]error, len(domains))
	var wg sync.WaitGroup
	for i, domain := range domains {
		i, domain := i, domain
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.GetOrIndex(context.Background(), domain, false)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int64(2), fetcher.calls.Load())
	require.Equal(t, 2, repo.upserts)
}
