package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"librarian/internal/cache"
)

func newTestReader(c *cache.Cache) *Reader {
	return NewReader(c, rate.NewLimiter(rate.Inf, 1), nil)
}

// blockingFetch returns a fetch that waits until released (or its ctx
// dies) before returning value.
func blockingFetch(value any) (fetchFunc, func()) {
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return value, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	once := sync.OnceFunc(func() { close(release) })
	return fetch, once
}

func TestReader_MissFetchesAndCaches(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindBooks, cache.Query{})

	got, err := r.Load(context.Background(), key, func(ctx context.Context) (any, error) {
		return []int{1, 2}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, entry.Collection)
}

func TestReader_FreshHitSkipsFetch(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindBooks, cache.Query{})
	c.Set(key, []int{7})

	fetched := false
	got, err := r.Load(context.Background(), key, func(ctx context.Context) (any, error) {
		fetched = true
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{7}, got)
	assert.False(t, fetched)
}

func TestReader_RefreshBypassesFreshEntry(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindBooks, cache.Query{})
	c.Set(key, []int{7})

	got, err := r.Refresh(context.Background(), key, func(ctx context.Context) (any, error) {
		return []int{8, 9}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, got)
	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []int{8, 9}, entry.Collection, "refreshed result replaces the cached entry")
	assert.False(t, entry.Stale)
}

func TestReader_SupersededResponseNeverApplies(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindBooks, cache.Query{})

	fetchA, releaseA := blockingFetch([]string{"A"})

	var wg sync.WaitGroup
	wg.Add(1)
	errA := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		_, err := r.Load(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			return fetchA(ctx)
		})
		errA <- err
	}()
	<-started

	// B supersedes A while A is still in flight.
	got, err := r.Load(context.Background(), key, func(ctx context.Context) (any, error) {
		return []string{"B"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got)

	// Even if A's response arrives after B settled, it must not apply.
	releaseA()
	wg.Wait()
	assert.True(t, IsCanceled(<-errA), "superseded read must not surface a user-visible error")

	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []string{"B"}, entry.Collection, "exactly B's response is cached, never A's")
}

func TestReader_CanceledReadDoesNotTouchCache(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindLoans, cache.Query{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Load(ctx, key, func(ctx context.Context) (any, error) {
		return nil, ctx.Err()
	})

	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestReader_StaleEntryServedWhileRefetching(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindBooks, cache.Query{})
	c.Set(key, []string{"stale"})
	c.Invalidate(cache.KindBooks)

	fetch, release := blockingFetch([]string{"fresh"})

	got, err := r.Load(context.Background(), key, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, got, "stale data is servable immediately")

	release()
	assert.Eventually(t, func() bool {
		entry, ok := c.Get(key)
		return ok && !entry.Stale
	}, time.Second, 5*time.Millisecond, "background refetch should replace the stale entry")

	entry, _ := c.Get(key)
	assert.Equal(t, []string{"fresh"}, entry.Collection)
}

func TestReader_DoubleInvalidateSingleRefetch(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindBooks, cache.Query{})
	c.Set(key, []string{"stale"})

	var mu sync.Mutex
	fetches := 0
	fetch, release := blockingFetch([]string{"fresh"})
	counting := func(ctx context.Context) (any, error) {
		mu.Lock()
		fetches++
		mu.Unlock()
		return fetch(ctx)
	}

	c.Invalidate(cache.KindBooks)
	_, err := r.Load(context.Background(), key, counting)
	require.NoError(t, err)

	c.Invalidate(cache.KindBooks)
	_, err = r.Load(context.Background(), key, counting)
	require.NoError(t, err)

	release()
	assert.Eventually(t, func() bool {
		entry, ok := c.Get(key)
		return ok && !entry.Stale
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fetches, "repeat invalidation keeps a single pending refetch")
}

func TestReader_CancelAllDropsLateResponses(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	key := cache.NewKey(cache.KindUsers, cache.Query{})

	fetch, release := blockingFetch([]string{"late"})
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		_, err := r.Load(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			return fetch(ctx)
		})
		done <- err
	}()
	<-started

	r.CancelAll()
	release()

	err := <-done
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	_, ok := c.Get(key)
	assert.False(t, ok, "a response arriving after CancelAll must not apply")
}

func TestReader_DistinctKeysDoNotInterfere(t *testing.T) {
	c := cache.New()
	r := newTestReader(c)
	pageZero := cache.NewKey(cache.KindBooks, cache.Query{Page: 0})
	pageOne := cache.NewKey(cache.KindBooks, cache.Query{Page: 1})

	_, err := r.Load(context.Background(), pageZero, func(ctx context.Context) (any, error) {
		return []string{"p0"}, nil
	})
	require.NoError(t, err)
	_, err = r.Load(context.Background(), pageOne, func(ctx context.Context) (any, error) {
		return []string{"p1"}, nil
	})
	require.NoError(t, err)

	entryZero, _ := c.Get(pageZero)
	entryOne, _ := c.Get(pageOne)
	assert.Equal(t, []string{"p0"}, entryZero.Collection)
	assert.Equal(t, []string{"p1"}, entryOne.Collection)
}
