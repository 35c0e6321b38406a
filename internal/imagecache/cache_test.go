package imagecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mmcdole/reel/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher counts requests per URL and fails the ones listed in fail
type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newFakeFetcher(fail ...string) *fakeFetcher {
	f := &fakeFetcher{calls: make(map[string]int), fail: make(map[string]bool)}
	for _, u := range fail {
		f.fail[u] = true
	}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.fail[url] {
		return nil, "", errors.New("connection reset")
	}
	return []byte("img:" + url), "image/jpeg", nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func newTestCache(f Fetcher, opts Options) (*Cache, *clock.Manual) {
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	opts.Clock = clk
	return New(f, opts), clk
}

func TestPreload_DeduplicatesInFlightAndCached(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{})
	defer c.Close()
	ctx := context.Background()

	assert.Equal(t, 2, c.Preload(ctx, []string{"a.jpg", "b.jpg"}))
	// Second call while both are still scheduled
	assert.Equal(t, 0, c.Preload(ctx, []string{"a.jpg", "b.jpg"}))

	clk.Advance(time.Second)
	c.Wait()

	// Third call after both landed in the cache
	assert.Equal(t, 0, c.Preload(ctx, []string{"b.jpg", "a.jpg", "a.jpg"}))
	c.Wait()

	assert.Equal(t, 1, f.count("a.jpg"))
	assert.Equal(t, 1, f.count("b.jpg"))
	assert.Equal(t, 2, c.Len())
}

func TestPreload_DuplicatesWithinOneCall(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{})
	defer c.Close()

	assert.Equal(t, 1, c.Preload(context.Background(), []string{"a.jpg", "a.jpg", ""}))
	clk.Advance(time.Second)
	c.Wait()
	assert.Equal(t, 1, f.total())
}

func TestPreload_Staggered(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{Stagger: 100 * time.Millisecond})
	defer c.Close()

	c.Preload(context.Background(), []string{"1.jpg", "2.jpg", "3.jpg"})
	assert.Equal(t, 0, f.total())

	clk.Advance(0)
	require.Eventually(t, func() bool { return f.total() == 1 }, time.Second, time.Millisecond)

	clk.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, f.total(), "second fetch must wait for its slot")

	clk.Advance(50 * time.Millisecond)
	require.Eventually(t, func() bool { return f.total() == 2 }, time.Second, time.Millisecond)

	clk.Advance(100 * time.Millisecond)
	c.Wait()
	assert.Equal(t, 3, f.total())
}

func TestPreload_FailureIsolated(t *testing.T) {
	f := newFakeFetcher("bad.jpg")
	c, clk := newTestCache(f, Options{})
	defer c.Close()
	ctx := context.Background()

	c.Preload(ctx, []string{"bad.jpg", "good.jpg"})
	clk.Advance(time.Second)
	c.Wait()

	_, ok := c.Get("good.jpg")
	assert.True(t, ok)
	_, ok = c.Get("bad.jpg")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().FetchErrors)

	// A failed URL is no longer in flight and can be retried
	assert.Equal(t, 1, c.Preload(ctx, []string{"bad.jpg"}))
	clk.Advance(time.Second)
	c.Wait()
	assert.Equal(t, 2, f.count("bad.jpg"))
}

func TestPreload_CancelledContextSkipsFetch(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c.Preload(ctx, []string{"a.jpg"})
	cancel()
	clk.Advance(time.Second)
	c.Wait()

	assert.Equal(t, 0, f.total())
	assert.Equal(t, 1, c.Preload(context.Background(), []string{"a.jpg"}))
}

func TestGet_AgeInvariant(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{MaxAge: 30 * time.Minute})
	defer c.Close()

	_, err := c.Fetch(context.Background(), "poster.jpg")
	require.NoError(t, err)

	clk.Advance(30*time.Minute - time.Second)
	b, ok := c.Get("poster.jpg")
	require.True(t, ok)
	assert.Equal(t, "img:poster.jpg", string(b.Data))

	clk.Advance(time.Second)
	_, ok = c.Get("poster.jpg")
	assert.False(t, ok, "entry at exactly max age must be absent")
}

func TestPreload_RefetchesStaleEntry(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{MaxAge: time.Minute})
	defer c.Close()

	_, err := c.Fetch(context.Background(), "a.jpg")
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	assert.Equal(t, 1, c.Preload(context.Background(), []string{"a.jpg"}))
	clk.Advance(time.Second)
	c.Wait()
	assert.Equal(t, 2, f.count("a.jpg"))
}

func TestCapacity_EvictsOldestThirty(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{MaxEntries: 50})
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := c.Fetch(ctx, fmt.Sprintf("%02d.jpg", i))
		require.NoError(t, err)
		clk.Advance(time.Second)
	}
	require.Equal(t, 50, c.Len())

	c.Preload(ctx, []string{"new.jpg"})
	clk.Advance(time.Second)
	c.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
	_, ok := c.Get("new.jpg")
	assert.True(t, ok)
	for i := 0; i < 15; i++ {
		_, ok := c.Get(fmt.Sprintf("%02d.jpg", i))
		assert.False(t, ok, "entry %d should have been evicted", i)
	}
	for i := 15; i < 50; i++ {
		_, ok := c.Get(fmt.Sprintf("%02d.jpg", i))
		assert.True(t, ok, "entry %d should remain", i)
	}
	assert.Equal(t, int64(15), c.Stats().Evictions)
}

func TestCapacity_ExpiredEntriesGoFirst(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{MaxEntries: 50, MaxAge: 10 * time.Minute})
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := c.Fetch(ctx, fmt.Sprintf("old-%d.jpg", i))
		require.NoError(t, err)
	}
	clk.Advance(11 * time.Minute)
	for i := 0; i < 40; i++ {
		_, err := c.Fetch(ctx, fmt.Sprintf("new-%d.jpg", i))
		require.NoError(t, err)
	}
	require.Equal(t, 50, c.Len())

	_, err := c.Fetch(ctx, "extra.jpg")
	require.NoError(t, err)

	// Removing the stale entries was enough; no fresh entry was trimmed
	assert.Equal(t, 41, c.Len())
}

func TestCapacity_InvariantUnderChurn(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{MaxEntries: 20, Stagger: 10 * time.Millisecond})
	defer c.Close()

	for round := 0; round < 10; round++ {
		var urls []string
		for i := 0; i < 7; i++ {
			urls = append(urls, fmt.Sprintf("r%d-%d.jpg", round, i))
		}
		c.Preload(context.Background(), urls)
		clk.Advance(time.Second)
		c.Wait()
		assert.LessOrEqual(t, c.Len(), 20)
	}
}

func TestFetch_SharesSingleRequest(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, url string) ([]byte, string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return []byte("x"), "image/png", nil
	})
	c, _ := newTestCache(fetcher, Options{})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Fetch(context.Background(), "same.jpg")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestSetLimits_TrimsImmediately(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{MaxEntries: 10})
	defer c.Close()

	for i := 0; i < 10; i++ {
		_, err := c.Fetch(context.Background(), fmt.Sprintf("%d.jpg", i))
		require.NoError(t, err)
		clk.Advance(time.Second)
	}
	c.SetLimits(4, 0)
	assert.LessOrEqual(t, c.Len(), 4)
	_, ok := c.Get("9.jpg")
	assert.True(t, ok)
}

func TestClose_CancelsScheduledPrefetches(t *testing.T) {
	f := newFakeFetcher()
	c, clk := newTestCache(f, Options{Stagger: time.Second})

	c.Preload(context.Background(), []string{"a.jpg", "b.jpg", "c.jpg"})
	c.Close()
	clk.Advance(time.Minute)

	assert.Equal(t, 0, f.total())
	assert.Equal(t, 0, c.Preload(context.Background(), []string{"d.jpg"}))
}
