package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huangsam/dashcache/core/perf"
	"github.com/huangsam/dashcache/core/store"
	"github.com/huangsam/dashcache/schema"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stats struct {
	Total int
}

// churchBackend is a controllable stand-in for the stats endpoint.
type churchBackend struct {
	total atomic.Int64
	calls atomic.Int64
	gate  chan struct{} // when non-nil, fetches block until it is closed

	mu  sync.Mutex
	err error
}

func (b *churchBackend) failWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func newChurchBackend(total int) *churchBackend {
	b := &churchBackend{}
	b.total.Store(int64(total))
	return b
}

func (b *churchBackend) fetch(ctx context.Context) (stats, error) {
	b.calls.Add(1)
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return stats{}, ctx.Err()
		}
	}
	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return stats{}, err
	}
	return stats{Total: int(b.total.Load())}, nil
}

func newTestCoordinator(t *testing.T, opts ...CoordinatorOption) (*Coordinator, *fakeClock, *perf.Monitor) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	monitor := perf.NewMonitor()
	base := []CoordinatorOption{
		WithStore(store.New(store.WithClock(clock.Now))),
		WithSink(monitor),
	}
	c := NewCoordinator(append(base, opts...)...)
	t.Cleanup(c.Close)
	return c, clock, monitor
}

func waitSettled[T any](t *testing.T, s *Subscription[T]) Result[T] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := s.Wait(ctx)
	require.NoError(t, err, "subscription did not settle")
	return r
}

func TestSubscribeMissFetchesAndStores(t *testing.T) {
	c, clock, monitor := newTestCoordinator(t)
	backend := newChurchBackend(10)

	sub := Subscribe(c, "stats-church1", backend.fetch, []any{"church1"})
	r := waitSettled(t, sub)

	assert.Equal(t, schema.ReadyState, r.State)
	assert.True(t, r.HasData)
	assert.False(t, r.Loading)
	assert.NoError(t, r.Err)
	assert.Equal(t, stats{Total: 10}, r.Data)

	entry, ok := c.Store().Get("stats-church1")
	require.True(t, ok)
	assert.Equal(t, stats{Total: 10}, entry.Value)
	assert.Equal(t, clock.Now(), entry.StoredAt)

	snap := monitor.Snapshot()
	assert.Equal(t, int64(1), snap.Misses)
	assert.Equal(t, int64(0), snap.Hits)
	assert.Equal(t, int64(1), snap.Calls)
}

func TestFreshEntrySkipsFetch(t *testing.T) {
	for _, swr := range []bool{true, false} {
		t.Run(map[bool]string{true: "swr", false: "no swr"}[swr], func(t *testing.T) {
			c, clock, monitor := newTestCoordinator(t)
			backend := newChurchBackend(99)
			c.Store().Set("stats-church1", stats{Total: 10})
			clock.Advance(time.Minute)

			sub := Subscribe(c, "stats-church1", backend.fetch, nil,
				WithTTL(2*time.Minute), WithStaleWhileRevalidate(swr))
			r := sub.Current()

			assert.Equal(t, schema.ReadyState, r.State)
			assert.False(t, r.Loading)
			assert.False(t, r.Revalidating)
			assert.Equal(t, stats{Total: 10}, r.Data)
			assert.Equal(t, int64(0), backend.calls.Load(), "fresh entries must not be fetched")
			assert.Equal(t, int64(1), monitor.Snapshot().Hits)
		})
	}
}

func TestStaleWhileRevalidate(t *testing.T) {
	c, clock, _ := newTestCoordinator(t)
	backend := newChurchBackend(12)
	backend.gate = make(chan struct{})
	c.Store().Set("stats-church1", stats{Total: 10})
	clock.Advance(3 * time.Minute)

	sub := Subscribe(c, "stats-church1", backend.fetch, nil, WithTTL(2*time.Minute))
	r := sub.Current()
	assert.Equal(t, stats{Total: 10}, r.Data, "stale data is served immediately")
	assert.False(t, r.Loading)
	assert.True(t, r.Revalidating)
	assert.Equal(t, schema.ReadyState, r.State)

	close(backend.gate)
	r = waitSettled(t, sub)
	assert.Equal(t, stats{Total: 12}, r.Data)
	assert.False(t, r.Revalidating)

	entry, ok := c.Store().Get("stats-church1")
	require.True(t, ok)
	assert.Equal(t, stats{Total: 12}, entry.Value)
	assert.Equal(t, clock.Now(), entry.StoredAt)
}

func TestStaleWithoutRevalidateLoads(t *testing.T) {
	c, clock, monitor := newTestCoordinator(t)
	backend := newChurchBackend(12)
	backend.gate = make(chan struct{})
	c.Store().Set("stats-church1", stats{Total: 10})
	clock.Advance(3 * time.Minute)

	sub := Subscribe(c, "stats-church1", backend.fetch, nil,
		WithTTL(2*time.Minute), WithStaleWhileRevalidate(false))
	r := sub.Current()
	assert.True(t, r.Loading)
	assert.False(t, r.HasData, "stale data is not shown without revalidation")
	assert.Equal(t, schema.LoadingState, r.State)

	close(backend.gate)
	r = waitSettled(t, sub)
	assert.Equal(t, stats{Total: 12}, r.Data)
	assert.Equal(t, int64(1), monitor.Snapshot().Misses)
}

func TestStatsChurchScenario(t *testing.T) {
	c, clock, _ := newTestCoordinator(t, WithDefaultTTL(2*time.Minute))
	backend := newChurchBackend(10)

	first := Subscribe(c, "stats-church1", backend.fetch, []any{"church1", 1})
	assert.Equal(t, stats{Total: 10}, waitSettled(t, first).Data)
	first.Close()

	clock.Advance(3 * time.Minute)
	backend.total.Store(12)
	backend.gate = make(chan struct{})

	second := Subscribe(c, "stats-church1", backend.fetch, []any{"church1", 2})
	r := second.Current()
	assert.Equal(t, stats{Total: 10}, r.Data, "stale value shown while revalidating")
	assert.True(t, r.Revalidating)

	close(backend.gate)
	assert.Equal(t, stats{Total: 12}, waitSettled(t, second).Data)
	assert.Equal(t, int64(2), backend.calls.Load())
}

func TestErrorPreservesData(t *testing.T) {
	c, _, monitor := newTestCoordinator(t)
	backend := newChurchBackend(10)

	sub := Subscribe(c, "stats-church1", backend.fetch, nil)
	waitSettled(t, sub)

	boom := errors.New("503 service unavailable")
	backend.failWith(boom)
	_, err := sub.Refresh(context.Background())
	require.Error(t, err)

	r := sub.Current()
	assert.Equal(t, schema.ErrorState, r.State)
	assert.Equal(t, stats{Total: 10}, r.Data, "data survives a failed fetch")
	assert.True(t, r.HasData)
	assert.False(t, r.Loading)

	var fe *FetchError
	require.ErrorAs(t, r.Err, &fe)
	assert.Equal(t, "stats-church1", fe.Key)
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, int64(1), monitor.Snapshot().Errors)

	backend.failWith(nil)
	v, err := sub.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats{Total: 10}, v)
	assert.NoError(t, sub.Current().Err, "success clears the error")
}

func TestRefreshBypassesFreshness(t *testing.T) {
	c, _, monitor := newTestCoordinator(t)
	backend := newChurchBackend(12)
	c.Store().Set("stats-church1", stats{Total: 10})

	sub := Subscribe(c, "stats-church1", backend.fetch, nil)
	assert.Equal(t, stats{Total: 10}, sub.Current().Data)

	v, err := sub.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats{Total: 12}, v)
	assert.Equal(t, stats{Total: 12}, sub.Current().Data)
	assert.Equal(t, int64(1), backend.calls.Load())

	entry, _ := c.Store().Get("stats-church1")
	assert.Equal(t, stats{Total: 12}, entry.Value)

	snap := monitor.Snapshot()
	assert.Equal(t, int64(1), snap.Hits, "refresh counts neither hit nor miss")
	assert.Equal(t, int64(0), snap.Misses)
}

func TestAtMostOneWinner(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	release := make(chan struct{})
	slowStarted := make(chan struct{})
	slow := func(context.Context) (string, error) {
		close(slowStarted)
		<-release // ignores cancellation
		return "church1", nil
	}
	fast := func(context.Context) (string, error) { return "church2", nil }

	sub := Subscribe(c, "name-church1", slow, []any{"church1"}, WithoutCoalescing())
	<-slowStarted
	require.True(t, sub.Update("name-church2", fast, []any{"church2"}))
	r := waitSettled(t, sub)
	assert.Equal(t, "church2", r.Data)

	close(release)
	assert.Eventually(t, func() bool {
		_, ok := c.Store().Get("name-church1")
		return ok
	}, time.Second, 5*time.Millisecond, "superseded result still reaches the store")
	assert.Equal(t, "church2", sub.Current().Data, "superseded result must not be published")
	assert.Equal(t, "name-church2", sub.Key())
}

func TestSupersededFetchIsCancelled(t *testing.T) {
	c, _, monitor := newTestCoordinator(t)
	backend := newChurchBackend(10)
	backend.gate = make(chan struct{})

	sub := Subscribe(c, "stats-church1", backend.fetch, []any{1}, WithoutCoalescing())
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, time.Millisecond)

	other := newChurchBackend(20)
	sub.Update("stats-church2", other.fetch, []any{2})
	r := waitSettled(t, sub)
	assert.Equal(t, stats{Total: 20}, r.Data)
	assert.NoError(t, r.Err, "cancellation is not an error")
	assert.Equal(t, int64(0), monitor.Snapshot().Errors)
}

func TestOlderFetchDoesNotOverwriteStore(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	release := make(chan struct{})
	started := make(chan struct{})
	slow := func(context.Context) (string, error) {
		close(started)
		<-release
		return "old", nil
	}
	a := Subscribe(c, "k", slow, nil, WithoutCoalescing())
	<-started

	b := Subscribe(c, "k", func(context.Context) (string, error) { return "new", nil }, nil, WithoutCoalescing())
	assert.Equal(t, "new", waitSettled(t, b).Data)

	close(release)
	assert.Equal(t, "old", waitSettled(t, a).Data)
	entry, _ := c.Store().Get("k")
	assert.Equal(t, "new", entry.Value, "a later fetch already committed")
}

func TestCoalescesIdenticalKeys(t *testing.T) {
	c, _, monitor := newTestCoordinator(t)
	backend := newChurchBackend(10)
	backend.gate = make(chan struct{})

	subs := make([]*Subscription[stats], 5)
	for i := range subs {
		subs[i] = Subscribe(c, "stats-church1", backend.fetch, nil)
	}
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(backend.gate)

	for _, s := range subs {
		assert.Equal(t, stats{Total: 10}, waitSettled(t, s).Data)
	}
	assert.Equal(t, int64(1), backend.calls.Load(), "one fetch serves every waiter")
	assert.Equal(t, int64(1), monitor.Snapshot().Calls)
}

func TestWithoutCoalescingFetchesIndependently(t *testing.T) {
	c, _, _ := newTestCoordinator(t, WithCoalescing(false))
	backend := newChurchBackend(10)
	backend.gate = make(chan struct{})

	a := Subscribe(c, "stats-church1", backend.fetch, nil)
	b := Subscribe(c, "stats-church1", backend.fetch, nil)
	require.Eventually(t, func() bool { return backend.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(backend.gate)
	waitSettled(t, a)
	waitSettled(t, b)
}

func TestNoListenerCallsAfterClose(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)
	backend.gate = make(chan struct{})

	var calls atomic.Int64
	sub := Subscribe(c, "stats-church1", backend.fetch, nil,
		WithListener(func(Result[stats]) { calls.Add(1) }))
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, time.Millisecond)

	sub.Close()
	seen := calls.Load()
	close(backend.gate)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, seen, calls.Load(), "listener must stay silent after Close")
	assert.Equal(t, schema.TerminalState, sub.Current().State)
	assert.False(t, sub.Current().Loading)

	_, err := sub.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, sub.Update("other", backend.fetch, []any{"x"}))
	assert.Equal(t, 0, c.Subscriptions())
	sub.Close()
}

func TestListenerReceivesFinalState(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)

	results := make(chan Result[stats], 16)
	sub := Subscribe(c, "stats-church1", backend.fetch, nil,
		WithListener(func(r Result[stats]) { results <- r }))
	waitSettled(t, sub)

	deadline := time.After(time.Second)
	for {
		select {
		case r := <-results:
			if r.State == schema.ReadyState {
				assert.Equal(t, stats{Total: 10}, r.Data)
				return
			}
		case <-deadline:
			t.Fatal("listener never saw the ready state")
		}
	}
}

func TestListenerMayCloseSubscription(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)

	var sub *Subscription[stats]
	closed := make(chan struct{})
	var once sync.Once
	ready := make(chan struct{})
	sub = Subscribe(c, "stats-church1", backend.fetch, nil, WithListener(func(r Result[stats]) {
		<-ready
		if r.State == schema.ReadyState {
			sub.Close()
			once.Do(func() { close(closed) })
		}
	}))
	close(ready)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not close the subscription")
	}
	assert.Equal(t, schema.TerminalState, sub.Current().State)
}

func TestListenerTypeMismatchPanics(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	assert.Panics(t, func() {
		Subscribe(c, "k", func(context.Context) (int, error) { return 1, nil }, nil,
			WithListener(func(Result[string]) {}))
	})
}

func TestRefreshCancelledRestoresState(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)

	sub := Subscribe(c, "stats-church1", backend.fetch, nil)
	waitSettled(t, sub)

	backend.gate = make(chan struct{})
	defer close(backend.gate)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sub.Refresh(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return sub.Current().Loading }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return after cancellation")
	}
	r := sub.Current()
	assert.False(t, r.Loading)
	assert.Equal(t, schema.ReadyState, r.State)
	assert.Equal(t, stats{Total: 10}, r.Data)
}

func TestFetchPanicBecomesFetchError(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	sub := Subscribe(c, "boom", func(context.Context) (int, error) { panic("nil map") }, nil)
	r := waitSettled(t, sub)

	assert.Equal(t, schema.ErrorState, r.State)
	var fe *FetchError
	require.ErrorAs(t, r.Err, &fe)
	assert.Contains(t, fe.Error(), "nil map")
}

func TestUpdateWithSameDepsIsNoop(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)
	filters := []string{"active"}

	sub := Subscribe(c, "members-church1", backend.fetch, []any{"church1", filters})
	waitSettled(t, sub)

	assert.False(t, sub.Update("members-church2", backend.fetch, []any{"church1", filters}),
		"key change alone does not restart")
	assert.Equal(t, "members-church1", sub.Key())
	assert.Equal(t, int64(1), backend.calls.Load())

	assert.True(t, sub.Update("members-church1", backend.fetch, []any{"church1", []string{"active"}}),
		"a new slice is a new identity")
	waitSettled(t, sub)
}

func TestClearCacheKeepsData(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)
	sub := Subscribe(c, "stats-church1", backend.fetch, nil)
	waitSettled(t, sub)

	sub.ClearCache()
	_, ok := c.Store().Get("stats-church1")
	assert.False(t, ok)
	assert.Equal(t, stats{Total: 10}, sub.Current().Data)
	assert.Equal(t, schema.ReadyState, sub.Current().State)
}

func TestCoordinatorHelpers(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	for _, k := range []string{"church1:stats", "church1:members", "church2:stats"} {
		c.Store().Set(k, 1)
	}

	assert.Equal(t, []string{"church1:members", "church1:stats"}, c.KeysWithPrefix("church1:"))
	assert.Equal(t, 2, c.InvalidatePrefix("church1:"))
	assert.Equal(t, 1, c.Status().Entries)

	c.ClearAllCache()
	assert.Equal(t, 0, c.Status().Entries)
}

func TestPrefetch(t *testing.T) {
	c, _, monitor := newTestCoordinator(t)
	backend := newChurchBackend(10)
	ctx := context.Background()

	require.NoError(t, Prefetch(ctx, c, "stats-church1", backend.fetch, time.Minute))
	require.NoError(t, Prefetch(ctx, c, "stats-church1", backend.fetch, time.Minute))
	assert.Equal(t, int64(1), backend.calls.Load(), "fresh entries are not prefetched again")

	sub := Subscribe(c, "stats-church1", backend.fetch, nil)
	assert.Equal(t, stats{Total: 10}, sub.Current().Data)
	assert.Equal(t, int64(1), monitor.Snapshot().Hits)

	backend.failWith(errors.New("down"))
	err := Prefetch(ctx, c, "stats-church2", backend.fetch, time.Minute)
	assert.Error(t, err)
}

func TestCoordinatorCloseTearsDownSubscriptions(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)
	backend.gate = make(chan struct{})
	defer close(backend.gate)

	a := Subscribe(c, "a", backend.fetch, nil)
	b := Subscribe(c, "b", backend.fetch, nil)
	assert.Equal(t, 2, c.Subscriptions())

	c.Close()
	assert.Equal(t, schema.TerminalState, a.Current().State)
	assert.Equal(t, schema.TerminalState, b.Current().State)

	late := Subscribe(c, "c", backend.fetch, nil)
	assert.Equal(t, schema.TerminalState, late.Current().State)
}

func TestFetchContextCarriesKey(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	var gotKey, gotLabel string
	sub := Subscribe(c, "stats-church1", func(ctx context.Context) (int, error) {
		gotKey, _ = FetchKey(ctx)
		gotLabel = FetchLabel(ctx)
		return 1, nil
	}, nil, WithLabel("stats"))
	waitSettled(t, sub)

	assert.Equal(t, "stats-church1", gotKey)
	assert.Equal(t, "stats", gotLabel)
	assert.Empty(t, FetchLabel(context.Background()))
}

func TestRefreshCancelledDuringInitialLoadResumes(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)
	backend.gate = make(chan struct{})

	sub := Subscribe(c, "stats-church1", backend.fetch, nil, WithoutCoalescing())
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sub.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r := sub.Current()
	assert.True(t, r.Loading, "interrupted load must be resumed")
	assert.Equal(t, schema.LoadingState, r.State)

	close(backend.gate)
	r = waitSettled(t, sub)
	assert.Equal(t, schema.ReadyState, r.State)
	assert.Equal(t, stats{Total: 10}, r.Data)
	assert.Equal(t, int64(3), backend.calls.Load())
}

func TestRefreshCancelledDuringRevalidationResumes(t *testing.T) {
	c, clock, _ := newTestCoordinator(t)
	c.Store().Set("stats-church1", stats{Total: 1})
	clock.Advance(10 * time.Minute)

	backend := newChurchBackend(2)
	backend.gate = make(chan struct{})
	sub := Subscribe(c, "stats-church1", backend.fetch, nil, WithTTL(time.Minute))
	require.True(t, sub.Current().Revalidating)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sub.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r := sub.Current()
	assert.True(t, r.Revalidating)
	assert.Equal(t, schema.ReadyState, r.State)
	assert.Equal(t, stats{Total: 1}, r.Data)

	close(backend.gate)
	r = waitSettled(t, sub)
	assert.False(t, r.Revalidating)
	assert.Equal(t, stats{Total: 2}, r.Data)
	entry, ok := c.Store().Get("stats-church1")
	require.True(t, ok)
	assert.Equal(t, stats{Total: 2}, entry.Value)
}

// lockedBuffer collects log output written from fetch goroutines.
type lockedBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func inflightKeys(c *Coordinator) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func TestSupersededFetchIgnoringContextIsNotAFailure(t *testing.T) {
	var logs lockedBuffer
	c, _, monitor := newTestCoordinator(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	stubborn := func(context.Context) (int, error) {
		started <- struct{}{}
		<-release
		return 0, errors.New("upstream 502")
	}
	sub := Subscribe(c, "a", stubborn, []any{1}, WithoutCoalescing())
	<-started

	sub.Update("b", func(context.Context) (int, error) { return 2, nil }, []any{2})
	assert.Equal(t, 2, waitSettled(t, sub).Data)

	close(release)
	require.Eventually(t, func() bool { return inflightKeys(c) == 0 }, time.Second, time.Millisecond)

	assert.Equal(t, int64(0), monitor.Snapshot().Errors)
	assert.NotContains(t, logs.String(), "fetch failed")
	assert.NoError(t, sub.Current().Err)
	assert.Equal(t, schema.ReadyState, sub.Current().State)
}

func TestFetchOrderingIsDroppedWhenIdle(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	for i := range 20 {
		key := "stats-church" + string(rune('a'+i))
		sub := Subscribe(c, key, func(context.Context) (int, error) { return i, nil }, nil)
		waitSettled(t, sub)
		sub.Close()
	}
	assert.Equal(t, 0, inflightKeys(c))
	assert.Equal(t, 20, c.Store().Len())
}

func TestCloseDuringListenerCallDoesNotWait(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	backend := newChurchBackend(10)

	entered := make(chan struct{}, 16)
	release := make(chan struct{})
	var calls atomic.Int64
	sub := Subscribe(c, "stats-church1", backend.fetch, nil, WithListener(func(Result[stats]) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
	}))

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was never called")
	}

	closed := make(chan struct{})
	go func() {
		sub.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close waited for the running listener call")
	}

	seen := calls.Load()
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, seen, calls.Load(), "no listener call starts after Close")
}

func TestApplySettlesOnAbortedSharedFetch(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	sub := Subscribe(c, "k", func(context.Context) (int, error) { return 1, nil }, nil)
	waitSettled(t, sub)

	sub.mu.Lock()
	gen, _ := sub.arm()
	sub.result.Loading = true
	sub.busy()
	sub.mu.Unlock()

	_, err := sub.apply(gen, nil, ErrSuperseded)
	assert.ErrorIs(t, err, ErrSuperseded)

	r := waitSettled(t, sub)
	assert.False(t, r.Loading)
	assert.Equal(t, schema.ErrorState, r.State)
	assert.Equal(t, 1, r.Data)
}
