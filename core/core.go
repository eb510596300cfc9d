// Package core coordinates cached fetches for dashboard subscriptions.
//
// A Coordinator owns the shared result store, the in-flight request group and
// the instrumentation sink. Subscribe binds a key and a fetch function to it and
// returns a Subscription that serves cached data, revalidates stale data in the
// background and discards results from superseded requests.
package core

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/huangsam/dashcache/core/perf"
	"github.com/huangsam/dashcache/core/store"
	"github.com/huangsam/dashcache/schema"
)

// Coordinator shares one result store and one in-flight request group between subscriptions.
type Coordinator struct {
	store    *store.Store
	sink     perf.Sink
	logger   *slog.Logger
	defaults settings

	flight singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[string]func()
	order  map[string]*keyOrder // keys with a fetch in flight
	closed bool
}

// keyOrder orders overlapping fetches of one key.
type keyOrder struct {
	started   uint64 // fetches started
	committed uint64 // newest fetch written
	inflight  int
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaults: defaultSettings(),
		subs:     make(map[string]func()),
		order:    make(map[string]*keyOrder),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = store.Default()
	}
	c.sink = perf.Safe(c.sink, c.logger)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Store returns the coordinator's result store.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// ClearCache removes key from the store. Subscriptions keep their in-memory data.
func (c *Coordinator) ClearCache(key string) {
	c.store.Delete(key)
}

// ClearAllCache removes every entry from the store.
func (c *Coordinator) ClearAllCache() {
	c.store.Clear()
}

// InvalidatePrefix removes every key starting with prefix, typically all queries of
// one scope after a mutation, and returns the number of removed entries.
func (c *Coordinator) InvalidatePrefix(prefix string) int {
	n := c.store.DeletePrefix(prefix)
	c.logger.Debug("invalidated cache prefix", slog.String("prefix", prefix), slog.Int("removed", n))
	return n
}

// Status summarizes the result store.
func (c *Coordinator) Status() schema.StoreStatus {
	return c.store.Status()
}

// Close tears down every live subscription and cancels shared fetches.
// The store is left intact.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	closers := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		closers = append(closers, fn)
	}
	c.mu.Unlock()

	for _, fn := range closers {
		fn()
	}
	c.cancel()
}

func (c *Coordinator) track(id string, closeFn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.subs[id] = closeFn
	return true
}

func (c *Coordinator) untrack(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

// Subscriptions returns the number of live subscriptions.
func (c *Coordinator) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// beginFetch hands out an ordering number for a fetch of key.
func (c *Coordinator) beginFetch(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.order[key]
	if !ok {
		o = &keyOrder{}
		c.order[key] = o
	}
	o.started++
	o.inflight++
	return o.started
}

// finishFetch ends fetch seq of key. When ok it stores value unless a fetch of key
// started later has already been stored, and reports whether value was stored.
// Ordering state is dropped once no fetch of key is in flight.
func (c *Coordinator) finishFetch(key string, seq uint64, value any, ok bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	o := c.order[key]
	o.inflight--
	if o.inflight == 0 {
		delete(c.order, key)
	}
	if !ok || seq < o.committed {
		return false
	}
	o.committed = seq
	c.store.Set(key, value)
	return true
}

// KeysWithPrefix lists the stored keys starting with prefix.
func (c *Coordinator) KeysWithPrefix(prefix string) []string {
	out := []string{}
	for _, k := range c.store.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func (c *Coordinator) now() time.Time {
	return c.store.Now()
}
