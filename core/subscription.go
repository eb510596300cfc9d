package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/huangsam/dashcache/schema"
)

// Result is what a subscriber sees.
type Result[T any] struct {
	Data         T
	HasData      bool
	Loading      bool // a foreground fetch is in flight
	Revalidating bool // stale data is shown while a background fetch runs
	Err          error
	State        schema.SubscriptionState
	UpdatedAt    time.Time // when Data was stored
}

// Subscription binds a key and fetch function to a Coordinator.
type Subscription[T any] struct {
	id     string
	c      *Coordinator
	cfg    settings
	logger *slog.Logger

	mu      sync.Mutex
	key     string
	fetch   FetchFunc[T]
	deps    []any
	gen     uint64
	cancel  context.CancelFunc
	result  Result[T]
	closed  bool
	seq     uint64
	settled chan struct{} // non-nil while a fetch is in flight

	listener    func(Result[T])
	notify      chan struct{}
	done        chan struct{}
	callMu      sync.Mutex
	dispatching atomic.Bool
}

// Subscribe creates a subscription for key and immediately loads it.
//
// deps is the restart signal: Update re-runs the load only when an element of deps
// changes by identity. Changing key or fetch alone does not trigger a new load, so
// callers must include whatever the key is derived from in deps.
func Subscribe[T any](c *Coordinator, key string, fetch FetchFunc[T], deps []any, opts ...Option) *Subscription[T] {
	cfg := c.defaults
	cfg.label = ""
	cfg.listener = nil
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.label == "" {
		cfg.label = key
	}

	s := &Subscription[T]{
		id:     uuid.NewString(),
		c:      c,
		cfg:    cfg,
		key:    key,
		fetch:  fetch,
		deps:   cloneDeps(deps),
		result: Result[T]{State: schema.IdleState},
		done:   make(chan struct{}),
	}
	s.logger = c.logger.With(slog.String("subscription", s.id), slog.String("label", cfg.label))

	if cfg.listener != nil {
		fn, ok := cfg.listener.(func(Result[T]))
		if !ok {
			panic(fmt.Sprintf("core: listener %T does not match subscription type %T", cfg.listener, s.result))
		}
		s.listener = fn
		s.notify = make(chan struct{}, 1)
		go s.dispatch()
	}

	if !c.track(s.id, s.Close) {
		s.Close()
		return s
	}
	s.load()
	return s
}

// ID returns the subscription's unique identifier.
func (s *Subscription[T]) ID() string {
	return s.id
}

// Key returns the key the subscription currently serves.
func (s *Subscription[T]) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Current returns the latest published result.
func (s *Subscription[T]) Current() Result[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Wait blocks until no fetch is in flight and returns the result at that point.
func (s *Subscription[T]) Wait(ctx context.Context) (Result[T], error) {
	for {
		s.mu.Lock()
		ch, r := s.settled, s.result
		s.mu.Unlock()
		if ch == nil {
			return r, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return r, ctx.Err()
		}
	}
}

// Refresh fetches the key now, ignoring freshness, and returns the fetched value.
// Any fetch already in flight for this subscription is superseded.
// If ctx is cancelled first, the subscription goes back to its previous state.
// ErrSuperseded is returned when a newer load or Close overtakes the refresh.
func (s *Subscription[T]) Refresh(ctx context.Context) (T, error) {
	var zero T

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, ErrClosed
	}
	prev := s.result
	gen, token := s.arm()
	stop := context.AfterFunc(ctx, s.cancel)
	key, fetch := s.key, s.fetch
	s.result.Loading = true
	s.result.Revalidating = false
	s.result.Err = nil
	s.result.State = schema.LoadingState
	s.busy()
	s.publish()
	s.mu.Unlock()
	defer stop()

	if s.cfg.coalesce {
		s.c.flight.Forget(key)
	}
	value, err := s.c.await(token, s.request(key, fetch))

	if errors.Is(err, ErrSuperseded) && ctx.Err() != nil {
		s.restore(gen, prev)
		return zero, ctx.Err()
	}
	v, err := s.apply(gen, value, err)
	return v, err
}

// ClearCache removes the subscription's key from the store.
// Data already published is kept.
func (s *Subscription[T]) ClearCache() {
	s.c.ClearCache(s.Key())
}

// Update re-binds the subscription when deps changed by identity and reports
// whether a new load was started. With unchanged deps the call is a no-op and
// key and fetch are not adopted.
func (s *Subscription[T]) Update(key string, fetch FetchFunc[T], deps []any) bool {
	s.mu.Lock()
	if s.closed || depsEqual(s.deps, deps) {
		s.mu.Unlock()
		return false
	}
	s.key = key
	s.fetch = fetch
	s.deps = cloneDeps(deps)
	s.mu.Unlock()

	s.load()
	return true
}

// Close cancels any fetch the subscription owns and stops listener calls.
// No listener call starts after Close returns. A listener call that is already
// running is not waited for, which lets a listener close its own subscription;
// it may still be in progress when Close returns on another goroutine.
// Closing twice is a no-op.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.result.Loading = false
	s.result.Revalidating = false
	s.result.State = schema.TerminalState
	s.settle()
	s.mu.Unlock()

	close(s.done)
	s.c.untrack(s.id)

	// Only a listener call that has not started yet is waited for.
	if s.listener != nil && !s.dispatching.Load() {
		s.callMu.Lock()
		defer s.callMu.Unlock()
	}
	s.logger.Debug("subscription closed")
}

// load runs the cache decision for the current key. It is the subscribe and
// restart path; Refresh bypasses it.
func (s *Subscription[T]) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	gen, token := s.arm()
	key, fetch := s.key, s.fetch

	if entry, ok := s.c.store.Get(key); ok {
		fresh := entry.FreshAt(s.c.now(), s.cfg.ttl)
		if v, err := typed[T](key, entry.Value); err == nil && (fresh || s.cfg.swr) {
			s.c.sink.CacheHit(s.cfg.label)
			s.result = Result[T]{
				Data:         v,
				HasData:      true,
				Revalidating: !fresh,
				State:        schema.ReadyState,
				UpdatedAt:    entry.StoredAt,
			}
			if fresh {
				s.cancel()
				s.cancel = nil
				s.settle()
				s.publish()
				return
			}
			s.logger.Debug("serving stale entry while revalidating", slog.String("key", key))
			s.busy()
			s.publish()
			go s.background(gen, token, key, fetch)
			return
		}
	}
	s.c.sink.CacheMiss(s.cfg.label)

	s.result.Loading = true
	s.result.Revalidating = false
	s.result.Err = nil
	s.result.State = schema.LoadingState
	s.busy()
	s.publish()
	go s.background(gen, token, key, fetch)
}

func (s *Subscription[T]) background(gen uint64, token context.Context, key string, fetch FetchFunc[T]) {
	value, err := s.c.await(token, s.request(key, fetch))
	_, _ = s.apply(gen, value, err)
}

func (s *Subscription[T]) request(key string, fetch FetchFunc[T]) fetchRequest {
	return fetchRequest{key: key, label: s.cfg.label, coalesce: s.cfg.coalesce, fetch: fetch.erase()}
}

// arm starts a new generation and cancels the previous token. Callers hold s.mu.
func (s *Subscription[T]) arm() (uint64, context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	token, cancel := context.WithCancel(s.c.ctx)
	s.cancel = cancel
	return s.gen, token
}

// apply publishes the outcome of fetch generation gen if it is still current.
func (s *Subscription[T]) apply(gen uint64, value any, err error) (T, error) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		s.logger.Debug("dropping superseded fetch result", slog.Uint64("generation", gen))
		return zero, ErrSuperseded
	}
	s.cancel()
	s.cancel = nil

	var v T
	if err == nil {
		v, err = typed[T](s.key, value)
	}

	s.result.Loading = false
	s.result.Revalidating = false
	if err != nil {
		s.result.Err = err
		s.result.State = schema.ErrorState
	} else {
		s.result.Data = v
		s.result.HasData = true
		s.result.Err = nil
		s.result.State = schema.ReadyState
		s.result.UpdatedAt = s.c.now()
	}
	s.settle()
	s.publish()
	return v, err
}

// restore undoes a cancelled Refresh if nothing newer has started. A load or
// revalidation the refresh interrupted is resumed under a new generation.
func (s *Subscription[T]) restore(gen uint64, prev Result[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.result = prev
	if prev.Loading || prev.Revalidating {
		next, token := s.arm()
		s.logger.Debug("resuming interrupted load", slog.String("key", s.key))
		s.publish()
		go s.background(next, token, s.key, s.fetch)
		return
	}
	s.cancel()
	s.cancel = nil
	s.settle()
	s.publish()
}

func (s *Subscription[T]) busy() {
	if s.settled == nil {
		s.settled = make(chan struct{})
	}
}

func (s *Subscription[T]) settle() {
	if s.settled != nil {
		close(s.settled)
		s.settled = nil
	}
}

// publish wakes the dispatcher. Callers hold s.mu.
func (s *Subscription[T]) publish() {
	if s.listener == nil {
		return
	}
	s.seq++
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) dispatch() {
	var delivered uint64
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		s.callMu.Lock()
		s.mu.Lock()
		closed, seq, r := s.closed, s.seq, s.result
		s.mu.Unlock()
		if closed {
			s.callMu.Unlock()
			return
		}
		if seq != delivered {
			delivered = seq
			s.deliver(r)
		}
		s.callMu.Unlock()
	}
}

func (s *Subscription[T]) deliver(r Result[T]) {
	s.dispatching.Store(true)
	defer s.dispatching.Store(false)
	s.listener(r)
}
