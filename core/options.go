package core

import (
	"log/slog"
	"time"

	"github.com/huangsam/dashcache/core/perf"
	"github.com/huangsam/dashcache/core/store"
	"github.com/huangsam/dashcache/schema"
)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithStore sets the result store. The process-wide store.Default() is used otherwise.
func WithStore(s *store.Store) CoordinatorOption {
	return func(c *Coordinator) {
		if s != nil {
			c.store = s
		}
	}
}

// WithSink sets the instrumentation sink. The sink is wrapped with perf.Safe.
func WithSink(s perf.Sink) CoordinatorOption {
	return func(c *Coordinator) {
		c.sink = s
	}
}

// WithLogger sets the logger. Logging is discarded by default.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDefaultTTL sets the TTL used by subscriptions that do not pass WithTTL.
func WithDefaultTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.defaults.ttl = ttl
		}
	}
}

// WithDefaultStaleWhileRevalidate sets the stale-while-revalidate default.
func WithDefaultStaleWhileRevalidate(enabled bool) CoordinatorOption {
	return func(c *Coordinator) {
		c.defaults.swr = enabled
	}
}

// WithCoalescing sets whether identical in-flight keys share one fetch by default.
func WithCoalescing(enabled bool) CoordinatorOption {
	return func(c *Coordinator) {
		c.defaults.coalesce = enabled
	}
}

// settings is the resolved per-subscription configuration.
type settings struct {
	ttl      time.Duration
	swr      bool
	coalesce bool
	label    string
	listener any
}

func defaultSettings() settings {
	return settings{ttl: schema.DefaultAggregateTTL, swr: true, coalesce: true}
}

// Option configures a single subscription.
type Option func(*settings)

// WithTTL sets how long a stored entry counts as fresh.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStaleWhileRevalidate controls whether stale entries are served while a
// background fetch refreshes them.
func WithStaleWhileRevalidate(enabled bool) Option {
	return func(s *settings) {
		s.swr = enabled
	}
}

// WithLabel sets the instrumentation label. The cache key is used by default.
func WithLabel(label string) Option {
	return func(s *settings) {
		s.label = label
	}
}

// WithoutCoalescing makes the subscription run its own fetches instead of
// joining an identical in-flight request. Its fetches are aborted when superseded.
func WithoutCoalescing() Option {
	return func(s *settings) {
		s.coalesce = false
	}
}

// WithListener registers fn to receive every published Result.
// Calls happen on a dedicated goroutine, one at a time, never under a lock.
// Intermediate results may be skipped when fn falls behind.
func WithListener[T any](fn func(Result[T])) Option {
	return func(s *settings) {
		s.listener = fn
	}
}
