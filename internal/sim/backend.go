// Package sim provides a simulated church dashboard backend and scenario
// drivers used by the CLI and MCP server to exercise the cache.
package sim

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huangsam/dashcache/core"
	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

// ErrUnavailable is returned by Fetch when the backend simulates an outage.
var ErrUnavailable = errors.New("backend unavailable")

// Backend is an in-memory stand-in for the dashboard REST API.
type Backend struct {
	latency     time.Duration
	failureRate float64
	logger      *slog.Logger

	mu      sync.Mutex
	totals  map[string]int64
	rng     *rand.Rand
	failing bool
	gate    chan struct{} // non-nil while fetches are held

	calls atomic.Int64
}

var _ contract.Backend = &Backend{} // Compile-time check

// Option configures a Backend.
type Option func(*Backend)

// WithLatency delays every Fetch by d.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// WithFailureRate makes a fraction of fetches fail with ErrUnavailable.
func WithFailureRate(rate float64) Option {
	return func(b *Backend) { b.failureRate = rate }
}

// WithSeed makes the failure sequence reproducible.
func WithSeed(seed uint64) Option {
	return func(b *Backend) { b.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithLogger sets the logger for fetch events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBackend creates a simulated backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		totals: make(map[string]int64),
		rng:    rand.New(rand.NewPCG(1, 2)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Key builds the cache key for a resource of a scope, e.g. "networkStats-church1".
func Key(resource schema.Resource, scope string) string {
	return fmt.Sprintf("%s-%s", resource, scope)
}

// Fetch returns the current payload of resource for scope.
func (b *Backend) Fetch(ctx context.Context, scope string, resource schema.Resource) (map[string]any, error) {
	key := Key(resource, scope)

	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.calls.Add(1)

	if b.latency > 0 {
		timer := time.NewTimer(b.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	fail := b.failing || (b.failureRate > 0 && b.rng.Float64() < b.failureRate)
	total, ok := b.totals[key]
	if !ok {
		total = seedTotal(key)
		b.totals[key] = total
	}
	b.mu.Unlock()

	if fail {
		b.logger.Debug("Simulated fetch failed", slog.String("key", key), slog.String("label", core.FetchLabel(ctx)))
		return nil, fmt.Errorf("fetch %s: %w", key, ErrUnavailable)
	}
	b.logger.Debug("Simulated fetch", slog.String("key", key), slog.Int64("total", total))
	return map[string]any{
		"scope":    scope,
		"resource": string(resource),
		"total":    total,
	}, nil
}

// Calls returns how many fetches were attempted.
func (b *Backend) Calls() int64 {
	return b.calls.Load()
}

// SetTotal overrides the total the backend reports for resource of scope.
func (b *Backend) SetTotal(scope string, resource schema.Resource, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totals[Key(resource, scope)] = total
}

// SetFailing forces every fetch to fail until called with false.
func (b *Backend) SetFailing(failing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing = failing
}

// Hold blocks every Fetch until the returned release function is called.
// Blocked fetches are not counted by Calls until they are released.
func (b *Backend) Hold() (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gate = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gate == ch {
				b.gate = nil
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Fetcher adapts a contract.Backend call to a core fetch function.
func Fetcher(backend contract.Backend, scope string, resource schema.Resource) core.FetchFunc[map[string]any] {
	return func(ctx context.Context) (map[string]any, error) {
		return backend.Fetch(ctx, scope, resource)
	}
}

// seedTotal derives a stable starting total from the key.
func seedTotal(key string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum32()%490) + 10
}
