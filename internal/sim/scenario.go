package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/huangsam/dashcache/core"
	"github.com/huangsam/dashcache/core/perf"
	"github.com/huangsam/dashcache/core/store"
	"github.com/huangsam/dashcache/schema"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ScenarioConfig configures RunScenario.
type ScenarioConfig struct {
	Name                 string
	TTL                  time.Duration
	StaleWhileRevalidate bool
	Sink                 perf.Sink
	Logger               *slog.Logger
}

// Scenario scope and the totals the backend reports before and after the TTL.
const (
	ScenarioScope  = "church1"
	scenarioBefore = 10
	scenarioAfter  = 12
)

// RunScenario replays the dashboard revisit story against a virtual clock:
// mount, remount within the TTL, remount after the totals changed past the TTL,
// refresh during an outage, refresh after recovery, unmount.
func RunScenario(ctx context.Context, cfg ScenarioConfig) ([]schema.TimelineRow, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = schema.DefaultAggregateTTL
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("swr=%t", cfg.StaleWhileRevalidate)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clock := NewClock(time.Date(2026, 1, 4, 9, 0, 0, 0, time.UTC))
	start := clock.Now()

	backend := NewBackend(WithLogger(logger))
	backend.SetTotal(ScenarioScope, schema.NetworkStats, scenarioBefore)

	opts := []core.CoordinatorOption{
		core.WithStore(store.New(store.WithClock(clock.Now))),
		core.WithDefaultTTL(cfg.TTL),
		core.WithDefaultStaleWhileRevalidate(cfg.StaleWhileRevalidate),
		core.WithLogger(logger),
	}
	if cfg.Sink != nil {
		opts = append(opts, core.WithSink(cfg.Sink))
	}
	c := core.NewCoordinator(opts...)
	defer c.Close()

	key := Key(schema.NetworkStats, ScenarioScope)
	fetch := Fetcher(backend, ScenarioScope, schema.NetworkStats)
	deps := []any{ScenarioScope}

	var rows []schema.TimelineRow
	record := func(step string, r core.Result[map[string]any]) {
		row := schema.TimelineRow{
			Scenario:     cfg.Name,
			Step:         step,
			Elapsed:      clock.Now().Sub(start),
			State:        r.State,
			Loading:      r.Loading,
			Revalidating: r.Revalidating,
			BackendCalls: backend.Calls(),
		}
		if r.HasData {
			row.Data = fmt.Sprintf("total=%v", r.Data["total"])
		}
		if r.Err != nil {
			row.Err = r.Err.Error()
		}
		rows = append(rows, row)
	}

	// mount records the synchronous view while fetches are held, then the settled one.
	mount := func(step, settledStep string) (*core.Subscription[map[string]any], error) {
		release := backend.Hold()
		sub := core.Subscribe(c, key, fetch, deps, core.WithLabel(string(schema.NetworkStats)))
		first := sub.Current()
		record(step, first)
		release()

		r, err := sub.Wait(ctx)
		if err != nil {
			sub.Close()
			return nil, err
		}
		if !first.State.IsSettled() || first.Revalidating {
			record(settledStep, r)
		}
		return sub, nil
	}

	sub, err := mount("first mount", "fetched")
	if err != nil {
		return rows, err
	}
	sub.Close()

	clock.Advance(30 * time.Second)
	if sub, err = mount("remount within ttl", "settled"); err != nil {
		return rows, err
	}
	sub.Close()

	clock.Advance(cfg.TTL + 30*time.Second)
	backend.SetTotal(ScenarioScope, schema.NetworkStats, scenarioAfter)
	if sub, err = mount("remount after ttl", "revalidated"); err != nil {
		return rows, err
	}
	defer sub.Close()

	backend.SetFailing(true)
	if _, err := sub.Refresh(ctx); err == nil {
		return rows, fmt.Errorf("refresh succeeded during a simulated outage")
	}
	record("refresh during outage", sub.Current())

	backend.SetFailing(false)
	clock.Advance(10 * time.Second)
	if _, err := sub.Refresh(ctx); err != nil {
		return rows, fmt.Errorf("refresh after recovery: %w", err)
	}
	record("refresh after recovery", sub.Current())

	sub.Close()
	record("unmount", sub.Current())
	return rows, nil
}
