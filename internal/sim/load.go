package sim

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huangsam/dashcache/core"
	"github.com/huangsam/dashcache/schema"
)

// LoadConfig configures RunLoad.
type LoadConfig struct {
	Subscribers int
	Scopes      int
	Rounds      int
	Resources   []schema.Resource
	// TTLFor picks the TTL per resource; nil uses the coordinator default.
	TTLFor func(schema.Resource) time.Duration
}

// LoadReport summarizes a RunLoad.
type LoadReport struct {
	Subscriptions int64         `json:"subscriptions"`
	Keys          int           `json:"keys"`
	BackendCalls  int64         `json:"backend_calls"`
	Errors        int64         `json:"errors"`
	Duration      time.Duration `json:"duration"`
}

// ScopeName returns the scope id of the i-th simulated church.
func ScopeName(i int) string {
	return fmt.Sprintf("church%d", i+1)
}

// RunLoad mounts cfg.Subscribers concurrent subscribers, each cycling through
// cfg.Rounds keys over cfg.Scopes scopes, and waits for every subscription to
// settle. Subscribers sharing a key share one backend call while it is in flight.
func RunLoad(ctx context.Context, c *core.Coordinator, backend *Backend, cfg LoadConfig) (LoadReport, error) {
	if cfg.Subscribers <= 0 || cfg.Scopes <= 0 || cfg.Rounds <= 0 {
		return LoadReport{}, fmt.Errorf("subscribers, scopes and rounds must be positive")
	}
	resources := cfg.Resources
	if len(resources) == 0 {
		resources = schema.AllResources
	}

	startCalls := backend.Calls()
	start := time.Now()
	var subscriptions, failures atomic.Int64
	keys := make(map[string]struct{})
	for i := range cfg.Subscribers {
		for round := range cfg.Rounds {
			scope, resource := pick(i, round, cfg.Scopes, resources)
			keys[Key(resource, scope)] = struct{}{}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.Subscribers {
		g.Go(func() error {
			for round := range cfg.Rounds {
				scope, resource := pick(i, round, cfg.Scopes, resources)
				opts := []core.Option{core.WithLabel(string(resource))}
				if cfg.TTLFor != nil {
					opts = append(opts, core.WithTTL(cfg.TTLFor(resource)))
				}

				sub := core.Subscribe(c, Key(resource, scope), Fetcher(backend, scope, resource), []any{scope, resource}, opts...)
				subscriptions.Add(1)
				r, err := sub.Wait(gctx)
				sub.Close()
				if err != nil {
					return err
				}
				if r.Err != nil {
					failures.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LoadReport{}, fmt.Errorf("load interrupted: %w", err)
	}

	return LoadReport{
		Subscriptions: subscriptions.Load(),
		Keys:          len(keys),
		BackendCalls:  backend.Calls() - startCalls,
		Errors:        failures.Load(),
		Duration:      time.Since(start),
	}, nil
}

// pick spreads subscriber i over scopes and resources, moving one scope per round.
func pick(i, round, scopes int, resources []schema.Resource) (string, schema.Resource) {
	return ScopeName((i + round) % scopes), resources[i%len(resources)]
}
