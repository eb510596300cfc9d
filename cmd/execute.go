package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/huangsam/dashcache/core"
	"github.com/huangsam/dashcache/core/perf"
	"github.com/huangsam/dashcache/core/store"
	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/outwriter"
	"github.com/huangsam/dashcache/internal/sim"
	"github.com/huangsam/dashcache/schema"
)

// Scenario selectors for the simulate command.
const (
	scenarioSWR   = "swr"
	scenarioNoSWR = "no-swr"
	scenarioBoth  = "both"
)

// scenarioModes maps a --scenario value to the stale-while-revalidate settings to replay.
func scenarioModes(name string) ([]bool, error) {
	switch name {
	case scenarioSWR:
		return []bool{true}, nil
	case scenarioNoSWR:
		return []bool{false}, nil
	case scenarioBoth, "":
		return []bool{true, false}, nil
	default:
		return nil, fmt.Errorf("invalid scenario '%s'. must be swr, no-swr, both", name)
	}
}

// scenarioName labels a replay in the timeline output.
func scenarioName(swr bool) string {
	if swr {
		return "stale-while-revalidate"
	}
	return "no stale-while-revalidate"
}

// newCoordinator builds a coordinator from the validated config.
func newCoordinator(cfg *contract.Config, logger *slog.Logger, sink perf.Sink) *core.Coordinator {
	var storeOpts []store.Option
	if cfg.Capacity > 0 {
		storeOpts = append(storeOpts, store.WithCapacity(cfg.Capacity))
	}
	return core.NewCoordinator(
		core.WithStore(store.New(storeOpts...)),
		core.WithDefaultTTL(cfg.TTL),
		core.WithDefaultStaleWhileRevalidate(cfg.StaleWhileRevalidate),
		core.WithCoalescing(cfg.Coalesce),
		core.WithSink(sink),
		core.WithLogger(logger),
	)
}

// newBackend builds the simulated backend from the validated config.
func newBackend(cfg *contract.Config, logger *slog.Logger) *sim.Backend {
	return sim.NewBackend(
		sim.WithLatency(cfg.Latency),
		sim.WithFailureRate(cfg.FailureRate),
		sim.WithLogger(logger),
	)
}

// executeSimulate replays the revisit scenarios and writes their timeline.
func executeSimulate(ctx context.Context, cfg *contract.Config, mgr contract.SnapshotManager, logger *slog.Logger, scenario string) error {
	modes, err := scenarioModes(scenario)
	if err != nil {
		return err
	}

	start := time.Now()
	monitor := perf.NewMonitor()
	var rows []schema.TimelineRow
	for _, swr := range modes {
		replay, err := sim.RunScenario(ctx, sim.ScenarioConfig{
			Name:                 scenarioName(swr),
			TTL:                  cfg.TTLFor(schema.NetworkStats),
			StaleWhileRevalidate: swr,
			Sink:                 monitor,
			Logger:               logger,
		})
		if err != nil {
			return fmt.Errorf("scenario %s: %w", scenarioName(swr), err)
		}
		rows = append(rows, replay...)
	}

	if err := outwriter.NewOutWriter().WriteTimeline(rows, cfg, time.Since(start)); err != nil {
		return err
	}
	recordRun(mgr, logger, "simulate", start, cfg, monitor.Snapshot())
	return nil
}

// executeLoad mounts concurrent subscribers against the simulated backend and
// writes the resulting hit/miss report.
func executeLoad(ctx context.Context, cfg *contract.Config, mgr contract.SnapshotManager, logger *slog.Logger) error {
	start := time.Now()
	backend := newBackend(cfg, logger)
	monitor := perf.NewMonitor()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.WithoutCancel(ctx)) }()

	otelSink, err := perf.NewOTelSink(provider.Meter("github.com/huangsam/dashcache/cmd"))
	if err != nil {
		return err
	}

	c := newCoordinator(cfg, logger, perf.Multi(monitor, otelSink))
	defer c.Close()

	report, err := sim.RunLoad(ctx, c, backend, sim.LoadConfig{
		Subscribers: cfg.Subscribers,
		Scopes:      cfg.Scopes,
		Rounds:      cfg.Rounds,
		TTLFor:      cfg.TTLFor,
	})
	if err != nil {
		return err
	}
	logger.Info("Load finished",
		slog.Int64("subscriptions", report.Subscriptions),
		slog.Int("keys", report.Keys),
		slog.Int64("backend_calls", report.BackendCalls),
		slog.Int64("errors", report.Errors),
		slog.Duration("duration", report.Duration),
	)
	logMetrics(ctx, reader, logger)

	snap := monitor.Snapshot()
	if err := outwriter.NewOutWriter().WritePerf(snap, cfg); err != nil {
		return err
	}
	recordRun(mgr, logger, "load", start, cfg, snap)
	return nil
}

// logMetrics collects the OpenTelemetry instruments once and logs each data point.
func logMetrics(ctx context.Context, reader sdkmetric.Reader, logger *slog.Logger) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		logger.Warn("Failed to collect metrics", slog.Any("error", err))
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					label, _ := dp.Attributes.Value("label")
					logger.Debug("Metric", slog.String("name", m.Name), slog.String("label", label.AsString()), slog.Int64("value", dp.Value))
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					label, _ := dp.Attributes.Value("label")
					logger.Debug("Metric", slog.String("name", m.Name), slog.String("label", label.AsString()),
						slog.Uint64("count", dp.Count), slog.Float64("sum", dp.Sum))
				}
			}
		}
	}
}

// recordRun persists a perf snapshot when a snapshot store is configured.
// Failures are logged and never fail the command.
func recordRun(mgr contract.SnapshotManager, logger *slog.Logger, command string, start time.Time, cfg *contract.Config, snap schema.PerfSnapshot) {
	if mgr == nil {
		return
	}
	ss := mgr.GetSnapshotStore()
	if ss == nil {
		return
	}
	runID, err := ss.BeginRun(command, start, configParams(cfg))
	if err != nil {
		logger.Warn("Failed to begin snapshot run", slog.Any("error", err))
		return
	}
	if err := ss.RecordSnapshot(runID, time.Now(), snap); err != nil {
		logger.Warn("Failed to record snapshot", slog.Int64("run_id", runID), slog.Any("error", err))
		return
	}
	logger.Debug("Recorded snapshot", slog.String("command", command), slog.Int64("run_id", runID))
}

// configParams captures the knobs that shape a run.
func configParams(cfg *contract.Config) map[string]any {
	return map[string]any{
		"ttl":                    cfg.TTL.String(),
		"stale_while_revalidate": cfg.StaleWhileRevalidate,
		"coalesce":               cfg.Coalesce,
		"capacity":               cfg.Capacity,
		"scopes":                 cfg.Scopes,
		"subscribers":            cfg.Subscribers,
		"rounds":                 cfg.Rounds,
		"latency":                cfg.Latency.String(),
		"failure_rate":           cfg.FailureRate,
	}
}
