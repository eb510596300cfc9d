package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/huangsam/dashcache/core/perf"
	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/iocache"
	"github.com/huangsam/dashcache/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, raw contract.ConfigRawInput) *contract.Config {
	t.Helper()
	raw.Output = string(schema.JSONOut)
	raw.OutputFile = filepath.Join(t.TempDir(), "out.json")
	raw.Color = "no"
	raw.SnapshotBackend = string(schema.NoneBackend)
	cfg := &contract.Config{}
	require.NoError(t, contract.ProcessAndValidate(cfg, &raw))
	return cfg
}

func TestScenarioModes(t *testing.T) {
	modes, err := scenarioModes(scenarioBoth)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, modes)

	modes, err = scenarioModes(scenarioNoSWR)
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, modes)

	_, err = scenarioModes("sometimes")
	assert.ErrorContains(t, err, "invalid scenario")
}

func TestExecuteSimulate(t *testing.T) {
	cfg := testConfig(t, contract.ConfigRawInput{})

	store := &iocache.MockSnapshotStore{}
	store.On("BeginRun", "simulate", mock.Anything, mock.Anything).Return(int64(7), nil)
	store.On("RecordSnapshot", int64(7), mock.Anything, mock.MatchedBy(func(s schema.PerfSnapshot) bool {
		return s.Hits > 0 && s.Misses > 0
	})).Return(nil)
	mgr := &iocache.MockSnapshotManager{}
	mgr.On("GetSnapshotStore").Return(store)

	require.NoError(t, executeSimulate(context.Background(), cfg, mgr, discardLogger(), scenarioBoth))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var rows []schema.TimelineRow
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 16)
	assert.Equal(t, "stale-while-revalidate", rows[0].Scenario)
	assert.Equal(t, "no stale-while-revalidate", rows[len(rows)-1].Scenario)

	store.AssertExpectations(t)
	mgr.AssertExpectations(t)
}

func TestExecuteSimulate_InvalidScenario(t *testing.T) {
	cfg := testConfig(t, contract.ConfigRawInput{})
	err := executeSimulate(context.Background(), cfg, nil, discardLogger(), "never")
	assert.ErrorContains(t, err, "invalid scenario")
}

func TestExecuteLoad(t *testing.T) {
	cfg := testConfig(t, contract.ConfigRawInput{Latency: "1ms", Subscribers: 6, Scopes: 2, Rounds: 2})

	mgr := &iocache.MockSnapshotManager{}
	mgr.On("GetSnapshotStore").Return(nil)

	require.NoError(t, executeLoad(context.Background(), cfg, mgr, discardLogger()))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.EqualValues(t, 12, got["hits"].(float64)+got["misses"].(float64))
	assert.NotEmpty(t, got["label"])
	mgr.AssertExpectations(t)
}

func TestRecordRun(t *testing.T) {
	cfg := testConfig(t, contract.ConfigRawInput{})
	snap := schema.PerfSnapshot{Hits: 3}

	t.Run("begin failure skips the snapshot", func(t *testing.T) {
		store := &iocache.MockSnapshotStore{}
		store.On("BeginRun", "load", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))
		mgr := &iocache.MockSnapshotManager{}
		mgr.On("GetSnapshotStore").Return(store)

		recordRun(mgr, discardLogger(), "load", time.Now(), cfg, snap)
		store.AssertNotCalled(t, "RecordSnapshot", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("records config params", func(t *testing.T) {
		store := &iocache.MockSnapshotStore{}
		store.On("BeginRun", "load", mock.Anything, mock.MatchedBy(func(p map[string]any) bool {
			return p["ttl"] == "2m0s" && p["stale_while_revalidate"] == true
		})).Return(int64(1), nil)
		store.On("RecordSnapshot", int64(1), mock.Anything, snap).Return(nil)
		mgr := &iocache.MockSnapshotManager{}
		mgr.On("GetSnapshotStore").Return(store)

		recordRun(mgr, discardLogger(), "load", time.Now(), cfg, snap)
		store.AssertExpectations(t)
	})

	t.Run("nil manager", func(t *testing.T) {
		assert.NotPanics(t, func() { recordRun(nil, discardLogger(), "load", time.Now(), cfg, snap) })
	})
}

func TestLogMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	sink, err := perf.NewOTelSink(provider.Meter("test"))
	require.NoError(t, err)
	sink.CacheHit("members")
	sink.FetchDone("members", 20*time.Millisecond, nil)

	var buf bytes.Buffer
	logMetrics(context.Background(), reader, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	assert.Contains(t, buf.String(), "dashcache.cache.hits")
	assert.Contains(t, buf.String(), "label=members")
}

func TestNewCoordinator_Capacity(t *testing.T) {
	cfg := testConfig(t, contract.ConfigRawInput{Capacity: 2})
	c := newCoordinator(cfg, discardLogger(), perf.Noop{})
	defer c.Close()
	assert.Equal(t, uint64(2), c.Status().Capacity)
}
