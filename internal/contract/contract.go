// Package contract provides interfaces and shared utilities for the dashcache CLI's internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/dashcache/schema"
)

// Backend serves dashboard resources for a scope, standing in for the REST API.
// This allows commands and the MCP server to be tested without a network.
type Backend interface {
	// Fetch loads one resource for one scope.
	Fetch(ctx context.Context, scope string, resource schema.Resource) (map[string]any, error)

	// Calls returns how many fetches reached the backend.
	Calls() int64
}

// PerfSource exposes instrumentation totals.
type PerfSource interface {
	Snapshot() schema.PerfSnapshot
}

// SnapshotManager defines the interface for managing snapshot stores.
// This allows the persistence layer to be mocked for testing.
type SnapshotManager interface {
	GetSnapshotStore() SnapshotStore
}

// SnapshotStore defines the interface for persisting perf snapshots across runs.
type SnapshotStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(command string, startTime time.Time, configParams map[string]any) (int64, error)

	// RecordSnapshot stores the final totals and per-label stats of a run
	RecordSnapshot(runID int64, endTime time.Time, snap schema.PerfSnapshot) error

	// GetStatus returns status information about the snapshot store
	GetStatus() (schema.SnapshotStatus, error)

	// GetAllRuns returns every recorded run, oldest first
	GetAllRuns() ([]schema.SnapshotRunRecord, error)

	// GetAllLabelStats returns every recorded label row
	GetAllLabelStats() ([]schema.LabelStatsRecord, error)

	// Close closes the underlying connection
	Close() error
}
