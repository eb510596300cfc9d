package schema

import "time"

// StoreStatus represents the status of the in-memory result store.
type StoreStatus struct {
	Entries     int       `json:"entries"`
	Capacity    uint64    `json:"capacity"` // 0 means unbounded
	OldestEntry time.Time `json:"oldest_entry"`
	NewestEntry time.Time `json:"newest_entry"`
	Keys        []string  `json:"keys"`
}

// SnapshotStatus represents the status of the snapshot store.
type SnapshotStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	LastRunID     int64            `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// LabelStats holds aggregate counters for one instrumentation label.
type LabelStats struct {
	Label         string        `json:"label"`
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	Calls         int64         `json:"calls"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
}

// PerfSnapshot is a point-in-time view of the instrumentation counters.
type PerfSnapshot struct {
	TakenAt     time.Time     `json:"taken_at"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Calls       int64         `json:"calls"`
	Errors      int64         `json:"errors"`
	AvgDuration time.Duration `json:"avg_duration"`
	HitRatio    float64       `json:"hit_ratio"`
	Labels      []LabelStats  `json:"labels"`
}

// SnapshotRunRecord represents a row from the dashcache_snapshot_runs table.
type SnapshotRunRecord struct {
	RunID         int64
	RunUUID       string
	Command       string
	StartTime     time.Time
	EndTime       *time.Time
	DurationMs    *int64
	Hits          int64
	Misses        int64
	Calls         int64
	Errors        int64
	AvgDurationMs float64
	ConfigParams  *string
}

// LabelStatsRecord represents a row from the dashcache_label_stats table.
type LabelStatsRecord struct {
	RunID         int64
	Label         string
	RecordedAt    time.Time
	Hits          int64
	Misses        int64
	Calls         int64
	Errors        int64
	AvgDurationMs float64
	MaxDurationMs float64
}

// TimelineRow is one observation of a subscription during a simulated scenario.
type TimelineRow struct {
	Scenario     string            `json:"scenario"`
	Step         string            `json:"step"`
	Elapsed      time.Duration     `json:"elapsed"`
	State        SubscriptionState `json:"state"`
	Data         string            `json:"data"`
	Loading      bool              `json:"loading"`
	Revalidating bool              `json:"revalidating"`
	Err          string            `json:"error,omitempty"`
	BackendCalls int64             `json:"backend_calls"`
}
