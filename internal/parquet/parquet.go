// Package parquet exports recorded cache performance snapshots to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/huangsam/dashcache/schema"
)

// SnapshotRun is one recorded run of a dashcache command.
// This struct maps to the dashcache_snapshot_runs database table.
type SnapshotRun struct {
	RunID   int64  `parquet:"run_id,snappy"`
	RunUUID string `parquet:"run_uuid,snappy"`
	Command string `parquet:"command,dict,snappy"`

	// StartTime is when the run began (TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is nil for runs that never recorded a snapshot
	EndTime    *time.Time `parquet:"end_time,optional,snappy"`
	DurationMs *int64     `parquet:"run_duration_ms,optional,snappy"`

	Hits          int64   `parquet:"hits,snappy"`
	Misses        int64   `parquet:"misses,snappy"`
	Calls         int64   `parquet:"calls,snappy"`
	Errors        int64   `parquet:"errors,snappy"`
	AvgDurationMs float64 `parquet:"avg_duration_ms,snappy"`

	// ConfigParams contains the JSON-encoded configuration (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// LabelStats holds the counters of one instrumentation label within a run.
// This struct maps to the dashcache_label_stats database table.
type LabelStats struct {
	RunID         int64     `parquet:"run_id,snappy"`
	Label         string    `parquet:"label,dict,snappy"`
	RecordedAt    time.Time `parquet:"recorded_at,snappy"`
	Hits          int64     `parquet:"hits,snappy"`
	Misses        int64     `parquet:"misses,snappy"`
	Calls         int64     `parquet:"calls,snappy"`
	Errors        int64     `parquet:"errors,snappy"`
	AvgDurationMs float64   `parquet:"avg_duration_ms,snappy"`
	MaxDurationMs float64   `parquet:"max_duration_ms,snappy"`
}

// WriteSnapshotRunsParquet writes runs to a Parquet file at outputPath.
func WriteSnapshotRunsParquet(data []SnapshotRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteLabelStatsParquet writes label rows to a Parquet file at outputPath.
func WriteLabelStatsParquet(data []LabelStats, outputPath string) error {
	return writeParquet(data, outputPath)
}

func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the struct tags of T
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertSnapshotRunRecords converts store records to their Parquet rows.
func ConvertSnapshotRunRecords(records []schema.SnapshotRunRecord) []SnapshotRun {
	result := make([]SnapshotRun, len(records))
	for i, record := range records {
		result[i] = SnapshotRun{
			RunID:         record.RunID,
			RunUUID:       record.RunUUID,
			Command:       record.Command,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			DurationMs:    record.DurationMs,
			Hits:          record.Hits,
			Misses:        record.Misses,
			Calls:         record.Calls,
			Errors:        record.Errors,
			AvgDurationMs: record.AvgDurationMs,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertLabelStatsRecords converts store records to their Parquet rows.
func ConvertLabelStatsRecords(records []schema.LabelStatsRecord) []LabelStats {
	result := make([]LabelStats, len(records))
	for i, record := range records {
		result[i] = LabelStats(record)
	}
	return result
}
