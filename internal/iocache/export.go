package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/parquet"
)

// ExecuteSnapshotExport exports every recorded run and label row from store
// to <outputFile>.runs.parquet and <outputFile>.label_stats.parquet.
func ExecuteSnapshotExport(w io.Writer, store contract.SnapshotStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("snapshot store is not initialized")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get snapshot status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no snapshot data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total label records: %d\n", status.TableSizes[labelStatsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve snapshot runs: %w", err)
	}
	labels, err := store.GetAllLabelStats()
	if err != nil {
		return fmt.Errorf("failed to retrieve label stats: %w", err)
	}

	runRows := parquet.ConvertSnapshotRunRecords(runs)
	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteSnapshotRunsParquet(runRows, runsFile); err != nil {
		return fmt.Errorf("failed to write snapshot runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runRows), runsFile)

	labelRows := parquet.ConvertLabelStatsRecords(labels)
	labelsFile := outputFile + ".label_stats.parquet"
	if err := parquet.WriteLabelStatsParquet(labelRows, labelsFile); err != nil {
		return fmt.Errorf("failed to write label stats: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d label records to: %s\n", len(labelRows), labelsFile)

	return nil
}
