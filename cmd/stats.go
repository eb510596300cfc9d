package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/iocache"
	"github.com/huangsam/dashcache/schema"
)

// snapshotBackendConfig reads and validates the snapshot backend settings only.
func snapshotBackendConfig() (schema.DatabaseBackend, string, error) {
	setConfigFile()
	if err := readConfigFile(); err != nil {
		return "", "", err
	}

	backend := schema.DatabaseBackend(viper.GetString("snapshot-backend"))
	if backend == "" {
		backend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid snapshot backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("snapshot-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// statsSetup loads minimal configuration needed for snapshot operations.
// This skips the load and output validation done by sharedSetup.
func statsSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := snapshotBackendConfig()
	if err != nil {
		return err
	}
	if err := iocache.InitStores(backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	cfg.SnapshotBackend = backend
	cfg.SnapshotDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// statsMigrateSetup resolves the backend without opening the store, so migrations
// can run against a fresh database.
func statsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := snapshotBackendConfig()
	if err != nil {
		return err
	}
	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = iocache.GetSnapshotDBFilePath()
	}

	cfg.SnapshotBackend = backend
	cfg.SnapshotDBConnect = connStr
	return nil
}

// statsCmd focused on recorded perf snapshots.
//
// Note: stats subcommands use minimal initialization (statsSetup) instead of
// the full sharedSetup used by simulate and load.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Manage recorded cache performance snapshots",
	Long: `Manage the perf snapshots recorded by simulate and load.

Every run stores:
- Run metadata (command, timestamps, configuration, duration)
- Totals for hits, misses, backend calls and errors
- Per-resource counters and fetch latency

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show snapshot store statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all recorded snapshots
  migrate - Run database schema migrations

Examples:
  # Check recorded runs
  dashcache stats status

  # Export for analysis in pandas/DuckDB
  dashcache stats export --output-file snapshots`,
}

// statsStatusCmd shows snapshot store status.
var statsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display snapshot store statistics and connection details",
	Long: `Show the backend, the number of recorded runs, the oldest and latest run,
and the size of every snapshot table.

Examples:
  dashcache stats status
  DASHCACHE_SNAPSHOT_BACKEND=mysql DASHCACHE_SNAPSHOT_DB_CONNECT="..." dashcache stats status`,
	PreRunE: statsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetSnapshotStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get snapshot status", err)
		}
		iocache.PrintSnapshotStatus(os.Stdout, status)
	},
}

// statsClearCmd removes every recorded snapshot.
var statsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded snapshots",
	Long: `Delete all recorded runs and per-resource counters.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the snapshot tables

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  dashcache stats export --output-file backup
  dashcache stats clear`,
	PreRunE: statsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		// The open SQLite handle must be released before its file is removed.
		if err := iocache.CloseStores(); err != nil {
			contract.LogWarn("Failed to close snapshot store", err)
		}
		if err := iocache.ClearSnapshots(cfg.SnapshotBackend, iocache.GetSnapshotDBFilePath(), cfg.SnapshotDBConnect); err != nil {
			contract.LogFatal("Failed to clear snapshots", err)
		}
		fmt.Println("Snapshots cleared successfully.")
	},
}

// statsExportCmd exports recorded snapshots to Parquet files.
var statsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded snapshots to Parquet for BI tools",
	Long: `Export every recorded run and per-resource row to Parquet.

Writes two files next to --output-file:
- <output-file>.runs.parquet
- <output-file>.label_stats.parquet

Requires: --output-file parameter

Examples:
  dashcache stats export --output-file snapshots
  duckdb -c "SELECT label, sum(hits) FROM read_parquet('snapshots.label_stats.parquet') GROUP BY label"`,
	PreRunE: statsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteSnapshotExport(os.Stdout, iocache.Manager.GetSnapshotStore(), cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export snapshots", err)
		}
	},
}

// statsMigrateCmd runs database migrations for the snapshot store.
var statsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the snapshot store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  dashcache stats migrate

  # Migrate to specific version
  dashcache stats migrate --target-version 1

  # Rollback to initial state
  dashcache stats migrate --target-version 0`,
	PreRunE: statsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateSnapshots(os.Stdout, cfg.SnapshotBackend, cfg.SnapshotDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
