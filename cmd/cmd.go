// Package cmd defines the command-line interface for dashcache.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the stats subcommands to the parent stats command
	statsCmd.AddCommand(statsStatusCmd)
	statsCmd.AddCommand(statsClearCmd)
	statsCmd.AddCommand(statsExportCmd)
	statsCmd.AddCommand(statsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("ttl", contract.DefaultTTL.String(), "Default freshness window for cached results")
	rootCmd.PersistentFlags().String("stale-while-revalidate", "yes", "Serve stale results while refetching in the background (yes/no)")
	rootCmd.PersistentFlags().String("coalesce", "yes", "Share one in-flight fetch between subscribers of a key (yes/no)")
	rootCmd.PersistentFlags().Int("capacity", 0, "Maximum number of cached keys (0 = unbounded)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("snapshot-backend", string(schema.SQLiteBackend), "Snapshot backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("snapshot-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("latency", contract.DefaultLatency.String(), "Simulated backend latency per fetch")
	rootCmd.PersistentFlags().Float64("failure-rate", 0, "Fraction of simulated fetches that fail (0 to 1)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of simulateCmd to Viper
	simulateCmd.Flags().String("scenario", scenarioBoth, "Scenario to replay: swr or no-swr or both")
	if err := viper.BindPFlags(simulateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding simulate flags", err)
	}

	// Bind all flags of loadCmd to Viper
	loadCmd.Flags().Int("subscribers", contract.DefaultSubscribers, "Number of concurrent subscribers")
	loadCmd.Flags().Int("scopes", contract.DefaultScopes, "Number of simulated churches")
	loadCmd.Flags().Int("rounds", contract.DefaultRounds, "Keys each subscriber mounts in turn")
	if err := viper.BindPFlags(loadCmd.Flags()); err != nil {
		contract.LogFatal("Error binding load flags", err)
	}

	// Bind all flags of statsMigrateCmd to Viper
	statsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(statsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding stats migrate flags", err)
	}
}
