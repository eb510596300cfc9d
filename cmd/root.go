package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/iocache"
	"github.com/huangsam/dashcache/schema"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// logger is built by sharedSetup from the validated config.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// closeLog releases the log file opened by sharedSetup.
var closeLog = func() error { return nil }

// profilePrefix is non-empty while CPU profiling runs.
var profilePrefix string

// startProfiling starts CPU profiling when --profile is set.
func startProfiling(prefix string) error {
	if prefix == "" {
		return nil
	}
	cpuFile, err := os.Create(prefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		_ = cpuFile.Close()
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}
	profilePrefix = prefix
	logger.Info("Profiling enabled", slog.String("cpu", prefix+".cpu.prof"), slog.String("mem", prefix+".mem.prof"))
	return nil
}

// stopProfiling stops profiling and writes the memory profile.
func stopProfiling() error {
	if profilePrefix == "" {
		return nil
	}
	pprof.StopCPUProfile()

	memFile, err := os.Create(profilePrefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	profilePrefix = ""
	return nil
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "dashcache",
	Short:              "Exercise a keyed result cache for dashboard data.",
	Long:               `Dashcache drives a stale-while-revalidate data cache against a simulated dashboard backend and reports how well it deduplicates and serves requests.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigFile()

	// Set environment variable prefix
	viper.SetEnvPrefix("DASHCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("ttl", contract.DefaultTTL.String())
	viper.SetDefault("stale-while-revalidate", "yes")
	viper.SetDefault("coalesce", "yes")
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("snapshot-backend", schema.SQLiteBackend)
	viper.SetDefault("snapshot-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("log-level", "warn")
	viper.SetDefault("latency", contract.DefaultLatency.String())
}

// setConfigFile points viper at --config or the default .dashcache.yaml locations.
func setConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".dashcache") // Name of config file (without extension)
	viper.SetConfigType("yaml")       // We'll use YAML format
	viper.AddConfigPath(".")          // Look in the current directory
	viper.AddConfigPath("$HOME")      // Look in the home directory
}

// readConfigFile loads the config file if one exists.
func readConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// sharedSetup unmarshals config, runs validation and opens the snapshot store.
func sharedSetup(_ context.Context, _ *cobra.Command, _ []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := readConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	// 4. Structured logging, optionally fanned out to a JSON log file.
	l, closer, err := contract.SetupLogging(cfg, os.Stderr)
	if err != nil {
		return err
	}
	logger, closeLog = l, closer

	if err := startProfiling(viper.GetString("profile")); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}

	// 5. Initialize persistence layer with validated config
	if err := iocache.InitStores(cfg.SnapshotBackend, cfg.SnapshotDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// Execute runs the root command and releases process-wide resources afterwards.
func Execute() error {
	err := rootCmd.Execute()
	if perr := stopProfiling(); perr != nil {
		contract.LogWarn("Failed to stop profiling", perr)
	}
	if cerr := iocache.CloseStores(); cerr != nil {
		contract.LogWarn("Failed to close snapshot store", cerr)
	}
	if lerr := closeLog(); lerr != nil {
		contract.LogWarn("Failed to close log file", lerr)
	}
	return err
}
