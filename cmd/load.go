package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/iocache"
)

// loadCmd drives concurrent subscribers through one shared coordinator.
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Mount many concurrent subscribers and report cache efficiency.",
	Long: `Mount concurrent subscribers against a simulated backend and report the
hit ratio, backend calls and fetch latency per resource.

Each subscriber mounts --rounds keys in turn, spread over --scopes churches and
every dashboard resource. Subscribers asking for the same key while a fetch is
in flight share that fetch unless --coalesce=no.

Examples:
  # Default load: 20 subscribers, 3 churches, 3 rounds
  dashcache load

  # Heavier load with a flaky backend
  dashcache load --subscribers 500 --scopes 10 --failure-rate 0.05

  # Without request coalescing, for comparison
  dashcache load --coalesce no --output csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := executeLoad(rootCtx, cfg, iocache.Manager, logger); err != nil {
			contract.LogFatal("Cannot run load", err)
		}
	},
}
