package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/iocache"
)

// simulateCmd replays the dashboard revisit story on a virtual clock.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a dashboard revisit with and without stale-while-revalidate.",
	Long: `Replay the same dashboard visit against a simulated backend and print what
a subscriber sees at each step.

The replay walks through:
- First mount (loading, then fetched)
- Remount within the TTL (served from cache, no backend call)
- Remount after the TTL once the backend totals changed
- Refresh during a backend outage, then after recovery
- Unmount

With stale-while-revalidate the stale totals stay on screen while a background
fetch runs. Without it the subscriber drops back to a loading state.

Examples:
  # Compare both modes side by side
  dashcache simulate

  # Only the stale-while-revalidate replay, with a 5 minute TTL
  dashcache simulate --scenario swr --ttl 5m

  # Export the timeline as JSON
  dashcache simulate --output json --output-file timeline.json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := executeSimulate(rootCtx, cfg, iocache.Manager, logger, viper.GetString("scenario")); err != nil {
			contract.LogFatal("Cannot run simulation", err)
		}
	},
}
