package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huangsam/dashcache/core/perf"
	"github.com/huangsam/dashcache/internal/mcp"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the dashcache MCP server",
	Long:  `Launch an MCP server that lets AI agents load dashboard data through a live cache and inspect it via standard tools.`,
	// Logs go to stderr so stdout stays reserved for the protocol.
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		monitor := perf.NewMonitor()
		c := newCoordinator(cfg, logger, monitor)
		defer c.Close()
		return mcp.StartMCPServer(rootCtx, cfg, c, newBackend(cfg, logger), monitor)
	},
}
