// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/huangsam/dashcache/core"
	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/schema"
)

// resourceNames lists the resource enum offered to agents.
func resourceNames() []string {
	names := make([]string, len(schema.AllResources))
	for i, r := range schema.AllResources {
		names[i] = string(r)
	}
	return names
}

// NewMCPServer initializes and configures the dashcache MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, c *core.Coordinator, backend contract.Backend, perf contract.PerfSource) *server.MCPServer {
	s := server.NewMCPServer(
		"Dashcache Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		c:       c,
		backend: backend,
		perf:    perf,
	}

	// --- 1. Tool: fetch_dashboard ---
	s.AddTool(mcp.NewTool("fetch_dashboard",
		mcp.WithDescription("Load one dashboard resource for a scope through the shared cache."),
		mcp.WithString("scope", mcp.Description("Scope identifier, e.g. 'church1'."), mcp.Required()),
		mcp.WithString("resource", mcp.Description("Dashboard resource to load."), mcp.Required(), mcp.Enum(resourceNames()...)),
		mcp.WithBoolean("refresh", mcp.Description("Bypass freshness and fetch from the backend.")),
	), h.handleFetchDashboard)

	// --- 2. Tool: cache_status ---
	s.AddTool(mcp.NewTool("cache_status",
		mcp.WithDescription("Show the entries currently held by the result store."),
	), h.handleCacheStatus)

	// --- 3. Tool: perf_snapshot ---
	s.AddTool(mcp.NewTool("perf_snapshot",
		mcp.WithDescription("Report cache hits, misses and backend fetch timings per resource."),
	), h.handlePerfSnapshot)

	// --- 4. Tool: clear_cache ---
	s.AddTool(mcp.NewTool("clear_cache",
		mcp.WithDescription("Remove one key, every key with a prefix, or the whole result store."),
		mcp.WithString("key", mcp.Description("Exact key to remove, e.g. 'members-church1'.")),
		mcp.WithString("prefix", mcp.Description("Remove every key starting with this prefix.")),
	), h.handleClearCache)

	return s
}

// StartMCPServer starts the dashcache MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, c *core.Coordinator, backend contract.Backend, perf contract.PerfSource) error {
	s := NewMCPServer(baseCfg, c, backend, perf)
	return server.ServeStdio(s)
}
