package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/huangsam/dashcache/core"
	"github.com/huangsam/dashcache/internal/contract"
	"github.com/huangsam/dashcache/internal/sim"
	"github.com/huangsam/dashcache/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	c       *core.Coordinator
	backend contract.Backend
	perf    contract.PerfSource
}

// dashboardResult is the fetch_dashboard payload.
type dashboardResult struct {
	Key          string                   `json:"key"`
	State        schema.SubscriptionState `json:"state"`
	Data         map[string]any           `json:"data,omitempty"`
	Revalidating bool                     `json:"revalidating"`
	Error        string                   `json:"error,omitempty"`
	UpdatedAt    time.Time                `json:"updated_at"`
	TTL          string                   `json:"ttl"`
	BackendCalls int64                    `json:"backend_calls"`
}

func (h *toolHandler) handleFetchDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := request.GetString("scope", "")
	if scope == "" {
		return mcp.NewToolResultError("scope is required"), nil
	}
	name := request.GetString("resource", "")
	resource, ok := contract.LookupResource(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource '%s'", name)), nil
	}

	cfg := h.baseCfg.Clone()
	ttl := cfg.TTLFor(resource)
	key := sim.Key(resource, scope)
	sub := core.Subscribe(h.c, key, sim.Fetcher(h.backend, scope, resource), []any{scope, resource},
		core.WithLabel(string(resource)),
		core.WithTTL(ttl),
		core.WithStaleWhileRevalidate(cfg.StaleWhileRevalidate),
	)
	defer sub.Close()

	r, err := sub.Wait(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch interrupted: %v", err)), nil
	}
	if request.GetBool("refresh", false) {
		// A failed refresh leaves the error on the subscription result.
		_, _ = sub.Refresh(ctx)
		r = sub.Current()
	}

	if r.Err != nil && !r.HasData {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", r.Err)), nil
	}

	out := dashboardResult{
		Key:          key,
		State:        r.State,
		Data:         r.Data,
		Revalidating: r.Revalidating,
		UpdatedAt:    r.UpdatedAt,
		TTL:          ttl.String(),
		BackendCalls: h.backend.Calls(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return jsonResult(out)
}

func (h *toolHandler) handleCacheStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.c.Status())
}

func (h *toolHandler) handlePerfSnapshot(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := h.perf.Snapshot()
	return jsonResult(struct {
		schema.PerfSnapshot
		Label string `json:"label"`
	}{snap, contract.GetPlainLabel(snap.HitRatio)})
}

func (h *toolHandler) handleClearCache(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("key", "")
	prefix := request.GetString("prefix", "")

	switch {
	case key != "" && prefix != "":
		return mcp.NewToolResultError("key and prefix are mutually exclusive"), nil
	case key != "":
		h.c.ClearCache(key)
		return mcp.NewToolResultText(fmt.Sprintf("Removed key %s", key)), nil
	case prefix != "":
		n := h.c.InvalidatePrefix(prefix)
		return mcp.NewToolResultText(fmt.Sprintf("Removed %d entries with prefix %s", n, prefix)), nil
	default:
		n := h.c.Status().Entries
		h.c.ClearAllCache()
		return mcp.NewToolResultText(fmt.Sprintf("Cleared %d entries", n)), nil
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
