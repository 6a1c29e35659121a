package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Pinger reports whether the deal store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Error   string `json:"error,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server version and whether the deal store answers;
// a nil store is the in-memory backend and is always reachable.
func RegisterHealthTool(s *server.MCPServer, version string, store Pinger) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and deal store reachability"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version, Store: "memory"}
		if store != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			res.Store = "ok"
			if err := store.Ping(pingCtx); err != nil {
				res.Status = "degraded"
				res.Store = "unavailable"
				res.Error = err.Error()
			}
		}

		result, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
