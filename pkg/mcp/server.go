// Package mcp exposes deal triage operations to agents over the Model Context Protocol.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Instructions is sent to clients on initialize.
const Instructions = "Deal triage tools. Use list_deals to find a deal, get_deal for its terms, " +
	"analysis and draft, get_draft_readiness to see which confirmations are missing, " +
	"and analyze_deal to recompute the deterministic analysis. Drafting and term edits " +
	"are analyst actions and are not exposed here."

// Server wraps the mcp-go MCPServer that exposes deal triage tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. Tool handler panics are
// recovered and request errors are logged.
func NewServer(name, version string, logger *zap.Logger) *Server {
	logger = logger.Named("mcp")

	hooks := &server.Hooks{}
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Warn("MCP request failed",
			zap.String("method", string(method)),
			zap.Any("id", id),
			zap.Error(err))
	})

	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(Instructions),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// Sessions are stateless; the HTTP mux routes /mcp here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
