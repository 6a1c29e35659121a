// Package tools provides MCP tool implementations for deal triage.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/services"
)

// DealToolDeps contains dependencies for deal tools.
type DealToolDeps struct {
	DealService services.DealService
	Logger      *zap.Logger
}

// RegisterDealTools registers the deal triage MCP tools.
func RegisterDealTools(s *server.MCPServer, deps *DealToolDeps) {
	registerListDealsTool(s, deps)
	registerGetDealTool(s, deps)
	registerGetDraftReadinessTool(s, deps)
	registerAnalyzeDealTool(s, deps)
}

type listDealsResponse struct {
	Deals []models.Deal `json:"deals"`
	Count int           `json:"count"`
}

func registerListDealsTool(s *server.MCPServer, deps *DealToolDeps) {
	tool := mcp.NewTool(
		"list_deals",
		mcp.WithDescription("List all deals, newest first. Returns each deal's id, name, creator and creation time."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deals, err := deps.DealService.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list deals: %w", err)
		}
		return jsonResult(listDealsResponse{Deals: deals, Count: len(deals)})
	})
}

func registerGetDealTool(s *server.MCPServer, deps *DealToolDeps) {
	tool := mcp.NewTool(
		"get_deal",
		mcp.WithDescription(
			"Get a deal snapshot: documents, extracted terms with citations, confirmed fields, "+
				"the latest analysis, the IC draft and draft readiness.",
		),
		mcp.WithString("deal_id", mcp.Required(), mcp.Description("Deal UUID")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dealID, errResult := requireDealID(req)
		if errResult != nil {
			return errResult, nil
		}

		snap, err := deps.DealService.Get(ctx, dealID)
		if err != nil {
			return domainResult(deps, "get_deal", dealID, err)
		}
		return jsonResult(snap)
	})
}

func registerGetDraftReadinessTool(s *server.MCPServer, deps *DealToolDeps) {
	tool := mcp.NewTool(
		"get_draft_readiness",
		mcp.WithDescription(
			"Report whether an IC draft may be generated for a deal, and which confirmations are still missing. "+
				"Drafting requires confirmed loan amount, lien position, repayment source and a collateral value.",
		),
		mcp.WithString("deal_id", mcp.Required(), mcp.Description("Deal UUID")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dealID, errResult := requireDealID(req)
		if errResult != nil {
			return errResult, nil
		}

		readiness, err := deps.DealService.Readiness(ctx, dealID)
		if err != nil {
			return domainResult(deps, "get_draft_readiness", dealID, err)
		}
		return jsonResult(readiness)
	})
}

func registerAnalyzeDealTool(s *server.MCPServer, deps *DealToolDeps) {
	tool := mcp.NewTool(
		"analyze_deal",
		mcp.WithDescription(
			"Run the deterministic analysis on a deal's current terms and store the result. "+
				"Returns metrics, ranked risk flags, diligence questions and the triage verdict.",
		),
		mcp.WithString("deal_id", mcp.Required(), mcp.Description("Deal UUID")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dealID, errResult := requireDealID(req)
		if errResult != nil {
			return errResult, nil
		}

		result, err := deps.DealService.Analyze(ctx, dealID)
		if err != nil {
			return domainResult(deps, "analyze_deal", dealID, err)
		}
		return jsonResult(result)
	})
}

func requireDealID(req mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString("deal_id")
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters", err.Error())
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters", fmt.Sprintf("deal_id %q is not a valid UUID", raw))
	}
	return id, nil
}

// domainResult returns domain errors as tool results and everything else as a Go error.
func domainResult(deps *DealToolDeps, tool string, dealID uuid.UUID, err error) (*mcp.CallToolResult, error) {
	if result, ok := NewDomainErrorResult(err); ok {
		return result, nil
	}
	deps.Logger.Error("Deal tool failed",
		zap.String("tool", tool),
		zap.String("deal_id", dealID.String()),
		zap.Error(err))
	return nil, fmt.Errorf("%s failed: %w", tool, err)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
