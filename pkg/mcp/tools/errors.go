package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// It carries actionable error information as a tool result so the
// details reach the agent instead of being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors the agent can act on, such as an unknown
// deal or unmet drafting preconditions.
//
// Do NOT use this for system failures; those should still return Go errors.
//
// Example:
//
//	if deal == nil {
//	    return NewErrorResult("not_found", "deal not found"), nil
//	}
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with additional context.
// The details field can carry structured context such as unmet gate names.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "not_ready",
//	    "drafting preconditions are not met",
//	    map[string]any{"unmet": []string{"repayment_source"}},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewDomainErrorResult converts a classified domain error into a structured
// error result. ok is false for system errors, which callers return as Go errors.
func NewDomainErrorResult(err error) (result *mcp.CallToolResult, ok bool) {
	code, details, ok := apperrors.Classify(err)
	if !ok {
		return nil, false
	}
	return NewErrorResultWithDetails(code, err.Error(), details), true
}
