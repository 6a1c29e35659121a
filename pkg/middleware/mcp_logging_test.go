package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testDealID = "8d5f7a4e-3c1b-4a55-9e0f-2d6c1b7a9e10"

func serveMCP(t *testing.T, logger *zap.Logger, reqBody, respBody string) *httptest.ResponseRecorder {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, reqBody, string(got), "request body must reach the MCP server intact")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respBody))
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(reqBody))
	rec := httptest.NewRecorder()
	MCPRequestLogger(logger)(handler).ServeHTTP(rec, req)
	return rec
}

func TestMCPRequestLogger_ToolCallOutcomes(t *testing.T) {
	getDeal := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_draft_readiness","arguments":{"deal_id":"` + testDealID + `"}}}`

	tests := []struct {
		name      string
		response  string
		message   string
		level     zapcore.Level
		errorCode any
	}{
		{
			name:     "success",
			response: `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{\"ready\":true}"}]}}`,
			message:  "MCP response success",
			level:    zapcore.DebugLevel,
		},
		{
			name:      "domain error result",
			response:  `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"{\"error\":true,\"code\":\"not_found\",\"message\":\"deal not found\"}"}]}}`,
			message:   "MCP tool returned domain error",
			level:     zapcore.InfoLevel,
			errorCode: "not_found",
		},
		{
			name:      "error result without structured code",
			response:  `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"boom"}]}}`,
			message:   "MCP tool returned domain error",
			level:     zapcore.InfoLevel,
			errorCode: "tool_error",
		},
		{
			name:      "protocol error",
			response:  `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"internal error"}}`,
			message:   "MCP response error",
			level:     zapcore.WarnLevel,
			errorCode: int64(-32603),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			rec := serveMCP(t, zap.New(core), getDeal, tt.response)

			assert.Equal(t, tt.response, rec.Body.String(), "response must pass through unchanged")
			require.Equal(t, 2, logs.Len())

			request := logs.All()[0]
			assert.Equal(t, "MCP request", request.Message)
			assert.Equal(t, "tools/call", request.ContextMap()["method"])
			assert.Equal(t, "get_draft_readiness", request.ContextMap()["tool"])
			assert.Equal(t, testDealID, request.ContextMap()["deal_id"])

			outcome := logs.All()[1]
			assert.Equal(t, tt.message, outcome.Message)
			assert.Equal(t, tt.level, outcome.Level)
			assert.Equal(t, testDealID, outcome.ContextMap()["deal_id"])
			assert.Contains(t, outcome.ContextMap(), "duration")
			assert.Equal(t, tt.errorCode, outcome.ContextMap()["error_code"])
		})
	}
}

func TestMCPRequestLogger_NonToolRequests(t *testing.T) {
	t.Run("list request has no deal", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		serveMCP(t, zap.New(core),
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_deals","arguments":{}}}`,
			`{"jsonrpc":"2.0","id":2,"result":{"content":[]}}`)

		require.Equal(t, 2, logs.Len())
		assert.NotContains(t, logs.All()[0].ContextMap(), "deal_id")
		assert.Equal(t, "list_deals", logs.All()[1].ContextMap()["tool"])
	})

	t.Run("malformed request still reaches the server", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		rec := serveMCP(t, zap.New(core), `{not json`, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, logs.FilterMessage("Failed to parse MCP request JSON").Len())
		assert.Equal(t, 1, logs.FilterMessage("MCP response error").Len())
	})

	t.Run("empty body", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		serveMCP(t, zap.New(core), "", "")

		assert.Equal(t, 0, logs.FilterMessage("Failed to parse MCP request JSON").Len())
		assert.Equal(t, 1, logs.FilterMessage("Failed to parse MCP response JSON").Len())
	})

	t.Run("nil logger is a pass-through", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
		rec := httptest.NewRecorder()
		MCPRequestLogger(nil)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestRedactArguments(t *testing.T) {
	assert.Nil(t, redactArguments(nil))

	long := strings.Repeat("x", 250)
	got := redactArguments(map[string]any{
		"deal_id":     testDealID,
		"api_key":     "sk-live-123",
		"AccessToken": "xyz",
		"question":    "Is Jane Smith at jane@example.com the guarantor?",
		"context":     long,
		"limit":       float64(10),
	})

	assert.Equal(t, testDealID, got["deal_id"])
	assert.Equal(t, "[REDACTED]", got["api_key"])
	assert.Equal(t, "[REDACTED]", got["AccessToken"])
	assert.NotContains(t, got["question"], "jane@example.com")
	assert.NotContains(t, got["question"], "Jane Smith")
	assert.Equal(t, strings.Repeat("x", maxLoggedArgLength)+"...", got["context"])
	assert.Equal(t, float64(10), got["limit"])
}
