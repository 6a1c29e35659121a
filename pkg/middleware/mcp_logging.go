package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/redact"
)

const maxLoggedArgLength = 200

// sensitiveArgKeywords mark argument names whose values are never logged.
var sensitiveArgKeywords = []string{"password", "secret", "token", "key", "credential"}

// MCPRequestLogger logs each MCP JSON-RPC exchange: the method, the tool and
// the deal it targets, redacted arguments, and how the call ended. Tool calls
// that come back as structured domain errors are logged with the error code
// the agent received. A nil logger disables logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			call, err := parseMCPCall(body)
			if err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}
			logger.Debug("MCP request", append(call.fields(), zap.Any("arguments", redactArguments(call.Params.Arguments)))...)

			recorder := &mcpResponseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			elapsed := time.Since(start)

			outcome, err := parseMCPOutcome(recorder.body.Bytes())
			if err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			fields := append(call.fields(), zap.Duration("duration", elapsed))
			switch {
			case outcome.rpcError != nil:
				logger.Warn("MCP response error", append(fields,
					zap.Int("error_code", outcome.rpcError.Code),
					zap.String("error_message", outcome.rpcError.Message))...)
			case outcome.toolError != "":
				logger.Info("MCP tool returned domain error", append(fields,
					zap.String("error_code", outcome.toolError))...)
			default:
				logger.Debug("MCP response success", fields...)
			}
		})
	}
}

// mcpCall is the part of a JSON-RPC request worth logging.
type mcpCall struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

func parseMCPCall(body []byte) (*mcpCall, error) {
	call := &mcpCall{}
	if len(bytes.TrimSpace(body)) == 0 {
		return call, nil
	}
	err := json.Unmarshal(body, call)
	return call, err
}

func (c *mcpCall) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("method", c.Method),
		zap.String("tool", c.Params.Name),
	}
	if dealID, ok := c.Params.Arguments["deal_id"].(string); ok {
		fields = append(fields, zap.String("deal_id", dealID))
	}
	return fields
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpOutcome says how a call ended: a protocol error, a tool result flagged
// as an error, or success.
type mcpOutcome struct {
	rpcError  *jsonRPCError
	toolError string
}

func parseMCPOutcome(body []byte) (*mcpOutcome, error) {
	var resp struct {
		Error  *jsonRPCError `json:"error"`
		Result *struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	outcome := &mcpOutcome{rpcError: resp.Error}
	if resp.Result == nil || !resp.Result.IsError {
		return outcome, nil
	}

	outcome.toolError = "tool_error"
	for _, c := range resp.Result.Content {
		if c.Type != "text" {
			continue
		}
		var payload struct {
			Code string `json:"code"`
		}
		if json.Unmarshal([]byte(c.Text), &payload) == nil && payload.Code != "" {
			outcome.toolError = payload.Code
			break
		}
	}
	return outcome, nil
}

// mcpResponseRecorder tees the response body so the outcome can be logged.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// redactArguments prepares tool arguments for logging. Deal ids pass through;
// credentials are dropped; other strings are PII-masked and truncated.
func redactArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		switch {
		case k == "deal_id":
			out[k] = v
		case isSensitiveArg(k):
			out[k] = redact.Marker
		default:
			if s, ok := v.(string); ok {
				out[k] = redact.Truncate(redact.PII(redact.Secrets(s)), maxLoggedArgLength)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func isSensitiveArg(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range sensitiveArgKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
