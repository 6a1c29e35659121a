package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestClient_GenerateResponse(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"ok\": true}"}}],
			"usage": {"prompt_tokens": 11, "completion_tokens": 4, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL + "/v1/", Model: "gpt-4o", MaxTokens: 256, JSONMode: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.GenerateResponse(context.Background(), "the prompt", "the system", 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != `{"ok": true}` {
		t.Errorf("unexpected content %q", result.Content)
	}
	if result.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d", result.TotalTokens)
	}

	if body["model"] != "gpt-4o" {
		t.Errorf("model = %v", body["model"])
	}
	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", body["response_format"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
}

func TestClient_GenerateResponse_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "gpt-4o"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.GenerateResponse(context.Background(), "p", "s", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("expected 503 to be retryable, got %v", err)
	}
}

func TestNewClient_RequiresEndpointAndModel(t *testing.T) {
	if _, err := NewClient(&Config{Model: "m"}, zap.NewNop()); err == nil {
		t.Error("expected error without endpoint")
	}
	if _, err := NewClient(&Config{Endpoint: "http://x"}, zap.NewNop()); err == nil {
		t.Error("expected error without model")
	}
}
