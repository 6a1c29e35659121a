package llm

import (
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/config"
)

func TestNewClientFromConfig_Stub(t *testing.T) {
	client, err := NewClientFromConfig(&config.LLMConfig{Provider: config.ProviderStub}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Errorf("expected nil client for stub provider, got %T", client)
	}
}

func TestNewClientFromConfig_OpenAI(t *testing.T) {
	client, err := NewClientFromConfig(&config.LLMConfig{
		Provider: config.ProviderOpenAI,
		Endpoint: "http://localhost:8000/v1",
		Model:    "qwen2.5",
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*GuardedClient); !ok {
		t.Errorf("expected *GuardedClient, got %T", client)
	}
	if client.GetModel() != "qwen2.5" {
		t.Errorf("GetModel() = %s", client.GetModel())
	}
}

func TestNewClientFromConfig_RecorderWrapsOutermost(t *testing.T) {
	client, err := NewClientFromConfig(&config.LLMConfig{
		Provider: config.ProviderAnthropic,
		Model:    "claude-sonnet-4-5",
		APIKey:   "test-key",
	}, &captureRecorder{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*RecordingClient); !ok {
		t.Errorf("expected *RecordingClient, got %T", client)
	}
}

func TestNewClientFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LLMConfig
	}{
		{"unknown provider", config.LLMConfig{Provider: "bedrock"}},
		{"openai without endpoint", config.LLMConfig{Provider: config.ProviderOpenAI, Model: "m"}},
		{"anthropic without key", config.LLMConfig{Provider: config.ProviderAnthropic, Model: "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClientFromConfig(&tt.cfg, nil, zap.NewNop()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
