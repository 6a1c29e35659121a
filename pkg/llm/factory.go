package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/config"
)

// NewClientFromConfig builds the client for the configured provider, guarded
// by a circuit breaker and, when recorder is non-nil, recording runs.
// The stub provider has no client: it returns nil and callers fall back to
// their deterministic implementations.
func NewClientFromConfig(cfg *config.LLMConfig, recorder RunRecorder, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:  cfg.Endpoint,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
		JSONMode:  true,
	}

	var (
		client LLMClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderStub:
		return nil, nil
	case config.ProviderOpenAI:
		client, err = NewClient(clientCfg, logger)
	case config.ProviderAnthropic:
		client, err = NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	client = NewGuardedClient(client, NewCircuitBreaker(DefaultCircuitBreakerConfig()))
	if recorder != nil {
		client = NewRecordingClient(client, recorder)
	}
	return client, nil
}
