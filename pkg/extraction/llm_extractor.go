package extraction

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/llm"
	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/prompts"
	"github.com/ekaya-inc/deal-triage/pkg/redact"
	"github.com/ekaya-inc/deal-triage/pkg/retry"
)

type llmExtractor struct {
	client      llm.LLMClient
	docs        DocumentSource
	temperature float64
	retryConfig *retry.Config
	logger      *zap.Logger
}

// NewLLMExtractor creates an extractor that asks an LLM for the terms.
// A nil retry config uses retry.CollaboratorConfig.
func NewLLMExtractor(client llm.LLMClient, docs DocumentSource, temperature float64, retryConfig *retry.Config, logger *zap.Logger) Extractor {
	if retryConfig == nil {
		retryConfig = retry.CollaboratorConfig()
	}
	return &llmExtractor{
		client:      client,
		docs:        docs,
		temperature: temperature,
		retryConfig: retryConfig,
		logger:      logger.Named("extraction"),
	}
}

var _ Extractor = (*llmExtractor)(nil)

func (e *llmExtractor) Extract(ctx context.Context, dealID uuid.UUID) (*models.ExtractedTerms, error) {
	text, err := loadDealText(ctx, e.docs, dealID)
	if err != nil {
		return nil, err
	}

	// Stored text is already redacted; this covers anything persisted before
	// the redaction rules last changed.
	prompt := prompts.BuildExtractTermsPrompt(redact.PII(text))

	ctx = llm.WithRunContext(ctx, llm.RunContext{
		DealID:        dealID,
		PromptName:    prompts.ExtractTermsV1.Name,
		PromptVersion: prompts.ExtractTermsV1.Version,
	})

	result, err := retry.DoIfRetryableWithResult(ctx, e.retryConfig, func() (*llm.GenerateResponseResult, error) {
		return e.client.GenerateResponse(ctx, prompt, prompts.ExtractTermsSystemMessage, e.temperature)
	})
	if err != nil {
		e.logger.Error("LLM extraction call failed",
			zap.String("deal_id", dealID.String()),
			zap.String("model", e.client.GetModel()),
			zap.String("error", redact.Error(err)))
		return nil, failed("%w", err)
	}

	terms, err := DecodeTerms(result.Content)
	if err != nil {
		e.logger.Error("Failed to decode extraction response",
			zap.String("deal_id", dealID.String()),
			zap.Int("response_length", len(result.Content)),
			zap.Error(err))
		return nil, failed("%w", err)
	}

	e.logger.Info("Extracted terms",
		zap.String("deal_id", dealID.String()),
		zap.String("prompt", prompts.ExtractTermsV1.ID()),
		zap.Int("total_tokens", result.TotalTokens))
	return terms, nil
}
