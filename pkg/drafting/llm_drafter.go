package drafting

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/jsonutil"
	"github.com/ekaya-inc/deal-triage/pkg/llm"
	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/prompts"
	"github.com/ekaya-inc/deal-triage/pkg/redact"
	"github.com/ekaya-inc/deal-triage/pkg/retry"
)

type llmDrafter struct {
	client      llm.LLMClient
	temperature float64
	retryConfig *retry.Config
	logger      *zap.Logger
	now         func() time.Time
}

// NewLLMDrafter creates a drafter backed by an LLM. A nil retry config uses
// retry.CollaboratorConfig.
func NewLLMDrafter(client llm.LLMClient, temperature float64, retryConfig *retry.Config, logger *zap.Logger) Drafter {
	if retryConfig == nil {
		retryConfig = retry.CollaboratorConfig()
	}
	return &llmDrafter{
		client:      client,
		temperature: temperature,
		retryConfig: retryConfig,
		logger:      logger.Named("drafting"),
		now:         time.Now,
	}
}

var _ Drafter = (*llmDrafter)(nil)

// draftResponse tolerates the usual model deviations: a summary sent as a
// list of lines and list items sent as bare strings or numbers.
type draftResponse struct {
	Banner                string          `json:"banner"`
	ICSummary3Lines       json.RawMessage `json:"ic_summary_3_lines"`
	TopRisksRanked        json.RawMessage `json:"top_risks_ranked"`
	MitigantsOrConditions json.RawMessage `json:"mitigants_or_conditions"`
	DiligenceQuestions    json.RawMessage `json:"diligence_questions"`
	WhatChangesMyMind     json.RawMessage `json:"what_changes_my_mind"`
}

func (d *llmDrafter) Draft(ctx context.Context, dealID uuid.UUID, terms *models.ExtractedTerms, analysis *models.Analysis) (*models.ICDraft, error) {
	prompt, err := prompts.BuildICDraftPrompt(promptTerms(terms), analysis)
	if err != nil {
		return nil, failed("%w", err)
	}

	ctx = llm.WithRunContext(ctx, llm.RunContext{
		DealID:        dealID,
		PromptName:    prompts.ICDraftV1.Name,
		PromptVersion: prompts.ICDraftV1.Version,
	})

	result, err := retry.DoIfRetryableWithResult(ctx, d.retryConfig, func() (*llm.GenerateResponseResult, error) {
		return d.client.GenerateResponse(ctx, prompt, prompts.ICDraftSystemMessage, d.temperature)
	})
	if err != nil {
		d.logger.Error("LLM drafting call failed",
			zap.String("deal_id", dealID.String()),
			zap.String("model", d.client.GetModel()),
			zap.String("error", redact.Error(err)))
		return nil, failed("%w", err)
	}

	resp, err := llm.ParseJSONResponse[draftResponse](result.Content)
	if err != nil {
		d.logger.Error("Failed to decode draft response",
			zap.String("deal_id", dealID.String()),
			zap.Error(err))
		return nil, failed("%w", err)
	}

	draft := &models.ICDraft{
		Banner:                strings.TrimSpace(resp.Banner),
		ICSummary3Lines:       redact.PII(summaryText(resp.ICSummary3Lines)),
		TopRisksRanked:        redact.Strings(jsonutil.FlexibleStringList(resp.TopRisksRanked)),
		MitigantsOrConditions: redact.Strings(jsonutil.FlexibleStringList(resp.MitigantsOrConditions)),
		DiligenceQuestions:    redact.Strings(jsonutil.FlexibleStringList(resp.DiligenceQuestions)),
		WhatChangesMyMind:     redact.PII(strings.TrimSpace(jsonutil.FlexibleStringValue(resp.WhatChangesMyMind))),
		GeneratedBy:           prompts.ICDraftV1.ID(),
		DraftedAt:             d.now().UTC(),
	}
	if err := checkDraft(draft); err != nil {
		d.logger.Warn("Rejected draft response",
			zap.String("deal_id", dealID.String()),
			zap.Error(err))
		return nil, err
	}

	d.logger.Info("Drafted IC summary",
		zap.String("deal_id", dealID.String()),
		zap.String("prompt", draft.GeneratedBy),
		zap.Int("total_tokens", result.TotalTokens))
	return draft, nil
}

// promptTerms returns the terms as sent to the model: citations stripped and
// analyst free text redacted.
func promptTerms(terms *models.ExtractedTerms) *models.ExtractedTerms {
	if terms == nil {
		return nil
	}
	out := terms.Clone()
	out.Citations = nil
	if out.RepaymentSource != nil {
		v := redact.PII(*out.RepaymentSource)
		out.RepaymentSource = &v
	}
	if out.Notes != nil {
		v := redact.PII(*out.Notes)
		out.Notes = &v
	}
	out.KeyConditions = redact.Strings(out.KeyConditions)
	return out
}

func summaryText(raw json.RawMessage) string {
	if lines := jsonutil.FlexibleStringList(raw); len(lines) > 1 {
		return strings.Join(lines, "\n")
	}
	return strings.TrimSpace(jsonutil.FlexibleStringValue(raw))
}
