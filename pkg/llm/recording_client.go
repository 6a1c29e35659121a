package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/redact"
)

// RecordingClient wraps an LLMClient and records every call that carries a
// RunContext. Calls without one pass straight through.
type RecordingClient struct {
	inner    LLMClient
	recorder RunRecorder
	now      func() time.Time
}

// NewRecordingClient creates a new recording wrapper around an LLMClient.
func NewRecordingClient(inner LLMClient, recorder RunRecorder) *RecordingClient {
	return &RecordingClient{
		inner:    inner,
		recorder: recorder,
		now:      time.Now,
	}
}

// GenerateResponse calls the inner client and records the run.
func (c *RecordingClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
) (*GenerateResponseResult, error) {
	rc, ok := GetRunContext(ctx)
	if !ok {
		return c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
	}

	hash := sha256.Sum256([]byte(systemMessage + "\n" + prompt))
	run := &models.LLMRun{
		ID:            uuid.New(),
		DealID:        rc.DealID,
		PromptName:    rc.PromptName,
		PromptVersion: rc.PromptVersion,
		Model:         c.inner.GetModel(),
		Temperature:   temperature,
		InputHash:     hex.EncodeToString(hash[:]),
		CreatedAt:     c.now().UTC(),
	}

	start := time.Now()
	result, err := c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
	run.DurationMs = int(time.Since(start).Milliseconds())

	if err != nil {
		run.Status = models.LLMRunStatusError
		run.ErrorMessage = redact.Truncate(redact.Error(err), 500)
	} else {
		run.Status = models.LLMRunStatusSuccess
		if result != nil {
			promptTokens, completionTokens := result.PromptTokens, result.CompletionTokens
			run.PromptTokens = &promptTokens
			run.CompletionTokens = &completionTokens
		}
	}

	c.recorder.Record(run)
	return result, err
}

// GetModel returns the inner client's model.
func (c *RecordingClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the inner client's endpoint.
func (c *RecordingClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}

var _ LLMClient = (*RecordingClient)(nil)
