package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// runLLMRunContract checks run recording against any backend.
func runLLMRunContract(t *testing.T, deals DealRepository, runs LLMRunRepository) {
	ctx := context.Background()
	deal := &models.Deal{Name: "Run log"}
	require.NoError(t, deals.Create(ctx, deal))

	base := time.Now().UTC().Truncate(time.Millisecond)
	first := &models.LLMRun{
		DealID:        deal.ID,
		PromptName:    "extract_terms",
		PromptVersion: "v1",
		Model:         "gpt-4o",
		Temperature:   0.1,
		InputHash:     "a3f1c9e2b4d6f8a0c2e4f6a8b0d2f4a6c8e0a2b4d6f8a0c2e4f6a8b0d2f4a6c8",
		Status:        models.LLMRunStatusSuccess,
		PromptTokens:  ptr(1200),
		DurationMs:    840,
		CreatedAt:     base,
	}
	second := &models.LLMRun{
		DealID:        deal.ID,
		PromptName:    "ic_draft",
		PromptVersion: "v1",
		Model:         "gpt-4o",
		InputHash:     "b3f1c9e2b4d6f8a0c2e4f6a8b0d2f4a6c8e0a2b4d6f8a0c2e4f6a8b0d2f4a6c8",
		Status:        models.LLMRunStatusError,
		ErrorMessage:  "rate limited",
		CreatedAt:     base.Add(time.Second),
	}
	require.NoError(t, runs.Save(ctx, first))
	require.NoError(t, runs.Save(ctx, second))
	assert.NotEqual(t, uuid.Nil, first.ID)

	got, err := runs.ListByDeal(ctx, deal.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ic_draft", got[0].PromptName, "newest first")
	assert.Equal(t, "rate limited", got[0].ErrorMessage)
	assert.Nil(t, got[0].PromptTokens)
	assert.Equal(t, 1200, *got[1].PromptTokens)
	assert.Empty(t, got[1].ErrorMessage)

	limited, err := runs.ListByDeal(ctx, deal.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := runs.ListByDeal(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
