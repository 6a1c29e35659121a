package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/repositories"
)

type captureRecorder struct {
	mu   sync.Mutex
	runs []*models.LLMRun
}

func (r *captureRecorder) Record(run *models.LLMRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func TestRecordingClient_RecordsAttributedCalls(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
		return &GenerateResponseResult{Content: "{}", PromptTokens: 120, CompletionTokens: 30}, nil
	}
	recorder := &captureRecorder{}
	client := NewRecordingClient(mock, recorder)

	dealID := uuid.New()
	ctx := WithRunContext(context.Background(), RunContext{DealID: dealID, PromptName: "extract_terms", PromptVersion: "v1"})

	_, err := client.GenerateResponse(ctx, "prompt", "system", 0.1)
	require.NoError(t, err)
	_, err = client.GenerateResponse(ctx, "prompt", "system", 0.1)
	require.NoError(t, err)

	require.Len(t, recorder.runs, 2)
	run := recorder.runs[0]
	assert.Equal(t, dealID, run.DealID)
	assert.Equal(t, "extract_terms", run.PromptName)
	assert.Equal(t, "v1", run.PromptVersion)
	assert.Equal(t, "mock-model", run.Model)
	assert.Equal(t, models.LLMRunStatusSuccess, run.Status)
	assert.Len(t, run.InputHash, 64)
	assert.Equal(t, run.InputHash, recorder.runs[1].InputHash, "same input, same hash")
	assert.Equal(t, 120, *run.PromptTokens)
}

func TestRecordingClient_RecordsFailuresWithoutSecrets(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
		return nil, errors.New("request failed: api_key=abcdefghijklmnopqrstuvwxyz0123")
	}
	recorder := &captureRecorder{}
	client := NewRecordingClient(mock, recorder)

	ctx := WithRunContext(context.Background(), RunContext{DealID: uuid.New(), PromptName: "ic_draft", PromptVersion: "v1"})
	_, err := client.GenerateResponse(ctx, "p", "s", 0)
	require.Error(t, err)

	require.Len(t, recorder.runs, 1)
	assert.Equal(t, models.LLMRunStatusError, recorder.runs[0].Status)
	assert.NotContains(t, recorder.runs[0].ErrorMessage, "abcdefghijklmnopqrstuvwxyz0123")
	assert.Nil(t, recorder.runs[0].PromptTokens)
}

func TestRecordingClient_UnattributedCallsPassThrough(t *testing.T) {
	recorder := &captureRecorder{}
	client := NewRecordingClient(NewMockLLMClient(), recorder)

	_, err := client.GenerateResponse(context.Background(), "p", "s", 0)
	require.NoError(t, err)
	assert.Empty(t, recorder.runs)
}

func TestAsyncRunRecorder_PersistsOnClose(t *testing.T) {
	store := repositories.NewMemoryStore()
	deal := &models.Deal{Name: "deal"}
	require.NoError(t, store.Deals().Create(context.Background(), deal))

	recorder := NewAsyncRunRecorder(store.LLMRuns(), zap.NewNop(), 10)
	for i := 0; i < 3; i++ {
		recorder.Record(&models.LLMRun{
			DealID:     deal.ID,
			PromptName: "extract_terms",
			Status:     models.LLMRunStatusSuccess,
			CreatedAt:  time.Now().UTC(),
		})
	}
	recorder.Close()

	runs, err := store.LLMRuns().ListByDeal(context.Background(), deal.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
