package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/deal-triage/pkg/database"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// LLMRunRepository provides data access for LLM run records.
type LLMRunRepository interface {
	Save(ctx context.Context, run *models.LLMRun) error
	// ListByDeal returns a deal's runs, newest first.
	ListByDeal(ctx context.Context, dealID uuid.UUID, limit int) ([]models.LLMRun, error)
}

type llmRunRepository struct {
	db *database.DB
}

// NewLLMRunRepository creates a new Postgres-backed LLMRunRepository.
func NewLLMRunRepository(db *database.DB) LLMRunRepository {
	return &llmRunRepository{db: db}
}

var _ LLMRunRepository = (*llmRunRepository)(nil)

func (r *llmRunRepository) Save(ctx context.Context, run *models.LLMRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	// Use NULL for empty error_message (success cases)
	var errorMessage *string
	if run.ErrorMessage != "" {
		errorMessage = &run.ErrorMessage
	}

	query := `
		INSERT INTO llm_runs (
			id, deal_id, prompt_name, prompt_version, model, temperature,
			input_hash, status, error_message, prompt_tokens, completion_tokens,
			duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		run.ID,
		run.DealID,
		run.PromptName,
		run.PromptVersion,
		run.Model,
		run.Temperature,
		run.InputHash,
		run.Status,
		errorMessage,
		run.PromptTokens,
		run.CompletionTokens,
		run.DurationMs,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save llm run: %w", err)
	}
	return nil
}

func (r *llmRunRepository) ListByDeal(ctx context.Context, dealID uuid.UUID, limit int) ([]models.LLMRun, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, deal_id, prompt_name, prompt_version, model, temperature,
		       input_hash, status, COALESCE(error_message, ''), prompt_tokens,
		       completion_tokens, duration_ms, created_at
		FROM llm_runs
		WHERE deal_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Conn(ctx).Query(ctx, query, dealID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list llm runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.LLMRun, 0)
	for rows.Next() {
		var run models.LLMRun
		if err := rows.Scan(
			&run.ID,
			&run.DealID,
			&run.PromptName,
			&run.PromptVersion,
			&run.Model,
			&run.Temperature,
			&run.InputHash,
			&run.Status,
			&run.ErrorMessage,
			&run.PromptTokens,
			&run.CompletionTokens,
			&run.DurationMs,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan llm run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate llm runs: %w", err)
	}
	return runs, nil
}
