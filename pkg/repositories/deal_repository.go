package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/database"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// DealRepository defines the interface for deal and deal-state data access.
type DealRepository interface {
	Create(ctx context.Context, deal *models.Deal) error
	// List returns every deal, newest first.
	List(ctx context.Context) ([]models.Deal, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	GetState(ctx context.Context, id uuid.UUID) (*models.DealState, error)
	// GetSnapshot reads the deal, its documents and its state from one consistent view.
	GetSnapshot(ctx context.Context, id uuid.UUID) (*models.DealSnapshot, error)
	// SaveState writes every non-nil component of update in a single atomic write.
	SaveState(ctx context.Context, id uuid.UUID, update *models.StateUpdate) error
}

// dealRepository implements DealRepository using PostgreSQL.
type dealRepository struct {
	db *database.DB
}

// NewDealRepository creates a new Postgres-backed deal repository.
func NewDealRepository(db *database.DB) DealRepository {
	return &dealRepository{db: db}
}

var _ DealRepository = (*dealRepository)(nil)

func (r *dealRepository) Create(ctx context.Context, deal *models.Deal) error {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO deals (id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Conn(ctx).Exec(ctx, query, deal.ID, deal.Name, deal.CreatedBy, deal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}
	return nil
}

func (r *dealRepository) List(ctx context.Context) ([]models.Deal, error) {
	query := `
		SELECT id, name, created_by, created_at
		FROM deals
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	deals := make([]models.Deal, 0)
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deals: %w", err)
	}
	return deals, nil
}

func (r *dealRepository) Get(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	return getDeal(ctx, r.db.Conn(ctx), id)
}

func getDeal(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Deal, error) {
	query := `
		SELECT id, name, created_by, created_at
		FROM deals
		WHERE id = $1`

	var d models.Deal
	err := q.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.CreatedBy, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return &d, nil
}

func (r *dealRepository) GetState(ctx context.Context, id uuid.UUID) (*models.DealState, error) {
	var state *models.DealState
	err := r.db.ReadSnapshot(ctx, func(ctx context.Context) error {
		q := r.db.Conn(ctx)
		if _, err := getDeal(ctx, q, id); err != nil {
			return err
		}
		var err error
		state, err = getState(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *dealRepository) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.DealSnapshot, error) {
	snap := &models.DealSnapshot{}
	err := r.db.ReadSnapshot(ctx, func(ctx context.Context) error {
		q := r.db.Conn(ctx)

		deal, err := getDeal(ctx, q, id)
		if err != nil {
			return err
		}
		snap.Deal = *deal

		snap.Documents, err = listDocuments(ctx, q, id)
		if err != nil {
			return err
		}

		state, err := getState(ctx, q, id)
		if err != nil {
			return err
		}
		snap.DealState = *state
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func getState(ctx context.Context, q database.Querier, id uuid.UUID) (*models.DealState, error) {
	state := &models.DealState{}

	var termsJSON, ledgerJSON []byte
	err := q.QueryRow(ctx, `SELECT terms, confirmed_fields FROM deal_terms WHERE deal_id = $1`, id).
		Scan(&termsJSON, &ledgerJSON)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get deal terms: %w", err)
	default:
		var terms models.ExtractedTerms
		if err := json.Unmarshal(termsJSON, &terms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal terms: %w", err)
		}
		terms.Normalize()
		state.Terms = &terms

		var ledger models.ConfirmationLedger
		if err := json.Unmarshal(ledgerJSON, &ledger); err != nil {
			return nil, fmt.Errorf("failed to unmarshal confirmed fields: %w", err)
		}
		state.Confirmations = ledger.Clone()
	}

	var metricsJSON, flagsJSON, questionsJSON []byte
	analysis := &models.Analysis{}
	err = q.QueryRow(ctx, `
		SELECT metrics, overall_triage, risk_flags, diligence_questions, analyzed_at
		FROM deal_analysis
		WHERE deal_id = $1`, id).
		Scan(&metricsJSON, &analysis.OverallTriage, &flagsJSON, &questionsJSON, &analysis.AnalyzedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get deal analysis: %w", err)
	default:
		if err := json.Unmarshal(metricsJSON, &analysis.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
		if err := json.Unmarshal(flagsJSON, &analysis.RiskFlags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal risk flags: %w", err)
		}
		if err := json.Unmarshal(questionsJSON, &analysis.DiligenceQuestions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diligence questions: %w", err)
		}
		state.Analysis = analysis
	}

	var draftJSON []byte
	err = q.QueryRow(ctx, `SELECT draft FROM deal_drafts WHERE deal_id = $1`, id).Scan(&draftJSON)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get deal draft: %w", err)
	default:
		var draft models.ICDraft
		if err := json.Unmarshal(draftJSON, &draft); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
		}
		state.Draft = &draft
	}

	return state, nil
}

func (r *dealRepository) SaveState(ctx context.Context, id uuid.UUID, update *models.StateUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	return r.db.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context) error {
		q := r.db.Conn(ctx)

		var exists int
		err := q.QueryRow(ctx, `SELECT 1 FROM deals WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("failed to lock deal: %w", err)
		}

		now := time.Now().UTC()

		if update.Terms != nil {
			termsJSON, err := json.Marshal(update.Terms)
			if err != nil {
				return fmt.Errorf("failed to marshal terms: %w", err)
			}
			ledger := update.Confirmations
			if ledger == nil {
				ledger = models.NewConfirmationLedger()
			}
			ledgerJSON, err := json.Marshal(ledger)
			if err != nil {
				return fmt.Errorf("failed to marshal confirmed fields: %w", err)
			}
			_, err = q.Exec(ctx, `
				INSERT INTO deal_terms (deal_id, terms, confirmed_fields, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (deal_id) DO UPDATE
				SET terms = EXCLUDED.terms,
				    confirmed_fields = EXCLUDED.confirmed_fields,
				    updated_at = EXCLUDED.updated_at`,
				id, termsJSON, ledgerJSON, now)
			if err != nil {
				return fmt.Errorf("failed to save terms: %w", err)
			}
		}

		if a := update.Analysis; a != nil {
			metricsJSON, err := json.Marshal(a.Metrics)
			if err != nil {
				return fmt.Errorf("failed to marshal metrics: %w", err)
			}
			flagsJSON, err := json.Marshal(a.RiskFlags)
			if err != nil {
				return fmt.Errorf("failed to marshal risk flags: %w", err)
			}
			questionsJSON, err := json.Marshal(a.DiligenceQuestions)
			if err != nil {
				return fmt.Errorf("failed to marshal diligence questions: %w", err)
			}
			_, err = q.Exec(ctx, `
				INSERT INTO deal_analysis (deal_id, metrics, overall_triage, risk_flags, diligence_questions, analyzed_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (deal_id) DO UPDATE
				SET metrics = EXCLUDED.metrics,
				    overall_triage = EXCLUDED.overall_triage,
				    risk_flags = EXCLUDED.risk_flags,
				    diligence_questions = EXCLUDED.diligence_questions,
				    analyzed_at = EXCLUDED.analyzed_at`,
				id, metricsJSON, string(a.OverallTriage), flagsJSON, questionsJSON, a.AnalyzedAt)
			if err != nil {
				return fmt.Errorf("failed to save analysis: %w", err)
			}
		}

		if d := update.Draft; d != nil {
			draftJSON, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("failed to marshal draft: %w", err)
			}
			_, err = q.Exec(ctx, `
				INSERT INTO deal_drafts (deal_id, draft, generated_by, drafted_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (deal_id) DO UPDATE
				SET draft = EXCLUDED.draft,
				    generated_by = EXCLUDED.generated_by,
				    drafted_at = EXCLUDED.drafted_at`,
				id, draftJSON, d.GeneratedBy, d.DraftedAt)
			if err != nil {
				return fmt.Errorf("failed to save draft: %w", err)
			}
		}

		return nil
	})
}
