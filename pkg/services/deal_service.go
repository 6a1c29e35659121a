package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/documents"
	"github.com/ekaya-inc/deal-triage/pkg/drafting"
	"github.com/ekaya-inc/deal-triage/pkg/export"
	"github.com/ekaya-inc/deal-triage/pkg/extraction"
	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/repositories"
	"github.com/ekaya-inc/deal-triage/pkg/services/analysis"
)

// MaxDealNameLength bounds a deal's display name, in characters.
const MaxDealNameLength = 255

// GateTerms is reported when an operation needs terms that were never extracted or entered.
const GateTerms = "terms"

// DealService owns a deal's lifecycle and sequences extraction, reconciliation,
// analysis, drafting and export. Mutations are exclusive per deal and commit
// their complete new state in one repository write.
type DealService interface {
	Create(ctx context.Context, name, actor string) (*models.Deal, error)
	List(ctx context.Context) ([]models.Deal, error)
	// Get returns a consistent snapshot including draft readiness.
	Get(ctx context.Context, dealID uuid.UUID) (*models.DealSnapshot, error)

	AttachDocument(ctx context.Context, dealID uuid.UUID, r io.Reader, filename string) (*models.Document, error)
	ListDocuments(ctx context.Context, dealID uuid.UUID) ([]models.Document, error)

	RunExtraction(ctx context.Context, dealID uuid.UUID) (*models.ExtractedTerms, error)
	UpdateTerms(ctx context.Context, dealID uuid.UUID, terms *models.ExtractedTerms, confirmations map[string]bool) (*TermsUpdateResult, error)
	Analyze(ctx context.Context, dealID uuid.UUID) (*models.Analysis, error)
	Draft(ctx context.Context, dealID uuid.UUID) (*models.ICDraft, error)
	Readiness(ctx context.Context, dealID uuid.UUID) (*models.DraftReadiness, error)
	// Export renders the current snapshot. It reads only and takes no lock.
	Export(ctx context.Context, dealID uuid.UUID) ([]byte, error)
}

// TermsUpdateResult is what an analyst edit produces.
type TermsUpdateResult struct {
	Terms         *models.ExtractedTerms    `json:"terms"`
	Confirmations models.ConfirmationLedger `json:"confirmed_fields"`
	Changed       []string                  `json:"changed"`
	Readiness     *models.DraftReadiness    `json:"readiness"`
}

type dealService struct {
	deals     repositories.DealRepository
	documents documents.Service
	locker    DealLocker
	reconcile ReconciliationService
	engine    *analysis.Engine
	extractor extraction.Extractor
	drafter   drafting.Drafter
	renderer  export.Renderer
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// DealServiceDeps groups the collaborators of NewDealService.
type DealServiceDeps struct {
	Deals          repositories.DealRepository
	Documents      documents.Service
	Locker         DealLocker
	Reconciliation ReconciliationService
	Engine         *analysis.Engine
	Extractor      extraction.Extractor
	Drafter        drafting.Drafter
	Renderer       export.Renderer

	// CollaboratorTimeout bounds each extraction or drafting call. Zero means
	// the call is bounded only by the deal lease.
	CollaboratorTimeout time.Duration
}

// NewDealService creates the deal orchestrator.
func NewDealService(deps DealServiceDeps, logger *zap.Logger) DealService {
	return &dealService{
		deals:     deps.Deals,
		documents: deps.Documents,
		locker:    deps.Locker,
		reconcile: deps.Reconciliation,
		engine:    deps.Engine,
		extractor: deps.Extractor,
		drafter:   deps.Drafter,
		renderer:  deps.Renderer,
		timeout:   deps.CollaboratorTimeout,
		now:       time.Now,
		logger:    logger.Named("deal-service"),
	}
}

var _ DealService = (*dealService)(nil)

func (s *dealService) Create(ctx context.Context, name, actor string) (*models.Deal, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, apperrors.NewValidationError("name", "is required")
	case utf8.RuneCountInString(name) > MaxDealNameLength:
		return nil, apperrors.NewValidationError("name", fmt.Sprintf("must be at most %d characters", MaxDealNameLength))
	}

	deal := &models.Deal{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: actor,
		CreatedAt: s.now().UTC(),
	}
	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	s.logger.Info("Deal created",
		zap.String("deal_id", deal.ID.String()),
		zap.String("actor", actor))
	return deal, nil
}

func (s *dealService) List(ctx context.Context) ([]models.Deal, error) {
	deals, err := s.deals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return deals, nil
}

func (s *dealService) Get(ctx context.Context, dealID uuid.UUID) (*models.DealSnapshot, error) {
	snap, err := s.deals.GetSnapshot(ctx, dealID)
	if err != nil {
		return nil, err
	}
	snap.Readiness = CheckDraftReadiness(snap.Confirmations)
	return snap, nil
}

func (s *dealService) AttachDocument(ctx context.Context, dealID uuid.UUID, r io.Reader, filename string) (*models.Document, error) {
	if _, err := s.deals.Get(ctx, dealID); err != nil {
		return nil, err
	}

	doc, err := s.documents.Store(ctx, dealID, r, filename)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document attached",
		zap.String("deal_id", dealID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.Int64("size_bytes", doc.SizeBytes))
	return doc, nil
}

func (s *dealService) ListDocuments(ctx context.Context, dealID uuid.UUID) ([]models.Document, error) {
	if _, err := s.deals.Get(ctx, dealID); err != nil {
		return nil, err
	}
	return s.documents.List(ctx, dealID)
}

// lock acquires the deal's mutation lock after checking the deal exists.
func (s *dealService) lock(ctx context.Context, dealID uuid.UUID) (*DealLease, error) {
	lease, err := s.locker.Acquire(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if _, err := s.deals.Get(lease.Context(), dealID); err != nil {
		lease.Release()
		return nil, err
	}
	return lease, nil
}

// commit writes update only while the lease is still held, so a mutation that
// outlived its lock can never overwrite state written by the next holder.
func (s *dealService) commit(lease *DealLease, dealID uuid.UUID, update *models.StateUpdate, what string) error {
	ctx := lease.Context()
	if err := lease.Confirm(ctx); err != nil {
		s.logger.Warn("Discarding mutation; deal lock lost",
			zap.String("deal_id", dealID.String()),
			zap.String("operation", what),
			zap.Error(err))
		return err
	}
	if err := s.deals.SaveState(ctx, dealID, update); err != nil {
		return fmt.Errorf("failed to save %s: %w", what, err)
	}
	return nil
}

// collaboratorContext bounds a collaborator call by the lease and the configured timeout.
func (s *dealService) collaboratorContext(lease *DealLease) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(lease.Context())
	}
	return context.WithTimeout(lease.Context(), s.timeout)
}

// collaboratorError prefers the lost-lease conflict over the collaborator's own
// failure, since the cancellation is what made the call fail.
func collaboratorError(lease *DealLease, err error) error {
	if lost := lease.Lost(); lost != nil {
		return lost
	}
	return err
}

func (s *dealService) RunExtraction(ctx context.Context, dealID uuid.UUID) (*models.ExtractedTerms, error) {
	lease, err := s.lock(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	state, err := s.deals.GetState(lease.Context(), dealID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.collaboratorContext(lease)
	candidate, err := s.extractor.Extract(callCtx, dealID)
	cancel()
	if err != nil {
		return nil, collaboratorError(lease, err)
	}

	merged, err := s.reconcile.MergeExtraction(state.Terms, state.Confirmations, candidate)
	if err != nil {
		return nil, err
	}

	if err := s.commit(lease, dealID, &models.StateUpdate{
		Terms:         merged.Terms,
		Confirmations: merged.Confirmations,
	}, "extracted terms"); err != nil {
		return nil, err
	}

	s.logger.Info("Extraction merged",
		zap.String("deal_id", dealID.String()),
		zap.Strings("changed", merged.Changed),
		zap.Strings("confirmed", merged.Confirmations.ConfirmedFields()))
	return merged.Terms, nil
}

func (s *dealService) UpdateTerms(ctx context.Context, dealID uuid.UUID, terms *models.ExtractedTerms, confirmations map[string]bool) (*TermsUpdateResult, error) {
	lease, err := s.lock(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	state, err := s.deals.GetState(lease.Context(), dealID)
	if err != nil {
		return nil, err
	}

	applied, err := s.reconcile.ApplyUpdate(state.Terms, terms, confirmations)
	if err != nil {
		return nil, err
	}

	if err := s.commit(lease, dealID, &models.StateUpdate{
		Terms:         applied.Terms,
		Confirmations: applied.Confirmations,
	}, "terms"); err != nil {
		return nil, err
	}

	readiness := CheckDraftReadiness(applied.Confirmations)
	s.logger.Info("Terms updated",
		zap.String("deal_id", dealID.String()),
		zap.Strings("changed", applied.Changed),
		zap.Bool("draft_ready", readiness.Ready))

	return &TermsUpdateResult{
		Terms:         applied.Terms,
		Confirmations: applied.Confirmations,
		Changed:       applied.Changed,
		Readiness:     readiness,
	}, nil
}

func (s *dealService) Analyze(ctx context.Context, dealID uuid.UUID) (*models.Analysis, error) {
	lease, err := s.lock(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	state, err := s.deals.GetState(lease.Context(), dealID)
	if err != nil {
		return nil, err
	}
	if state.Terms == nil {
		return nil, missingTermsError()
	}

	result, err := s.engine.Analyze(state.Terms)
	if err != nil {
		return nil, err
	}

	if err := s.commit(lease, dealID, &models.StateUpdate{Analysis: result}, "analysis"); err != nil {
		return nil, err
	}

	s.logger.Info("Deal analyzed",
		zap.String("deal_id", dealID.String()),
		zap.String("verdict", string(result.OverallTriage)),
		zap.Int("flags", len(result.RiskFlags)))
	return result, nil
}

func (s *dealService) Draft(ctx context.Context, dealID uuid.UUID) (*models.ICDraft, error) {
	lease, err := s.lock(ctx, dealID)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	state, err := s.deals.GetState(lease.Context(), dealID)
	if err != nil {
		return nil, err
	}
	if state.Terms == nil {
		return nil, missingTermsError()
	}
	if err := notReadyError(CheckDraftReadiness(state.Confirmations)); err != nil {
		return nil, err
	}

	update := &models.StateUpdate{}
	current := state.Analysis
	if current == nil {
		current, err = s.engine.Analyze(state.Terms)
		if err != nil {
			return nil, err
		}
		update.Analysis = current
	}

	callCtx, cancel := s.collaboratorContext(lease)
	draft, err := s.drafter.Draft(callCtx, dealID, state.Terms, current)
	cancel()
	if err != nil {
		return nil, collaboratorError(lease, err)
	}
	update.Draft = draft

	if err := s.commit(lease, dealID, update, "draft"); err != nil {
		return nil, err
	}

	s.logger.Info("Draft generated",
		zap.String("deal_id", dealID.String()),
		zap.String("generated_by", draft.GeneratedBy),
		zap.Bool("analysis_computed", update.Analysis != nil))
	return draft, nil
}

func (s *dealService) Readiness(ctx context.Context, dealID uuid.UUID) (*models.DraftReadiness, error) {
	state, err := s.deals.GetState(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return CheckDraftReadiness(state.Confirmations), nil
}

func (s *dealService) Export(ctx context.Context, dealID uuid.UUID) ([]byte, error) {
	snap, err := s.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, snap)
}

func missingTermsError() error {
	return &apperrors.NotReadyError{
		Unmet:    []string{GateTerms},
		Messages: []string{"Run extraction or enter terms first."},
	}
}
