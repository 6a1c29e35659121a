package services

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// ReconcileResult is the complete replacement state produced by a reconciliation.
type ReconcileResult struct {
	Terms         *models.ExtractedTerms
	Confirmations models.ConfirmationLedger
	// Changed lists the fields whose value differs from the previous terms, in registry order.
	Changed []string
}

// ReconciliationService merges extraction output and analyst edits into a deal's terms.
// Inputs are never mutated; every result is a fresh copy.
type ReconciliationService interface {
	// MergeExtraction folds a fresh extraction candidate into the current terms.
	// Confirmed fields keep their value and citation. Unconfirmed fields take the
	// candidate's value and citation, including nulls.
	MergeExtraction(current *models.ExtractedTerms, ledger models.ConfirmationLedger, candidate *models.ExtractedTerms) (*ReconcileResult, error)

	// ApplyUpdate applies an analyst edit. The submitted confirmations replace the
	// ledger wholesale and every field takes its submitted value. Validation runs
	// before anything is built, so a failure leaves nothing half-applied.
	ApplyUpdate(current *models.ExtractedTerms, submitted *models.ExtractedTerms, confirmations map[string]bool) (*ReconcileResult, error)
}

type reconciliationService struct {
	logger *zap.Logger
}

func NewReconciliationService(logger *zap.Logger) ReconciliationService {
	return &reconciliationService{
		logger: logger.Named("reconciliation"),
	}
}

var _ ReconciliationService = (*reconciliationService)(nil)

func (s *reconciliationService) MergeExtraction(current *models.ExtractedTerms, ledger models.ConfirmationLedger, candidate *models.ExtractedTerms) (*ReconcileResult, error) {
	if candidate == nil {
		return nil, &apperrors.InvalidModelError{Reason: "extraction candidate is nil"}
	}

	incoming := candidate.Clone()
	incoming.Normalize()

	if current == nil {
		return &ReconcileResult{
			Terms:         incoming,
			Confirmations: models.NewConfirmationLedger(),
			Changed:       models.NewExtractedTerms().Diff(incoming),
		}, nil
	}

	merged := current.Clone()
	merged.Normalize()

	var kept []string
	for _, name := range models.TermFieldNames() {
		if ledger.IsConfirmed(name) {
			kept = append(kept, name)
			continue
		}
		if err := merged.CopyField(name, incoming); err != nil {
			return nil, err
		}
	}

	confirmations := ledger.Clone()
	if confirmations == nil {
		confirmations = models.NewConfirmationLedger()
	}

	changed := current.Diff(merged)
	s.logger.Debug("Merged extraction candidate",
		zap.Strings("changed", changed),
		zap.Strings("kept_confirmed", kept))

	return &ReconcileResult{
		Terms:         merged,
		Confirmations: confirmations,
		Changed:       changed,
	}, nil
}

func (s *reconciliationService) ApplyUpdate(current *models.ExtractedTerms, submitted *models.ExtractedTerms, confirmations map[string]bool) (*ReconcileResult, error) {
	if submitted == nil {
		return nil, apperrors.NewValidationError("terms", "is required")
	}

	incoming := submitted.Clone()
	incoming.Normalize()
	if err := incoming.Validate(); err != nil {
		return nil, err
	}

	ledger, err := models.LedgerFromMap(confirmations)
	if err != nil {
		return nil, err
	}

	// Manual entry carries no evidence of its own; a pending submitted citation
	// means "leave the stored citation alone".
	if current != nil {
		for _, name := range models.TermFieldNames() {
			if incoming.Citations.Get(name).Status == models.CitationPending {
				incoming.Citations[name] = current.Citations.Get(name).Clone()
			}
		}
	}

	base := current
	if base == nil {
		base = models.NewExtractedTerms()
	}
	changed := base.Diff(incoming)

	s.logger.Debug("Applied analyst update",
		zap.Strings("changed", changed),
		zap.Strings("confirmed", ledger.ConfirmedFields()))

	return &ReconcileResult{
		Terms:         incoming,
		Confirmations: ledger,
		Changed:       changed,
	}, nil
}
