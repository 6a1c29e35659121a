// Package drafting produces investment-committee drafts from confirmed terms
// and their analysis.
package drafting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// Drafter writes an IC draft. Failures match apperrors.ErrDraftingFailed.
type Drafter interface {
	Draft(ctx context.Context, dealID uuid.UUID, terms *models.ExtractedTerms, analysis *models.Analysis) (*models.ICDraft, error)
}

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperrors.ErrDraftingFailed}, args...)...)
}

// checkDraft enforces the shape every stored draft must have.
func checkDraft(d *models.ICDraft) error {
	if d.Banner == "" {
		d.Banner = models.DefaultDraftBanner
	}
	switch {
	case d.ICSummary3Lines == "":
		return failed("draft has no summary")
	case len(d.TopRisksRanked) > models.MaxDraftRisks:
		return failed("draft lists %d risks, at most %d allowed", len(d.TopRisksRanked), models.MaxDraftRisks)
	case len(d.MitigantsOrConditions) > models.MaxDraftMitigants:
		return failed("draft lists %d mitigants, at most %d allowed", len(d.MitigantsOrConditions), models.MaxDraftMitigants)
	}
	return nil
}
