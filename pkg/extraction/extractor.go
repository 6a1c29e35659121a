// Package extraction turns a deal's documents into an ExtractedTerms candidate
// with per-field citations.
package extraction

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/redact"
)

// Extractor produces a term candidate for a deal. Failures match
// apperrors.ErrExtractionFailed.
type Extractor interface {
	Extract(ctx context.Context, dealID uuid.UUID) (*models.ExtractedTerms, error)
}

// DocumentSource lists a deal's stored documents with their extracted text.
type DocumentSource interface {
	List(ctx context.Context, dealID uuid.UUID) ([]models.Document, error)
}

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperrors.ErrExtractionFailed}, args...)...)
}

// loadDealText joins every document of the deal in upload order as
// "--- filename ---" blocks.
func loadDealText(ctx context.Context, docs DocumentSource, dealID uuid.UUID) (string, error) {
	list, err := docs.List(ctx, dealID)
	if err != nil {
		return "", failed("failed to load documents: %w", err)
	}
	if len(list) == 0 {
		return "", failed("deal has no documents")
	}

	ordered := slices.Clone(list)
	slices.SortStableFunc(ordered, func(a, b models.Document) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	blocks := make([]string, 0, len(ordered))
	for _, d := range ordered {
		blocks = append(blocks, fmt.Sprintf("--- %s ---\n%s", d.Filename, d.ExtractedText))
	}
	return redact.Sanitize(strings.Join(blocks, "\n\n")), nil
}
