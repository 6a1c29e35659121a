package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

func ptr[T any](v T) *T {
	return &v
}

// runRepositoryContract exercises behavior every DealRepository and
// DocumentRepository pair must share, whatever the backend.
func runRepositoryContract(t *testing.T, deals DealRepository, docs DocumentRepository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("create and get", func(t *testing.T) {
		deal := &models.Deal{Name: "Harbour St", CreatedBy: "alice", CreatedAt: base}
		require.NoError(t, deals.Create(ctx, deal))
		require.NotEqual(t, uuid.Nil, deal.ID)

		got, err := deals.Get(ctx, deal.ID)
		require.NoError(t, err)
		assert.Equal(t, "Harbour St", got.Name)
		assert.Equal(t, "alice", got.CreatedBy)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := deals.Get(ctx, uuid.New())
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))

		_, err = deals.GetSnapshot(ctx, uuid.New())
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))

		err = deals.SaveState(ctx, uuid.New(), &models.StateUpdate{Terms: models.NewExtractedTerms()})
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("list newest first", func(t *testing.T) {
		older := &models.Deal{Name: "older", CreatedAt: base.Add(time.Hour)}
		newer := &models.Deal{Name: "newer", CreatedAt: base.Add(2 * time.Hour)}
		require.NoError(t, deals.Create(ctx, older))
		require.NoError(t, deals.Create(ctx, newer))

		list, err := deals.List(ctx)
		require.NoError(t, err)
		idx := func(id uuid.UUID) int {
			for i, d := range list {
				if d.ID == id {
					return i
				}
			}
			return -1
		}
		require.NotEqual(t, -1, idx(older.ID))
		assert.Less(t, idx(newer.ID), idx(older.ID))
	})

	t.Run("fresh deal has empty state", func(t *testing.T) {
		deal := &models.Deal{Name: "empty"}
		require.NoError(t, deals.Create(ctx, deal))

		snap, err := deals.GetSnapshot(ctx, deal.ID)
		require.NoError(t, err)
		assert.Nil(t, snap.Terms)
		assert.Nil(t, snap.Confirmations)
		assert.Nil(t, snap.Analysis)
		assert.Nil(t, snap.Draft)
		assert.Empty(t, snap.Documents)
	})

	t.Run("save state round trip", func(t *testing.T) {
		deal := &models.Deal{Name: "stateful"}
		require.NoError(t, deals.Create(ctx, deal))

		terms := models.NewExtractedTerms()
		terms.LoanAmount = ptr(1_000_000.0)
		terms.Fees = []models.Fee{{Type: "establishment", PctOrAmount: "1.5%"}}
		terms.KeyConditions = []string{"Valuation", "Insurance"}
		terms.Citations[models.FieldLoanAmount] = models.NewFoundCitations("Loan amount $1,000,000")
		terms.Citations[models.FieldCurrency] = models.NoCitations()

		ledger := models.NewConfirmationLedger()
		require.NoError(t, ledger.Set(models.FieldLoanAmount, true))

		require.NoError(t, deals.SaveState(ctx, deal.ID, &models.StateUpdate{Terms: terms, Confirmations: ledger}))

		state, err := deals.GetState(ctx, deal.ID)
		require.NoError(t, err)
		require.NotNil(t, state.Terms)
		assert.True(t, terms.Equal(state.Terms))
		assert.Equal(t, []string{models.FieldLoanAmount}, state.Confirmations.ConfirmedFields())
		assert.Nil(t, state.Analysis)

		analysis := &models.Analysis{
			Metrics:            map[string]*float64{"LVR_stressed": ptr(0.7), "equity_buffer": nil},
			OverallTriage:      models.VerdictBorderline,
			RiskFlags:          []models.RiskFlag{{RuleID: "lien_not_first", Severity: models.SeverityHigh, Message: "m"}},
			DiligenceQuestions: []string{"q1"},
			AnalyzedAt:         base,
		}
		draft := &models.ICDraft{
			Banner:          models.DefaultDraftBanner,
			ICSummary3Lines: "a\nb\nc",
			TopRisksRanked:  []string{"r"},
			GeneratedBy:     "stub",
			DraftedAt:       base,
		}
		require.NoError(t, deals.SaveState(ctx, deal.ID, &models.StateUpdate{Analysis: analysis, Draft: draft}))

		state, err = deals.GetState(ctx, deal.ID)
		require.NoError(t, err)
		assert.True(t, terms.Equal(state.Terms), "terms untouched by analysis-only update")
		require.NotNil(t, state.Analysis)
		assert.Equal(t, models.VerdictBorderline, state.Analysis.OverallTriage)
		assert.InDelta(t, 0.7, *state.Analysis.Metrics["LVR_stressed"], 1e-12)
		v, ok := state.Analysis.Metrics["equity_buffer"]
		assert.True(t, ok)
		assert.Nil(t, v)
		assert.Equal(t, analysis.RiskFlags, state.Analysis.RiskFlags)
		require.NotNil(t, state.Draft)
		assert.Equal(t, "stub", state.Draft.GeneratedBy)
		assert.Equal(t, "a\nb\nc", state.Draft.ICSummary3Lines)
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		deal := &models.Deal{Name: "copy"}
		require.NoError(t, deals.Create(ctx, deal))
		terms := models.NewExtractedTerms()
		terms.LoanAmount = ptr(10.0)
		require.NoError(t, deals.SaveState(ctx, deal.ID, &models.StateUpdate{Terms: terms}))

		*terms.LoanAmount = 99
		state, err := deals.GetState(ctx, deal.ID)
		require.NoError(t, err)
		assert.Equal(t, 10.0, *state.Terms.LoanAmount)
		assert.Len(t, state.Confirmations, len(models.TermFieldNames()))

		*state.Terms.LoanAmount = 42
		again, err := deals.GetState(ctx, deal.ID)
		require.NoError(t, err)
		assert.Equal(t, 10.0, *again.Terms.LoanAmount)
	})

	t.Run("documents newest first in snapshot", func(t *testing.T) {
		deal := &models.Deal{Name: "docs"}
		require.NoError(t, deals.Create(ctx, deal))

		first := &models.Document{
			DealID: deal.ID, Filename: "a.pdf", ContentType: "application/pdf", SizeBytes: 3,
			ContentHash: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			StorageKey:  "deals/x/a.pdf", ExtractedText: "alpha", CreatedAt: base,
		}
		second := &models.Document{
			DealID: deal.ID, Filename: "b.txt", ContentType: "text/plain", SizeBytes: 5,
			ContentHash: first.ContentHash,
			StorageKey:  "deals/x/b.txt", ExtractedText: "beta", CreatedAt: base.Add(time.Minute),
		}
		require.NoError(t, docs.Create(ctx, first))
		require.NoError(t, docs.Create(ctx, second))
		assert.NotEqual(t, first.ID, second.ID)

		list, err := docs.ListByDeal(ctx, deal.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b.txt", list[0].Filename)
		assert.Equal(t, "alpha", list[1].ExtractedText)

		snap, err := deals.GetSnapshot(ctx, deal.ID)
		require.NoError(t, err)
		require.Len(t, snap.Documents, 2)
		assert.Equal(t, second.ID, snap.Documents[0].ID)

		keys, err := docs.ListStorageKeys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, "deals/x/a.pdf")
		assert.Contains(t, keys, "deals/x/b.txt")
	})
}
