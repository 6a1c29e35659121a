package drafting

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/services/analysis"
)

// StubGeneratedBy marks drafts written without a model.
const StubGeneratedBy = "stub_draft@v1"

type stubDrafter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewStubDrafter creates a drafter that assembles the draft directly from the
// analysis. Output depends only on its inputs and the clock.
func NewStubDrafter(logger *zap.Logger) Drafter {
	return &stubDrafter{
		logger: logger.Named("drafting-stub"),
		now:    time.Now,
	}
}

var _ Drafter = (*stubDrafter)(nil)

func (d *stubDrafter) Draft(ctx context.Context, dealID uuid.UUID, terms *models.ExtractedTerms, result *models.Analysis) (*models.ICDraft, error) {
	if terms == nil || result == nil {
		return nil, failed("terms and analysis are required")
	}

	draft := &models.ICDraft{
		Banner:                models.DefaultDraftBanner,
		ICSummary3Lines:       stubSummary(terms, result),
		TopRisksRanked:        rankedRisks(result.RiskFlags),
		MitigantsOrConditions: mitigants(terms, result),
		DiligenceQuestions:    slices.Clone(result.DiligenceQuestions),
		WhatChangesMyMind:     whatChangesMyMind(result.OverallTriage),
		GeneratedBy:           StubGeneratedBy,
		DraftedAt:             d.now().UTC(),
	}
	if draft.DiligenceQuestions == nil {
		draft.DiligenceQuestions = []string{}
	}
	if err := checkDraft(draft); err != nil {
		return nil, err
	}

	d.logger.Debug("Assembled stub draft", zap.String("deal_id", dealID.String()))
	return draft, nil
}

func stubSummary(t *models.ExtractedTerms, a *models.Analysis) string {
	ask := "Loan amount not stated"
	if t.LoanAmount != nil {
		ask = fmt.Sprintf("%s %s loan", t.Currency, formatAmount(*t.LoanAmount))
	}
	if t.TermMonths != nil {
		ask += fmt.Sprintf(" over %d months", *t.TermMonths)
	}

	security := fmt.Sprintf("%s lien over %s", capitalize(string(t.LienPosition)), t.CollateralType)
	if lvr := a.Metrics[analysis.MetricLVREffective]; lvr != nil {
		security += fmt.Sprintf(", effective LVR %.1f%%", *lvr*100)
	}

	verdict := fmt.Sprintf("Triage verdict %s with %d risk %s", a.OverallTriage, len(a.RiskFlags), plural(len(a.RiskFlags), "flag"))

	return ask + ".\n" + security + ".\n" + verdict + "."
}

// rankedRisks orders flag messages by severity, worst first, keeping rule
// order within a severity.
func rankedRisks(flags []models.RiskFlag) []string {
	sorted := slices.Clone(flags)
	slices.SortStableFunc(sorted, func(a, b models.RiskFlag) int {
		return cmp.Compare(b.Severity.Rank(), a.Severity.Rank())
	})

	risks := make([]string, 0, models.MaxDraftRisks)
	for _, f := range sorted {
		if len(risks) == models.MaxDraftRisks {
			break
		}
		risks = append(risks, f.Message)
	}
	return risks
}

func mitigants(t *models.ExtractedTerms, a *models.Analysis) []string {
	out := make([]string, 0, models.MaxDraftMitigants)
	add := func(s string) {
		if len(out) < models.MaxDraftMitigants && s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	for _, c := range t.KeyConditions {
		add(c)
	}
	for _, q := range a.DiligenceQuestions {
		add("Condition: " + q)
	}
	return out
}

func whatChangesMyMind(v models.Verdict) string {
	switch v {
	case models.VerdictWeak:
		return "A verified repayment source and an independent stressed valuation within policy would move this toward Borderline."
	case models.VerdictBorderline:
		return "Resolving the high-severity flags with documentary evidence would move this toward Strong."
	default:
		return "Evidence that the repayment source or collateral value is weaker than stated would move this toward Borderline."
	}
}

func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return inflection.Plural(noun)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
