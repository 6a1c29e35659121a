package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestEngine() *Engine {
	return NewEngine(nil, nil, zap.NewNop())
}

// strongTerms fires no HIGH or MED rules under the default policy.
func strongTerms() *models.ExtractedTerms {
	t := models.NewExtractedTerms()
	t.LoanAmount = ptr(600_000.0)
	t.TermMonths = ptr(24)
	t.InterestRatePct = ptr(9.5)
	t.CollateralValueAppraised = ptr(1_200_000.0)
	t.CollateralValueStressed = ptr(1_000_000.0)
	t.LienPosition = models.LienFirst
	t.EnforcementTimelineMonths = ptr(9)
	t.RepaymentSource = ptr("Sale of completed units")
	t.RepaymentTimelineMonths = ptr(18)
	return t
}

func ruleIDs(a *models.Analysis) []string {
	ids := make([]string, 0, len(a.RiskFlags))
	for _, f := range a.RiskFlags {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestEngine_LVRAndEquityBufferPreferStressed(t *testing.T) {
	terms := models.NewExtractedTerms()
	terms.LoanAmount = ptr(700_000.0)
	terms.CollateralValueAppraised = ptr(1_200_000.0)
	terms.CollateralValueStressed = ptr(1_000_000.0)
	terms.LienPosition = models.LienFirst
	terms.RepaymentSource = ptr("sale")

	res, err := newTestEngine().Analyze(terms)
	require.NoError(t, err)

	assert.InDelta(t, 700_000.0/1_200_000.0, *res.Metrics[MetricLVRAppraised], 1e-12)
	assert.InDelta(t, 0.7, *res.Metrics[MetricLVRStressed], 1e-12)
	assert.InDelta(t, 0.7, *res.Metrics[MetricLVREffective], 1e-12)
	assert.InDelta(t, 0.3, *res.Metrics[MetricEquityBuffer], 1e-12)
	assert.InDelta(t, 1_000_000.0/700_000.0, *res.Metrics[MetricCollateralCover], 1e-12)
	assert.NotContains(t, ruleIDs(res), RuleLVRStressedAboveMax)
}

func TestEngine_EquityBufferFallsBackToAppraised(t *testing.T) {
	terms := strongTerms()
	terms.CollateralValueStressed = nil

	res, err := newTestEngine().Analyze(terms)
	require.NoError(t, err)

	assert.Nil(t, res.Metrics[MetricLVRStressed])
	assert.InDelta(t, 0.5, *res.Metrics[MetricLVREffective], 1e-12)
	assert.InDelta(t, 0.5, *res.Metrics[MetricEquityBuffer], 1e-12)
	assert.Contains(t, ruleIDs(res), RuleMissingStressValue)
}

func TestEngine_HardStopForMissingRepaymentSource(t *testing.T) {
	terms := strongTerms()
	terms.RepaymentSource = ptr("   ")

	res, err := newTestEngine().Analyze(terms)
	require.NoError(t, err)

	require.NotEmpty(t, res.RiskFlags)
	assert.Equal(t, RuleRepaymentSourceMissing, res.RiskFlags[0].RuleID)
	assert.Equal(t, models.SeverityHardStop, res.RiskFlags[0].Severity)
	assert.Equal(t, models.VerdictWeak, res.OverallTriage)
}

func TestEngine_AllNullTermsIsTotal(t *testing.T) {
	res, err := newTestEngine().Analyze(models.NewExtractedTerms())
	require.NoError(t, err)

	for _, name := range MetricNames {
		v, ok := res.Metrics[name]
		assert.True(t, ok, "metric %s must be present", name)
		assert.Nil(t, v, "metric %s must be nil", name)
	}
	assert.Contains(t, []models.Verdict{models.VerdictStrong, models.VerdictBorderline, models.VerdictWeak}, res.OverallTriage)
	assert.Equal(t, models.VerdictWeak, res.OverallTriage)
}

func TestEngine_CollateralMetricsNullWithoutValuation(t *testing.T) {
	terms := strongTerms()
	terms.CollateralValueAppraised = nil
	terms.CollateralValueStressed = nil
	terms.CollateralValueAsIs = nil

	res, err := newTestEngine().Analyze(terms)
	require.NoError(t, err)

	for _, name := range []string{MetricLVRAppraised, MetricLVRAsIs, MetricLVRStressed, MetricLVREffective, MetricEquityBuffer, MetricCollateralCover} {
		assert.Nil(t, res.Metrics[name], name)
	}
	assert.NotNil(t, res.Metrics[MetricAnnualInterestCost])
}

func TestEngine_ZeroDivisorIsNull(t *testing.T) {
	terms := strongTerms()
	terms.CollateralValueStressed = ptr(0.0)
	terms.LoanAmount = ptr(0.0)

	res, err := newTestEngine().Analyze(terms)
	require.NoError(t, err)

	assert.Nil(t, res.Metrics[MetricLVRStressed])
	assert.Nil(t, res.Metrics[MetricCollateralCover])
	assert.InDelta(t, 0.0, *res.Metrics[MetricLVRAppraised], 1e-12)
}

func TestEngine_RuleOrderAndQuestionDedup(t *testing.T) {
	terms := models.NewExtractedTerms()
	terms.LoanAmount = ptr(900_000.0)
	terms.CollateralValueStressed = ptr(1_000_000.0)
	terms.LienPosition = models.LienSecond
	terms.TermMonths = ptr(12)
	terms.RepaymentTimelineMonths = ptr(18)
	terms.InterestRatePct = ptr(12.0)

	res, err := newTestEngine().Analyze(terms)
	require.NoError(t, err)

	assert.Equal(t, []string{
		RuleRepaymentSourceMissing,
		RuleLVRStressedAboveMax,
		RuleLienNotFirst,
		RuleEnforcementTimelineMissing,
		RuleRepaymentAfterTerm,
	}, ruleIDs(res))
	assert.Equal(t, "Stressed LVR is 90.00%, above 70%.", res.RiskFlags[1].Message)
	assert.Equal(t, "Lien position is second (not first).", res.RiskFlags[2].Message)
	assert.Len(t, res.DiligenceQuestions, 5)
	assert.Equal(t, models.VerdictWeak, res.OverallTriage)
}

func TestEngine_Verdicts(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *models.ExtractedTerms)
		verdict models.Verdict
	}{
		{"strong", func(t *models.ExtractedTerms) {}, models.VerdictStrong},
		{"one high is borderline", func(t *models.ExtractedTerms) { t.LienPosition = models.LienSecond }, models.VerdictBorderline},
		{"two meds is borderline", func(t *models.ExtractedTerms) {
			t.EnforcementTimelineMonths = nil
			t.CollateralValueStressed = nil
		}, models.VerdictBorderline},
		{"one med is strong", func(t *models.ExtractedTerms) { t.EnforcementTimelineMonths = nil }, models.VerdictStrong},
		{"low never moves verdict", func(t *models.ExtractedTerms) { t.InterestRatePct = nil }, models.VerdictStrong},
		{"two highs is weak", func(t *models.ExtractedTerms) {
			t.LienPosition = models.LienUnsecured
			t.RepaymentTimelineMonths = ptr(36)
		}, models.VerdictWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := strongTerms()
			tt.mutate(terms)

			res, err := newTestEngine().Analyze(terms)
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, res.OverallTriage, "flags: %v", ruleIDs(res))
		})
	}
}

func TestEngine_EnforcementBeyondTerm(t *testing.T) {
	terms := strongTerms()
	terms.EnforcementTimelineMonths = ptr(30)

	res, err := newTestEngine().Analyze(terms)
	require.NoError(t, err)

	assert.Equal(t, []string{RuleEnforcementExceedsTerm}, ruleIDs(res))
	assert.Equal(t, -6.0, *res.Metrics[MetricEnforcementHeadroomMonths])
	assert.Equal(t, "Enforcement could take 6 months longer than the loan term.", res.RiskFlags[0].Message)
}

func TestEngine_InvalidModel(t *testing.T) {
	engine := newTestEngine()

	_, err := engine.Analyze(nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidModel))

	bad := strongTerms()
	bad.LienPosition = "third"
	_, err = engine.Analyze(bad)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidModel))

	nan := strongTerms()
	nan.LoanAmount = ptr(math.NaN())
	_, err = engine.Analyze(nan)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidModel))

	// With several bad numbers the first in field order is always reported.
	multi := strongTerms()
	multi.CollateralValueStressed = ptr(math.Inf(1))
	multi.InterestRatePct = ptr(math.NaN())
	multi.LoanAmount = ptr(math.Inf(-1))
	for i := 0; i < 20; i++ {
		_, err = engine.Analyze(multi)
		var invalid *apperrors.InvalidModelError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "loan_amount is not a finite number", invalid.Reason)
	}
}

func TestEngine_CustomPolicyChangesThresholds(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
thresholds:
  lvr_stressed_max: 0.5
verdict:
  borderline_min_med: 1
`))
	require.NoError(t, err)

	terms := strongTerms()
	engine := NewEngine(nil, policy, zap.NewNop())

	res, err := engine.Analyze(terms)
	require.NoError(t, err)

	assert.Equal(t, []string{RuleLVRStressedAboveMax}, ruleIDs(res))
	assert.Equal(t, "Stressed LVR is 60.00%, above 50%.", res.RiskFlags[0].Message)
	assert.Equal(t, models.VerdictBorderline, res.OverallTriage)
}

func TestEngine_CustomRule(t *testing.T) {
	registry := DefaultRegistry()
	require.NoError(t, registry.Register(NewRule("large_ticket", func(in *Input) *Finding {
		if in.Terms.LoanAmount == nil || *in.Terms.LoanAmount < 500_000 {
			return nil
		}
		return &Finding{Severity: models.SeverityLow, Message: "Large ticket."}
	})))

	err := registry.Register(NewRule(RuleLienNotFirst, func(in *Input) *Finding { return nil }))
	assert.Error(t, err)

	res, err := NewEngine(registry, nil, zap.NewNop()).Analyze(strongTerms())
	require.NoError(t, err)
	assert.Equal(t, []string{"large_ticket"}, ruleIDs(res))
	assert.Equal(t, models.VerdictStrong, res.OverallTriage)
}

func TestEngine_Deterministic(t *testing.T) {
	engine := newTestEngine()
	terms := strongTerms()
	terms.LienPosition = models.LienUnknown
	terms.CollateralValueStressed = nil

	first, err := engine.Analyze(terms)
	require.NoError(t, err)
	second, err := engine.Analyze(terms)
	require.NoError(t, err)

	assert.Equal(t, first.RiskFlags, second.RiskFlags)
	assert.Equal(t, first.DiligenceQuestions, second.DiligenceQuestions)
	assert.Equal(t, first.OverallTriage, second.OverallTriage)
}
