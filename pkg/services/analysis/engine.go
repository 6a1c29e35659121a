// Package analysis turns a deal's terms into metrics, risk flags, diligence
// questions and a triage verdict.
package analysis

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// Engine evaluates terms against a rule registry and a verdict policy.
// It is safe for concurrent use.
type Engine struct {
	registry *Registry
	policy   *Policy
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an engine. Nil registry or policy fall back to the defaults.
func NewEngine(registry *Registry, policy *Policy, logger *zap.Logger) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{
		registry: registry,
		policy:   policy,
		logger:   logger.Named("analysis"),
		now:      time.Now,
	}
}

// Analyze computes a complete analysis. Missing data never fails: metrics
// become nil and rules simply fire or not. Only a structurally malformed
// model returns an *apperrors.InvalidModelError.
func (e *Engine) Analyze(terms *models.ExtractedTerms) (*models.Analysis, error) {
	if err := checkWellFormed(terms); err != nil {
		return nil, err
	}

	metrics := ComputeMetrics(terms)
	in := &Input{Terms: terms, Metrics: metrics, Policy: e.policy}

	flags := make([]models.RiskFlag, 0)
	questions := make([]string, 0)
	seen := make(map[string]struct{})

	for _, rule := range e.registry.Rules() {
		finding := rule.Evaluate(in)
		if finding == nil {
			continue
		}
		flags = append(flags, models.RiskFlag{
			RuleID:   rule.ID(),
			Severity: finding.Severity,
			Message:  finding.Message,
		})
		for _, q := range finding.Questions {
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			questions = append(questions, q)
		}
	}

	verdict := e.policy.Reduce(flags)

	e.logger.Debug("Analysis completed",
		zap.String("verdict", string(verdict)),
		zap.Int("flags", len(flags)),
		zap.Int("questions", len(questions)))

	return &models.Analysis{
		Metrics:            metrics,
		OverallTriage:      verdict,
		RiskFlags:          flags,
		DiligenceQuestions: questions,
		AnalyzedAt:         e.now().UTC(),
	}, nil
}

// checkWellFormed guards against caller bugs, not user data gaps.
func checkWellFormed(t *models.ExtractedTerms) error {
	if t == nil {
		return &apperrors.InvalidModelError{Reason: "terms are nil"}
	}
	if !models.IsValidLienPosition(t.LienPosition) {
		return &apperrors.InvalidModelError{Reason: fmt.Sprintf("unknown lien position %q", t.LienPosition)}
	}

	numbers := []struct {
		name  string
		value *float64
	}{
		{models.FieldLoanAmount, t.LoanAmount},
		{models.FieldInterestRatePct, t.InterestRatePct},
		{models.FieldCollateralValueAppraised, t.CollateralValueAppraised},
		{models.FieldCollateralValueAsIs, t.CollateralValueAsIs},
		{models.FieldCollateralValueStressed, t.CollateralValueStressed},
	}
	for _, n := range numbers {
		if v := n.value; v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return &apperrors.InvalidModelError{Reason: fmt.Sprintf("%s is not a finite number", n.name)}
		}
	}
	return nil
}
