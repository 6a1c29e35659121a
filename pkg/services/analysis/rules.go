package analysis

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// Input is what every rule sees: the terms, the computed metrics and the policy.
type Input struct {
	Terms   *models.ExtractedTerms
	Metrics Metrics
	Policy  *Policy
}

// Finding is a rule's output. A nil Finding means the rule did not fire.
type Finding struct {
	Severity  models.Severity
	Message   string
	Questions []string
}

// Rule is an independent predicate over terms and metrics.
// Rules must not depend on each other's results.
type Rule interface {
	ID() string
	Evaluate(in *Input) *Finding
}

type ruleFunc struct {
	id   string
	eval func(in *Input) *Finding
}

func (r *ruleFunc) ID() string                  { return r.id }
func (r *ruleFunc) Evaluate(in *Input) *Finding { return r.eval(in) }

// NewRule adapts a function into a Rule.
func NewRule(id string, eval func(in *Input) *Finding) Rule {
	return &ruleFunc{id: id, eval: eval}
}

// Registry holds rules in declaration order. Evaluation order is registration order.
type Registry struct {
	rules []Rule
	ids   map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Register appends a rule. Rule ids must be unique and non-empty.
func (r *Registry) Register(rule Rule) error {
	id := rule.ID()
	if id == "" {
		return fmt.Errorf("rule id must not be empty")
	}
	if _, exists := r.ids[id]; exists {
		return fmt.Errorf("rule %q already registered", id)
	}
	r.ids[id] = struct{}{}
	r.rules = append(r.rules, rule)
	return nil
}

// Rules returns the registered rules in evaluation order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Rule ids of the built-in rule set.
const (
	RuleRepaymentSourceMissing     = "repayment_source_missing"
	RuleLVRStressedAboveMax        = "lvr_stressed_gt_70"
	RuleLienNotFirst               = "lien_not_first"
	RuleEnforcementTimelineMissing = "enforcement_timeline_missing"
	RuleRepaymentAfterTerm         = "repayment_after_term"
	RuleMissingStressValue         = "missing_stress_value"
	RuleEnforcementExceedsTerm     = "enforcement_exceeds_term"
	RuleInterestRateMissing        = "interest_rate_missing"
)

// BuiltinRules returns the standard rule set in evaluation order.
func BuiltinRules() []Rule {
	return []Rule{
		NewRule(RuleRepaymentSourceMissing, func(in *Input) *Finding {
			if in.Terms.HasRepaymentSource() {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityHardStop,
				Message:   "Repayment source is missing.",
				Questions: []string{"What is the verified repayment source and supporting evidence (contracts, refinance take-out, sale plan)?"},
			}
		}),
		NewRule(RuleLVRStressedAboveMax, func(in *Input) *Finding {
			lvr, ok := in.Metrics.Get(MetricLVRStressed)
			if !ok || lvr <= in.Policy.Thresholds.LVRStressedMax {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityHigh,
				Message:   fmt.Sprintf("Stressed LVR is %.2f%%, above %s.", lvr*100, formatPct(in.Policy.Thresholds.LVRStressedMax)),
				Questions: []string{"Provide independent valuation and sensitivity showing stressed value support for requested leverage."},
			}
		}),
		NewRule(RuleLienNotFirst, func(in *Input) *Finding {
			if in.Terms.LienPosition == models.LienFirst {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityHigh,
				Message:   fmt.Sprintf("Lien position is %s (not first).", in.Terms.LienPosition),
				Questions: []string{"Confirm intercreditor/subordination terms and assess enforcement control given non-first position."},
			}
		}),
		NewRule(RuleEnforcementTimelineMissing, func(in *Input) *Finding {
			if in.Terms.EnforcementTimelineMonths != nil {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityMedium,
				Message:   "Enforcement timeline is not provided.",
				Questions: []string{"What is the expected enforcement timeline and key legal steps in the stated jurisdiction?"},
			}
		}),
		NewRule(RuleRepaymentAfterTerm, func(in *Input) *Finding {
			t := in.Terms
			if t.RepaymentTimelineMonths == nil || t.TermMonths == nil || *t.RepaymentTimelineMonths <= *t.TermMonths {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityHigh,
				Message:   "Repayment timeline exceeds stated loan term.",
				Questions: []string{"Align repayment timeline with term (or structure extension options/conditions)."},
			}
		}),
		NewRule(RuleMissingStressValue, func(in *Input) *Finding {
			if in.Terms.CollateralValueStressed != nil {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityMedium,
				Message:   "No stressed collateral value provided (stress missing).",
				Questions: []string{"Provide a stressed collateral value or defined stress methodology for downside case."},
			}
		}),
		NewRule(RuleEnforcementExceedsTerm, func(in *Input) *Finding {
			headroom, ok := in.Metrics.Get(MetricEnforcementHeadroomMonths)
			if !ok || headroom >= 0 {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityMedium,
				Message:   fmt.Sprintf("Enforcement could take %.0f months longer than the loan term.", -headroom),
				Questions: []string{"What is the recovery plan if enforcement runs beyond the loan term (default interest, extension, hold costs)?"},
			}
		}),
		NewRule(RuleInterestRateMissing, func(in *Input) *Finding {
			if in.Terms.InterestRatePct != nil {
				return nil
			}
			return &Finding{
				Severity:  models.SeverityLow,
				Message:   "Interest rate is not stated.",
				Questions: []string{"Confirm pricing: interest rate, margin basis and default rate."},
			}
		}),
	}
}

// DefaultRegistry returns a registry holding the built-in rules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range BuiltinRules() {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}
	return r
}

// formatPct renders a ratio as a percentage with up to two decimals.
func formatPct(ratio float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.2f", ratio*100), "0")
	return strings.TrimSuffix(s, ".") + "%"
}
