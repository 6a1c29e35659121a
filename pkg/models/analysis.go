package models

import (
	"slices"
	"time"
)

// Severity ranks a risk flag.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MED"
	SeverityHigh     Severity = "HIGH"
	SeverityHardStop Severity = "HARD_STOP"
)

// ValidSeverities contains all severities, lowest first.
var ValidSeverities = []Severity{
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityHardStop,
}

// IsValidSeverity checks if the given severity is valid.
func IsValidSeverity(s Severity) bool {
	return slices.Contains(ValidSeverities, s)
}

// Rank orders severities; higher is worse. Unknown severities rank below LOW.
func (s Severity) Rank() int {
	return slices.Index(ValidSeverities, s)
}

// Verdict is the overall triage classification of a deal.
type Verdict string

const (
	VerdictStrong     Verdict = "Strong"
	VerdictBorderline Verdict = "Borderline"
	VerdictWeak       Verdict = "Weak"
)

// RiskFlag is a finding emitted by one analysis rule.
type RiskFlag struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Analysis is the fully recomputed result of one analysis run.
// A nil metric value means the metric could not be computed.
type Analysis struct {
	Metrics            map[string]*float64 `json:"metrics"`
	OverallTriage      Verdict              `json:"overall_triage"`
	RiskFlags          []RiskFlag           `json:"risk_flags"`
	DiligenceQuestions []string             `json:"diligence_questions"`
	AnalyzedAt         time.Time            `json:"analyzed_at"`
}

// Clone returns a deep copy.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	metrics := make(map[string]*float64, len(a.Metrics))
	for k, v := range a.Metrics {
		if v == nil {
			metrics[k] = nil
			continue
		}
		c := *v
		metrics[k] = &c
	}
	return &Analysis{
		Metrics:            metrics,
		OverallTriage:      a.OverallTriage,
		RiskFlags:          slices.Clone(a.RiskFlags),
		DiligenceQuestions: slices.Clone(a.DiligenceQuestions),
		AnalyzedAt:         a.AnalyzedAt,
	}
}
