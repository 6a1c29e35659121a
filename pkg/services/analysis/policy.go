package analysis

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// Policy is the tunable configuration surface of the engine: verdict
// thresholds and rule thresholds. It is loaded from YAML; absent keys keep
// their defaults.
type Policy struct {
	Verdict    VerdictPolicy `yaml:"verdict"`
	Thresholds Thresholds    `yaml:"thresholds"`
}

// VerdictPolicy reduces flag severities to a verdict:
// any severity in WeakOnAny, or at least WeakMinHigh HIGH flags, is Weak;
// at least BorderlineMinHigh HIGH flags or BorderlineMinMed MED flags is Borderline;
// anything else is Strong.
type VerdictPolicy struct {
	WeakOnAny         []models.Severity `yaml:"weak_on_any"`
	WeakMinHigh       int               `yaml:"weak_min_high"`
	BorderlineMinHigh int               `yaml:"borderline_min_high"`
	BorderlineMinMed  int               `yaml:"borderline_min_med"`
}

// Thresholds parameterize individual rules.
type Thresholds struct {
	LVRStressedMax float64 `yaml:"lvr_stressed_max"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() *Policy {
	return &Policy{
		Verdict: VerdictPolicy{
			WeakOnAny:         []models.Severity{models.SeverityHardStop},
			WeakMinHigh:       2,
			BorderlineMinHigh: 1,
			BorderlineMinMed:  2,
		},
		Thresholds: Thresholds{
			LVRStressedMax: 0.70,
		},
	}
}

// LoadPolicy reads a policy file. An empty path returns the defaults.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes policy YAML over the defaults and validates it.
func ParsePolicy(data []byte) (*Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse analysis policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects thresholds that would make the reduction meaningless.
func (p *Policy) Validate() error {
	for _, s := range p.Verdict.WeakOnAny {
		if !models.IsValidSeverity(s) {
			return fmt.Errorf("invalid analysis policy: unknown severity %q in weak_on_any", s)
		}
	}
	if p.Verdict.WeakMinHigh < 1 {
		return fmt.Errorf("invalid analysis policy: weak_min_high must be at least 1")
	}
	if p.Verdict.BorderlineMinHigh < 1 || p.Verdict.BorderlineMinHigh > p.Verdict.WeakMinHigh {
		return fmt.Errorf("invalid analysis policy: borderline_min_high must be between 1 and weak_min_high")
	}
	if p.Verdict.BorderlineMinMed < 1 {
		return fmt.Errorf("invalid analysis policy: borderline_min_med must be at least 1")
	}
	if p.Thresholds.LVRStressedMax <= 0 {
		return fmt.Errorf("invalid analysis policy: lvr_stressed_max must be positive")
	}
	return nil
}

// Reduce derives the verdict from flag severities. It depends only on the
// multiset of severities, never on flag order or messages.
func (p *Policy) Reduce(flags []models.RiskFlag) models.Verdict {
	high, med := 0, 0
	for _, f := range flags {
		if slices.Contains(p.Verdict.WeakOnAny, f.Severity) {
			return models.VerdictWeak
		}
		switch f.Severity {
		case models.SeverityHigh:
			high++
		case models.SeverityMedium:
			med++
		}
	}

	switch {
	case high >= p.Verdict.WeakMinHigh:
		return models.VerdictWeak
	case high >= p.Verdict.BorderlineMinHigh || med >= p.Verdict.BorderlineMinMed:
		return models.VerdictBorderline
	default:
		return models.VerdictStrong
	}
}
