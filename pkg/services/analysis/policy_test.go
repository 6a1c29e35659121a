package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/deal-triage/pkg/models"
)

func flagsOf(severities ...models.Severity) []models.RiskFlag {
	flags := make([]models.RiskFlag, 0, len(severities))
	for i, s := range severities {
		flags = append(flags, models.RiskFlag{RuleID: string(rune('a' + i)), Severity: s})
	}
	return flags
}

func TestPolicy_Reduce(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name  string
		flags []models.RiskFlag
		want  models.Verdict
	}{
		{"no flags", flagsOf(), models.VerdictStrong},
		{"lows only", flagsOf(models.SeverityLow, models.SeverityLow, models.SeverityLow), models.VerdictStrong},
		{"one med", flagsOf(models.SeverityMedium), models.VerdictStrong},
		{"two meds", flagsOf(models.SeverityMedium, models.SeverityMedium), models.VerdictBorderline},
		{"one high", flagsOf(models.SeverityHigh), models.VerdictBorderline},
		{"two highs", flagsOf(models.SeverityHigh, models.SeverityHigh), models.VerdictWeak},
		{"hard stop", flagsOf(models.SeverityLow, models.SeverityHardStop), models.VerdictWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Reduce(tt.flags))
		})
	}
}

func TestPolicy_ReduceIgnoresOrder(t *testing.T) {
	p := DefaultPolicy()
	a := flagsOf(models.SeverityMedium, models.SeverityHigh, models.SeverityLow)
	b := flagsOf(models.SeverityLow, models.SeverityMedium, models.SeverityHigh)
	assert.Equal(t, p.Reduce(a), p.Reduce(b))
}

func TestParsePolicy_OverridesKeepDefaults(t *testing.T) {
	p, err := ParsePolicy([]byte("verdict:\n  weak_min_high: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, p.Verdict.WeakMinHigh)
	assert.Equal(t, 1, p.Verdict.BorderlineMinHigh)
	assert.Equal(t, 2, p.Verdict.BorderlineMinMed)
	assert.Equal(t, 0.70, p.Thresholds.LVRStressedMax)
	assert.Equal(t, models.VerdictBorderline, p.Reduce(flagsOf(models.SeverityHigh, models.SeverityHigh)))
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown severity":  "verdict:\n  weak_on_any: [CRITICAL]\n",
		"zero weak":         "verdict:\n  weak_min_high: 0\n",
		"borderline > weak": "verdict:\n  weak_min_high: 2\n  borderline_min_high: 3\n",
		"negative lvr":      "thresholds:\n  lvr_stressed_max: -1\n",
		"not yaml":          "verdict: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  lvr_stressed_max: 0.65\n"), 0o600))

	p, err = LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 0.65, p.Thresholds.LVRStressedMax)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "70%", formatPct(0.70))
	assert.Equal(t, "100%", formatPct(1))
	assert.Equal(t, "62.5%", formatPct(0.625))
}
