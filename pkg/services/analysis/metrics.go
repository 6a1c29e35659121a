package analysis

import (
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// Metric names.
const (
	MetricLVRAppraised              = "LVR_appraised"
	MetricLVRAsIs                   = "LVR_as_is"
	MetricLVRStressed               = "LVR_stressed"
	MetricLVREffective              = "LVR_effective"
	MetricEquityBuffer              = "equity_buffer"
	MetricCollateralCover           = "collateral_cover"
	MetricRepaymentHeadroomMonths   = "repayment_headroom_months"
	MetricEnforcementHeadroomMonths = "enforcement_headroom_months"
	MetricAnnualInterestCost        = "annual_interest_cost"
)

// MetricNames lists every metric in reporting order.
var MetricNames = []string{
	MetricLVRAppraised,
	MetricLVRAsIs,
	MetricLVRStressed,
	MetricLVREffective,
	MetricEquityBuffer,
	MetricCollateralCover,
	MetricRepaymentHeadroomMonths,
	MetricEnforcementHeadroomMonths,
	MetricAnnualInterestCost,
}

// Metrics maps a metric name to its value; nil means not computable.
type Metrics map[string]*float64

// Get returns the metric value and whether it was computable.
func (m Metrics) Get(name string) (float64, bool) {
	v := m[name]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// ComputeMetrics derives every metric from terms. Missing inputs and zero
// divisors yield nil; computation never fails.
func ComputeMetrics(t *models.ExtractedTerms) Metrics {
	m := make(Metrics, len(MetricNames))
	for _, name := range MetricNames {
		m[name] = nil
	}

	loan := t.LoanAmount
	m[MetricLVRAppraised] = ratio(loan, t.CollateralValueAppraised)
	m[MetricLVRAsIs] = ratio(loan, t.CollateralValueAsIs)
	m[MetricLVRStressed] = ratio(loan, t.CollateralValueStressed)

	// Stressed value is preferred; appraised is the fallback.
	effective := m[MetricLVRStressed]
	if effective == nil {
		effective = m[MetricLVRAppraised]
	}
	if effective != nil {
		m[MetricLVREffective] = value(*effective)
		m[MetricEquityBuffer] = value(1.0 - *effective)
	}

	collateral := t.CollateralValueStressed
	if collateral == nil {
		collateral = t.CollateralValueAppraised
	}
	m[MetricCollateralCover] = ratio(collateral, loan)

	m[MetricRepaymentHeadroomMonths] = monthsBetween(t.TermMonths, t.RepaymentTimelineMonths)
	m[MetricEnforcementHeadroomMonths] = monthsBetween(t.TermMonths, t.EnforcementTimelineMonths)

	if loan != nil && t.InterestRatePct != nil {
		m[MetricAnnualInterestCost] = value(*loan * *t.InterestRatePct / 100.0)
	}

	return m
}

func ratio(numerator, denominator *float64) *float64 {
	if numerator == nil || denominator == nil || *denominator == 0 {
		return nil
	}
	return value(*numerator / *denominator)
}

func monthsBetween(term, timeline *int) *float64 {
	if term == nil || timeline == nil {
		return nil
	}
	return value(float64(*term - *timeline))
}

func value(v float64) *float64 {
	return &v
}
