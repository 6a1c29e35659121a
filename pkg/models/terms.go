package models

import (
	"strings"
)

// LienPosition is the security ranking of the lender's claim on collateral.
type LienPosition string

const (
	LienFirst     LienPosition = "first"
	LienSecond    LienPosition = "second"
	LienUnsecured LienPosition = "unsecured"
	LienUnknown   LienPosition = "unknown"
)

// ValidLienPositions contains all valid lien position values.
var ValidLienPositions = []LienPosition{
	LienFirst,
	LienSecond,
	LienUnsecured,
	LienUnknown,
}

// IsValidLienPosition checks if the given lien position is valid.
func IsValidLienPosition(p LienPosition) bool {
	for _, v := range ValidLienPositions {
		if v == p {
			return true
		}
	}
	return false
}

const (
	DefaultCurrency       = "AUD"
	DefaultCollateralType = "unknown"
)

// Fee is one fee line. PctOrAmount is kept as text ("1.5%", "25,000").
type Fee struct {
	Type        string `json:"type"`
	PctOrAmount string `json:"pct_or_amount"`
}

// ExtractedTerms is the single current view of a deal's loan terms.
// Every field is independently nullable except currency, collateral type and
// lien position, which carry defaults. Citations hold one container per field.
type ExtractedTerms struct {
	LoanAmount      *float64 `json:"loan_amount"`
	Currency        string   `json:"currency"`
	TermMonths      *int     `json:"term_months"`
	InterestRatePct *float64 `json:"interest_rate_pct"`

	Fees []Fee `json:"fees"`

	CollateralType           string   `json:"collateral_type"`
	CollateralValueAppraised *float64 `json:"collateral_value_appraised"`
	CollateralValueAsIs      *float64 `json:"collateral_value_as_is"`
	CollateralValueStressed  *float64 `json:"collateral_value_stressed"`

	LienPosition LienPosition `json:"lien_position"`

	Jurisdiction              *string `json:"jurisdiction"`
	EnforcementTimelineMonths *int    `json:"enforcement_timeline_months"`

	RepaymentSource         *string `json:"repayment_source"`
	RepaymentTimelineMonths *int    `json:"repayment_timeline_months"`

	KeyConditions []string `json:"key_conditions"`
	Notes         *string  `json:"notes"`

	Citations Citations `json:"citations"`
}

// NewExtractedTerms returns terms with every field explicitly at its default
// and every citation pending.
func NewExtractedTerms() *ExtractedTerms {
	t := &ExtractedTerms{}
	t.Normalize()
	return t
}

// Normalize applies defaults and gives every field an explicit citation entry,
// so consumers never need existence checks. Citation entries for names outside
// the field registry are dropped.
func (t *ExtractedTerms) Normalize() {
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	if t.Currency == "" {
		t.Currency = DefaultCurrency
	}
	t.CollateralType = strings.TrimSpace(t.CollateralType)
	if t.CollateralType == "" {
		t.CollateralType = DefaultCollateralType
	}
	if t.LienPosition == "" {
		t.LienPosition = LienUnknown
	}
	if t.Fees == nil {
		t.Fees = []Fee{}
	}
	if t.KeyConditions == nil {
		t.KeyConditions = []string{}
	}

	citations := make(Citations, len(termFields))
	for _, f := range termFields {
		citations[f.Name] = t.Citations.Get(f.Name).Clone()
	}
	t.Citations = citations
}

// Clone returns a deep copy.
func (t *ExtractedTerms) Clone() *ExtractedTerms {
	if t == nil {
		return nil
	}
	out := &ExtractedTerms{}
	for _, f := range termFields {
		f.copyValue(out, t)
	}
	out.Citations = t.Citations.Clone()
	return out
}

// Diff returns the names of fields whose values differ, in registry order.
// List fields compare as ordered sequences, so reordering counts as a change.
// Citations are not compared.
func (t *ExtractedTerms) Diff(other *ExtractedTerms) []string {
	var changed []string
	for _, f := range termFields {
		if !f.equal(t, other) {
			changed = append(changed, f.Name)
		}
	}
	return changed
}

// Equal reports whether both values and citations match field by field.
func (t *ExtractedTerms) Equal(other *ExtractedTerms) bool {
	if t == nil || other == nil {
		return t == nil && other == nil
	}
	if len(t.Diff(other)) > 0 {
		return false
	}
	for _, f := range termFields {
		if !t.Citations.Get(f.Name).Equal(other.Citations.Get(f.Name)) {
			return false
		}
	}
	return true
}

// CopyField replaces one field's value and citation with those from src.
// It returns an InvalidFieldError for names outside the registry.
func (t *ExtractedTerms) CopyField(name string, src *ExtractedTerms) error {
	f, ok := LookupTermField(name)
	if !ok {
		return invalidField(name)
	}
	f.copyValue(t, src)
	if t.Citations == nil {
		t.Citations = make(Citations, len(termFields))
	}
	t.Citations[name] = src.Citations.Get(name).Clone()
	return nil
}

// HasRepaymentSource reports whether a non-blank repayment source is present.
func (t *ExtractedTerms) HasRepaymentSource() bool {
	return t.RepaymentSource != nil && strings.TrimSpace(*t.RepaymentSource) != ""
}
