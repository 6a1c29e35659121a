package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
)

// Term field names.
const (
	FieldLoanAmount                = "loan_amount"
	FieldCurrency                  = "currency"
	FieldTermMonths                = "term_months"
	FieldInterestRatePct           = "interest_rate_pct"
	FieldFees                      = "fees"
	FieldCollateralType            = "collateral_type"
	FieldCollateralValueAppraised  = "collateral_value_appraised"
	FieldCollateralValueAsIs       = "collateral_value_as_is"
	FieldCollateralValueStressed   = "collateral_value_stressed"
	FieldLienPosition              = "lien_position"
	FieldJurisdiction              = "jurisdiction"
	FieldEnforcementTimelineMonths = "enforcement_timeline_months"
	FieldRepaymentSource           = "repayment_source"
	FieldRepaymentTimelineMonths   = "repayment_timeline_months"
	FieldKeyConditions             = "key_conditions"
	FieldNotes                     = "notes"
)

// FieldKind is the declared value type of a term field.
type FieldKind string

const (
	FieldKindNumber   FieldKind = "number"
	FieldKindInteger  FieldKind = "integer"
	FieldKindText     FieldKind = "text"
	FieldKindEnum     FieldKind = "enum"
	FieldKindFeeList  FieldKind = "fee_list"
	FieldKindTextList FieldKind = "text_list"
)

// TermField describes one field of the term model. Merge, diff, ledger checks
// and payload decoding all go through the registry rather than listing fields.
type TermField struct {
	Name string
	Kind FieldKind

	copyValue func(dst, src *ExtractedTerms)
	equal     func(a, b *ExtractedTerms) bool
	decode    func(raw json.RawMessage, dst *ExtractedTerms) error
}

var termFields = []TermField{
	optionalField(FieldLoanAmount, FieldKindNumber, func(t *ExtractedTerms) **float64 { return &t.LoanAmount }),
	valueField(FieldCurrency, FieldKindText, func(t *ExtractedTerms) *string { return &t.Currency }),
	optionalField(FieldTermMonths, FieldKindInteger, func(t *ExtractedTerms) **int { return &t.TermMonths }),
	optionalField(FieldInterestRatePct, FieldKindNumber, func(t *ExtractedTerms) **float64 { return &t.InterestRatePct }),
	listField(FieldFees, FieldKindFeeList, func(t *ExtractedTerms) *[]Fee { return &t.Fees }),
	valueField(FieldCollateralType, FieldKindText, func(t *ExtractedTerms) *string { return &t.CollateralType }),
	optionalField(FieldCollateralValueAppraised, FieldKindNumber, func(t *ExtractedTerms) **float64 { return &t.CollateralValueAppraised }),
	optionalField(FieldCollateralValueAsIs, FieldKindNumber, func(t *ExtractedTerms) **float64 { return &t.CollateralValueAsIs }),
	optionalField(FieldCollateralValueStressed, FieldKindNumber, func(t *ExtractedTerms) **float64 { return &t.CollateralValueStressed }),
	valueField(FieldLienPosition, FieldKindEnum, func(t *ExtractedTerms) *LienPosition { return &t.LienPosition }),
	optionalField(FieldJurisdiction, FieldKindText, func(t *ExtractedTerms) **string { return &t.Jurisdiction }),
	optionalField(FieldEnforcementTimelineMonths, FieldKindInteger, func(t *ExtractedTerms) **int { return &t.EnforcementTimelineMonths }),
	optionalField(FieldRepaymentSource, FieldKindText, func(t *ExtractedTerms) **string { return &t.RepaymentSource }),
	optionalField(FieldRepaymentTimelineMonths, FieldKindInteger, func(t *ExtractedTerms) **int { return &t.RepaymentTimelineMonths }),
	listField(FieldKeyConditions, FieldKindTextList, func(t *ExtractedTerms) *[]string { return &t.KeyConditions }),
	optionalField(FieldNotes, FieldKindText, func(t *ExtractedTerms) **string { return &t.Notes }),
}

var termFieldIndex = func() map[string]int {
	idx := make(map[string]int, len(termFields))
	for i, f := range termFields {
		idx[f.Name] = i
	}
	return idx
}()

// TermFields returns the field registry in declaration order.
func TermFields() []TermField {
	return slices.Clone(termFields)
}

// TermFieldNames returns all field names in declaration order.
func TermFieldNames() []string {
	names := make([]string, len(termFields))
	for i, f := range termFields {
		names[i] = f.Name
	}
	return names
}

// IsTermField reports whether name is a known term field.
func IsTermField(name string) bool {
	_, ok := termFieldIndex[name]
	return ok
}

// LookupTermField returns the registry entry for name.
func LookupTermField(name string) (TermField, bool) {
	i, ok := termFieldIndex[name]
	if !ok {
		return TermField{}, false
	}
	return termFields[i], true
}

func invalidField(name string) error {
	return &apperrors.InvalidFieldError{Field: name}
}

var kindMessages = map[FieldKind]string{
	FieldKindNumber:   "must be a number",
	FieldKindInteger:  "must be a whole number",
	FieldKindText:     "must be a string",
	FieldKindEnum:     "must be a string",
	FieldKindFeeList:  "must be a list of {type, pct_or_amount} objects",
	FieldKindTextList: "must be a list of strings",
}

func kindError(kind FieldKind) error {
	return errors.New(kindMessages[kind])
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// optionalField describes a nullable scalar held behind a pointer.
func optionalField[T comparable](name string, kind FieldKind, ref func(*ExtractedTerms) **T) TermField {
	return TermField{
		Name: name,
		Kind: kind,
		copyValue: func(dst, src *ExtractedTerms) {
			v := *ref(src)
			if v == nil {
				*ref(dst) = nil
				return
			}
			c := *v
			*ref(dst) = &c
		},
		equal: func(a, b *ExtractedTerms) bool {
			x, y := *ref(a), *ref(b)
			if x == nil || y == nil {
				return x == nil && y == nil
			}
			return *x == *y
		},
		decode: func(raw json.RawMessage, dst *ExtractedTerms) error {
			if isJSONNull(raw) {
				*ref(dst) = nil
				return nil
			}
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return kindError(kind)
			}
			*ref(dst) = &v
			return nil
		},
	}
}

// valueField describes a scalar with a default; null decodes to the zero value
// and Normalize restores the default.
func valueField[T comparable](name string, kind FieldKind, ref func(*ExtractedTerms) *T) TermField {
	return TermField{
		Name: name,
		Kind: kind,
		copyValue: func(dst, src *ExtractedTerms) {
			*ref(dst) = *ref(src)
		},
		equal: func(a, b *ExtractedTerms) bool {
			return *ref(a) == *ref(b)
		},
		decode: func(raw json.RawMessage, dst *ExtractedTerms) error {
			var zero T
			if isJSONNull(raw) {
				*ref(dst) = zero
				return nil
			}
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return kindError(kind)
			}
			*ref(dst) = v
			return nil
		},
	}
}

// listField describes an ordered, order-sensitive list.
func listField[T comparable](name string, kind FieldKind, ref func(*ExtractedTerms) *[]T) TermField {
	return TermField{
		Name: name,
		Kind: kind,
		copyValue: func(dst, src *ExtractedTerms) {
			c := slices.Clone(*ref(src))
			if c == nil {
				c = []T{}
			}
			*ref(dst) = c
		},
		equal: func(a, b *ExtractedTerms) bool {
			return slices.Equal(*ref(a), *ref(b))
		},
		decode: func(raw json.RawMessage, dst *ExtractedTerms) error {
			if isJSONNull(raw) {
				*ref(dst) = []T{}
				return nil
			}
			var v []T
			if err := json.Unmarshal(raw, &v); err != nil {
				return kindError(kind)
			}
			if v == nil {
				v = []T{}
			}
			*ref(dst) = v
			return nil
		},
	}
}
