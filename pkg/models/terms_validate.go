package models

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseTerms decodes a submitted terms payload strictly. Every type violation is
// collected into a single *apperrors.ValidationError; nothing is returned on failure.
// Keys missing from the payload take their defaults.
func ParseTerms(data []byte) (*ExtractedTerms, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, apperrors.NewValidationError("terms", "must be a JSON object")
	}

	verr := &apperrors.ValidationError{}
	terms := &ExtractedTerms{}

	for _, f := range termFields {
		value, ok := raw[f.Name]
		if !ok {
			continue
		}
		if err := f.decode(value, terms); err != nil {
			verr.Add(f.Name, err.Error())
		}
	}

	if value, ok := raw["citations"]; ok && !isJSONNull(value) {
		citations, errs := parseCitations(value)
		for _, fe := range errs {
			verr.Add(fe.Field, fe.Message)
		}
		terms.Citations = citations
	}

	unknown := make([]string, 0)
	for key := range raw {
		if key != "citations" && !IsTermField(key) {
			unknown = append(unknown, key)
		}
	}
	slices.Sort(unknown)
	for _, key := range unknown {
		verr.Add(key, "unknown field")
	}

	if verr.HasErrors() {
		return nil, verr
	}

	terms.Normalize()
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	return terms, nil
}

func parseCitations(data json.RawMessage) (Citations, []apperrors.FieldError) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []apperrors.FieldError{{Field: "citations", Message: "must be an object keyed by field name"}}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var errs []apperrors.FieldError
	citations := make(Citations, len(raw))
	for _, key := range keys {
		if !IsTermField(key) {
			errs = append(errs, apperrors.FieldError{Field: "citations." + key, Message: "unknown field"})
			continue
		}
		fc, err := parseFieldCitations(raw[key])
		if err != nil {
			errs = append(errs, apperrors.FieldError{Field: "citations." + key, Message: err.Error()})
			continue
		}
		citations[key] = fc
	}
	return citations, errs
}

// Validate checks value ranges on normalized terms and reports every violation
// as one *apperrors.ValidationError.
func (t *ExtractedTerms) Validate() error {
	verr := &apperrors.ValidationError{}

	checkAmount := func(field string, v *float64) {
		if v == nil {
			return
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			verr.Add(field, "must be a finite number")
			return
		}
		if *v < 0 {
			verr.Add(field, "must not be negative")
		}
	}
	checkMonths := func(field string, v *int) {
		if v != nil && *v < 0 {
			verr.Add(field, "must not be negative")
		}
	}

	checkAmount(FieldLoanAmount, t.LoanAmount)
	checkAmount(FieldInterestRatePct, t.InterestRatePct)
	checkAmount(FieldCollateralValueAppraised, t.CollateralValueAppraised)
	checkAmount(FieldCollateralValueAsIs, t.CollateralValueAsIs)
	checkAmount(FieldCollateralValueStressed, t.CollateralValueStressed)

	checkMonths(FieldTermMonths, t.TermMonths)
	checkMonths(FieldEnforcementTimelineMonths, t.EnforcementTimelineMonths)
	checkMonths(FieldRepaymentTimelineMonths, t.RepaymentTimelineMonths)

	if !currencyPattern.MatchString(t.Currency) {
		verr.Add(FieldCurrency, "must be a three-letter currency code")
	}
	if !IsValidLienPosition(t.LienPosition) {
		verr.Add(FieldLienPosition, fmt.Sprintf("must be one of %s", joinLienPositions()))
	}
	for i, fee := range t.Fees {
		if strings.TrimSpace(fee.Type) == "" {
			verr.Add(fmt.Sprintf("%s[%d].type", FieldFees, i), "must not be empty")
		}
	}
	citationKeys := make([]string, 0, len(t.Citations))
	for field := range t.Citations {
		citationKeys = append(citationKeys, field)
	}
	slices.Sort(citationKeys)
	for _, field := range citationKeys {
		fc := t.Citations[field]
		if !IsTermField(field) {
			verr.Add("citations."+field, "unknown field")
			continue
		}
		switch fc.Status {
		case CitationPending, CitationNone, CitationFound:
		default:
			verr.Add("citations."+field, fmt.Sprintf("unknown citation status %q", fc.Status))
		}
	}

	return verr.OrNil()
}

func joinLienPositions() string {
	parts := make([]string, len(ValidLienPositions))
	for i, p := range ValidLienPositions {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
