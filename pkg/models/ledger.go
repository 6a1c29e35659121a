package models

import (
	"slices"
)

// ConfirmationLedger records, per term field, whether an analyst has confirmed
// the current value. It is owned by analyst actions and never derived from
// extraction output.
type ConfirmationLedger map[string]bool

// NewConfirmationLedger returns a ledger with every field explicitly unconfirmed.
func NewConfirmationLedger() ConfirmationLedger {
	l := make(ConfirmationLedger, len(termFields))
	for _, f := range termFields {
		l[f.Name] = false
	}
	return l
}

// LedgerFromMap builds a ledger from submitted confirmations. Unspecified fields
// are unconfirmed. An unknown field name fails before anything is built.
func LedgerFromMap(confirmations map[string]bool) (ConfirmationLedger, error) {
	names := make([]string, 0, len(confirmations))
	for name := range confirmations {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if !IsTermField(name) {
			return nil, invalidField(name)
		}
	}

	l := NewConfirmationLedger()
	for name, confirmed := range confirmations {
		l[name] = confirmed
	}
	return l, nil
}

// Set records analyst intent for exactly one field.
func (l ConfirmationLedger) Set(field string, confirmed bool) error {
	if !IsTermField(field) {
		return invalidField(field)
	}
	l[field] = confirmed
	return nil
}

// IsConfirmed reports whether field is confirmed. A nil ledger confirms nothing.
func (l ConfirmationLedger) IsConfirmed(field string) bool {
	return l[field]
}

// ConfirmedFields returns the confirmed field names in registry order.
func (l ConfirmationLedger) ConfirmedFields() []string {
	var out []string
	for _, f := range termFields {
		if l[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// Clone returns a copy with an explicit entry for every field.
func (l ConfirmationLedger) Clone() ConfirmationLedger {
	if l == nil {
		return nil
	}
	out := NewConfirmationLedger()
	for _, f := range termFields {
		out[f.Name] = l[f.Name]
	}
	return out
}
