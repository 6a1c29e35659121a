// Package models contains domain types for deal triage.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal is the unit of triage work. It owns its documents, terms, confirmations,
// analysis and draft; none of these are shared across deals.
type Deal struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is an uploaded deal document. Two uploads with identical bytes share a
// content hash but are distinct records. Documents are immutable once created.
type Document struct {
	ID          uuid.UUID `json:"id"`
	DealID      uuid.UUID `json:"deal_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`

	// StorageKey locates the original bytes in the blob store.
	StorageKey string `json:"-"`
	// ExtractedText is the sanitized, redacted text used for term extraction.
	ExtractedText string `json:"-"`
}

// GateCondition is one drafting precondition the confirmation ledger does not satisfy.
type GateCondition struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// DraftReadiness reports whether drafting is permitted for a deal.
type DraftReadiness struct {
	Ready bool            `json:"ready"`
	Unmet []GateCondition `json:"unmet"`
}

// UnmetNames returns the names of the unmet conditions in evaluation order.
func (r *DraftReadiness) UnmetNames() []string {
	names := make([]string, 0, len(r.Unmet))
	for _, c := range r.Unmet {
		names = append(names, c.Name)
	}
	return names
}

// DealState is the mutable workflow state persisted for a deal.
// Every component is nullable and is replaced as a whole value.
type DealState struct {
	Terms         *ExtractedTerms    `json:"terms"`
	Confirmations ConfirmationLedger `json:"confirmed_fields"`
	Analysis      *Analysis          `json:"analysis"`
	Draft         *ICDraft           `json:"draft"`
}

// DealSnapshot is a consistent, read-only view of a deal and everything it owns.
type DealSnapshot struct {
	Deal      Deal            `json:"deal"`
	Documents []Document      `json:"documents"`
	Readiness *DraftReadiness `json:"readiness,omitempty"`
	DealState
}

// StateUpdate carries the state components a single mutation replaces.
// Nil components are left untouched; terms and confirmations are always written together.
type StateUpdate struct {
	Terms         *ExtractedTerms
	Confirmations ConfirmationLedger
	Analysis      *Analysis
	Draft         *ICDraft
}

// IsEmpty reports whether the update would change nothing.
func (u *StateUpdate) IsEmpty() bool {
	return u.Terms == nil && u.Analysis == nil && u.Draft == nil
}
