package models

import (
	"slices"
	"time"
)

// DefaultDraftBanner is shown on every IC draft.
const DefaultDraftBanner = "Decision support only. Not investment advice."

const (
	MaxDraftRisks     = 5
	MaxDraftMitigants = 8
)

// ICDraft is the investment-committee summary for a deal. It is a snapshot:
// later term edits do not invalidate it.
type ICDraft struct {
	Banner                string    `json:"banner"`
	ICSummary3Lines       string    `json:"ic_summary_3_lines"`
	TopRisksRanked        []string  `json:"top_risks_ranked"`
	MitigantsOrConditions []string  `json:"mitigants_or_conditions"`
	DiligenceQuestions    []string  `json:"diligence_questions"`
	WhatChangesMyMind     string    `json:"what_changes_my_mind"`
	GeneratedBy           string    `json:"generated_by,omitempty"`
	DraftedAt             time.Time `json:"drafted_at"`
}

// Clone returns a deep copy.
func (d *ICDraft) Clone() *ICDraft {
	if d == nil {
		return nil
	}
	c := *d
	c.TopRisksRanked = slices.Clone(d.TopRisksRanked)
	c.MitigantsOrConditions = slices.Clone(d.MitigantsOrConditions)
	c.DiligenceQuestions = slices.Clone(d.DiligenceQuestions)
	return &c
}
