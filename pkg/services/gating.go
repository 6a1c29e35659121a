package services

import (
	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// Drafting precondition names, in evaluation order.
const (
	GateLoanAmount      = "loan_amount"
	GateLienPosition    = "lien_position"
	GateRepaymentSource = "repayment_source"
	GateCollateralValue = "collateral_value"
)

type gate struct {
	name    string
	message string
	met     func(l models.ConfirmationLedger) bool
}

func confirmed(fields ...string) func(l models.ConfirmationLedger) bool {
	return func(l models.ConfirmationLedger) bool {
		for _, f := range fields {
			if l.IsConfirmed(f) {
				return true
			}
		}
		return false
	}
}

var draftGates = []gate{
	{GateLoanAmount, "Confirm the loan amount.", confirmed(models.FieldLoanAmount)},
	{GateLienPosition, "Confirm the lien position.", confirmed(models.FieldLienPosition)},
	{GateRepaymentSource, "Confirm the repayment source.", confirmed(models.FieldRepaymentSource)},
	{GateCollateralValue, "Confirm the stressed or appraised collateral value.",
		confirmed(models.FieldCollateralValueStressed, models.FieldCollateralValueAppraised)},
}

// CheckDraftReadiness decides whether drafting is permitted. It looks only at
// confirmation status, never at term values. A nil ledger meets no condition.
func CheckDraftReadiness(ledger models.ConfirmationLedger) *models.DraftReadiness {
	r := &models.DraftReadiness{Unmet: make([]models.GateCondition, 0)}
	for _, g := range draftGates {
		if !g.met(ledger) {
			r.Unmet = append(r.Unmet, models.GateCondition{Name: g.name, Message: g.message})
		}
	}
	r.Ready = len(r.Unmet) == 0
	return r
}

// notReadyError converts unmet readiness into the error returned by draft.
func notReadyError(r *models.DraftReadiness) error {
	if r.Ready {
		return nil
	}
	messages := make([]string, 0, len(r.Unmet))
	for _, c := range r.Unmet {
		messages = append(messages, c.Message)
	}
	return &apperrors.NotReadyError{Unmet: r.UnmetNames(), Messages: messages}
}
