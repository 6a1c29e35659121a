package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

func ledgerWith(t *testing.T, fields ...string) models.ConfirmationLedger {
	t.Helper()
	l := models.NewConfirmationLedger()
	for _, f := range fields {
		require.NoError(t, l.Set(f, true))
	}
	return l
}

func TestCheckDraftReadiness_AllConfirmed(t *testing.T) {
	r := CheckDraftReadiness(ledgerWith(t,
		models.FieldLoanAmount,
		models.FieldLienPosition,
		models.FieldRepaymentSource,
		models.FieldCollateralValueStressed,
	))
	assert.True(t, r.Ready)
	assert.Empty(t, r.Unmet)
	assert.NoError(t, notReadyError(r))
}

func TestCheckDraftReadiness_AppraisedSubstitutesForStressed(t *testing.T) {
	r := CheckDraftReadiness(ledgerWith(t,
		models.FieldLoanAmount,
		models.FieldLienPosition,
		models.FieldRepaymentSource,
		models.FieldCollateralValueAppraised,
	))
	assert.True(t, r.Ready)
}

func TestCheckDraftReadiness_ListsUnmet(t *testing.T) {
	r := CheckDraftReadiness(ledgerWith(t,
		models.FieldLoanAmount,
		models.FieldLienPosition,
		models.FieldCollateralValueStressed,
	))
	assert.False(t, r.Ready)
	assert.Equal(t, []string{GateRepaymentSource}, r.UnmetNames())

	err := notReadyError(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotReady))
	var nre *apperrors.NotReadyError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, []string{GateRepaymentSource}, nre.Unmet)
	assert.Equal(t, []string{"Confirm the repayment source."}, nre.Messages)
}

func TestCheckDraftReadiness_NilLedger(t *testing.T) {
	r := CheckDraftReadiness(nil)
	assert.False(t, r.Ready)
	assert.Equal(t, []string{GateLoanAmount, GateLienPosition, GateRepaymentSource, GateCollateralValue}, r.UnmetNames())
}

func TestCheckDraftReadiness_IgnoresValuesAndOtherFields(t *testing.T) {
	r := CheckDraftReadiness(ledgerWith(t, models.FieldNotes, models.FieldCollateralValueAsIs, models.FieldCurrency))
	assert.Len(t, r.Unmet, 4)
}

// Flipping any single confirmation to true never adds an unmet condition.
func TestCheckDraftReadiness_Monotonic(t *testing.T) {
	names := models.TermFieldNames()
	for mask := 0; mask < 1<<5; mask++ {
		required := []string{
			models.FieldLoanAmount,
			models.FieldLienPosition,
			models.FieldRepaymentSource,
			models.FieldCollateralValueStressed,
			models.FieldCollateralValueAppraised,
		}
		var set []string
		for i, f := range required {
			if mask&(1<<i) != 0 {
				set = append(set, f)
			}
		}
		base := CheckDraftReadiness(ledgerWith(t, set...))

		for _, flip := range names {
			l := ledgerWith(t, set...)
			require.NoError(t, l.Set(flip, true))
			after := CheckDraftReadiness(l)
			assert.LessOrEqual(t, len(after.Unmet), len(base.Unmet), "mask %b flip %s", mask, flip)
			if base.Ready {
				assert.True(t, after.Ready)
			}
		}
	}
}
