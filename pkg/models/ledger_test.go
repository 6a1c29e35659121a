package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
)

func TestConfirmationLedger_DefaultsToUnconfirmed(t *testing.T) {
	l := NewConfirmationLedger()

	require.Len(t, l, len(TermFieldNames()))
	for _, name := range TermFieldNames() {
		confirmed, ok := l[name]
		assert.True(t, ok, name)
		assert.False(t, confirmed, name)
	}
	assert.Empty(t, l.ConfirmedFields())
}

func TestConfirmationLedger_Set(t *testing.T) {
	l := NewConfirmationLedger()

	require.NoError(t, l.Set(FieldLoanAmount, true))
	require.NoError(t, l.Set(FieldLienPosition, true))
	require.NoError(t, l.Set(FieldLienPosition, false))

	assert.True(t, l.IsConfirmed(FieldLoanAmount))
	assert.False(t, l.IsConfirmed(FieldLienPosition))
	assert.Equal(t, []string{FieldLoanAmount}, l.ConfirmedFields())

	err := l.Set("ltv", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidField))

	var ferr *apperrors.InvalidFieldError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "ltv", ferr.Field)
	_, exists := l["ltv"]
	assert.False(t, exists)
}

func TestLedgerFromMap(t *testing.T) {
	l, err := LedgerFromMap(map[string]bool{
		FieldRepaymentSource:         true,
		FieldCollateralValueStressed: true,
	})
	require.NoError(t, err)
	assert.True(t, l.IsConfirmed(FieldRepaymentSource))
	assert.True(t, l.IsConfirmed(FieldCollateralValueStressed))
	assert.False(t, l.IsConfirmed(FieldLoanAmount))
	assert.Len(t, l, len(TermFieldNames()))

	_, err = LedgerFromMap(map[string]bool{FieldLoanAmount: true, "bogus": false})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidField))
}

func TestConfirmationLedger_NilIsUnconfirmed(t *testing.T) {
	var l ConfirmationLedger
	assert.False(t, l.IsConfirmed(FieldLoanAmount))
	assert.Nil(t, l.Clone())
}
