package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
)

func TestRecompute_DerivesStatusFromTotals(t *testing.T) {
	adm := newScheduledAdmission(t)

	// Down payment settled, no installments yet: PARTIAL.
	assert.Equal(t, ledger.PaymentPartial, adm.PaymentStatus)

	payAt(t, adm, 1, 2667)
	payAt(t, adm, 2, 2667)
	payAt(t, adm, 3, 2666)
	assert.Equal(t, ledger.PaymentCompleted, adm.PaymentStatus)
	assert.True(t, adm.Remaining.IsZero())
}

func TestRecompute_PendingWhenNothingRealized(t *testing.T) {
	adm, err := ledger.NewAdmission(
		ledger.NewMoney(10000), ledger.NewMoney(2000), 3,
		start2025(), ledger.MonthlyPolicy(), start2025())
	require.NoError(t, err)

	assert.Equal(t, ledger.PaymentPending, adm.PaymentStatus)
	assert.True(t, adm.TotalPaid.IsZero())
	assert.Equal(t, ledger.NewMoney(10000), adm.Remaining)
}

func TestRecompute_RejectsNumberingGap(t *testing.T) {
	// GIVEN: a schedule whose numbers are not contiguous
	// THEN: Recompute refuses with an inconsistency, never repairs

	adm := newScheduledAdmission(t)
	adm.Installments[1].Number = 5

	err := ledger.Recompute(adm)
	assert.ErrorIs(t, err, ledger.ErrLedgerInconsistency)

	var incErr *ledger.InconsistencyError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, "numbering", incErr.Check)
}

func TestRecompute_RejectsSettledAfterOutstanding(t *testing.T) {
	adm := newScheduledAdmission(t)
	adm.Installments[2].Status = ledger.InstallmentPaid
	adm.Installments[2].PaidAmount = adm.Installments[2].Amount

	err := ledger.Recompute(adm)
	assert.ErrorIs(t, err, ledger.ErrLedgerInconsistency)

	var incErr *ledger.InconsistencyError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, "settlement-order", incErr.Check)
}

func TestRecompute_RejectsNegativeAmounts(t *testing.T) {
	adm := newScheduledAdmission(t)
	adm.Installments[0].Amount = ledger.NewMoney(-1)

	err := ledger.Recompute(adm)
	assert.ErrorIs(t, err, ledger.ErrLedgerInconsistency)
}

func TestRecompute_RejectsBrokenConservation(t *testing.T) {
	// GIVEN: a hand-edited total that no longer matches the schedule
	// THEN: the conservation check fires

	adm := newScheduledAdmission(t)
	adm.TotalFees = ledger.NewMoney(99999)

	err := ledger.Recompute(adm)
	assert.ErrorIs(t, err, ledger.ErrLedgerInconsistency)

	var incErr *ledger.InconsistencyError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, "conservation", incErr.Check)
}

func TestRecompute_RejectsNegativeRemaining(t *testing.T) {
	adm := newScheduledAdmission(t)
	adm.PaidAdjustment = ledger.NewMoney(50000)

	err := ledger.Recompute(adm)
	assert.ErrorIs(t, err, ledger.ErrLedgerInconsistency)

	var incErr *ledger.InconsistencyError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, "remaining", incErr.Check)
}
