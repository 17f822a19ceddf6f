package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
)

func start2025() time.Time {
	return time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
}

func TestDivide_FrontLoadedRemainder(t *testing.T) {
	// GIVEN: a principal that does not divide evenly
	// WHEN: splitting 8000 minor units across 3 installments
	// THEN: the first remainder slots receive the extra minor unit and the
	//       amounts sum exactly to the principal

	installments, err := ledger.Divide(ledger.NewMoney(8000), 3, start2025(), ledger.MonthlyPolicy())
	require.NoError(t, err)
	require.Len(t, installments, 3)

	assert.Equal(t, ledger.NewMoney(2667), installments[0].Amount)
	assert.Equal(t, ledger.NewMoney(2667), installments[1].Amount)
	assert.Equal(t, ledger.NewMoney(2666), installments[2].Amount)

	var sum ledger.Money
	for _, inst := range installments {
		sum = sum.Add(inst.Amount)
	}
	assert.Equal(t, ledger.NewMoney(8000), sum, "division never loses a minor unit")
}

func TestDivide_EvenSplit(t *testing.T) {
	installments, err := ledger.Divide(ledger.NewMoney(9000), 3, start2025(), ledger.MonthlyPolicy())
	require.NoError(t, err)

	for _, inst := range installments {
		assert.Equal(t, ledger.NewMoney(3000), inst.Amount)
		assert.Equal(t, ledger.InstallmentPending, inst.Status)
	}
}

func TestDivide_AmountsDifferByAtMostOne(t *testing.T) {
	// Any two installments in a division differ by at most one minor unit.

	installments, err := ledger.Divide(ledger.NewMoney(100003), 7, start2025(), ledger.MonthlyPolicy())
	require.NoError(t, err)

	min, max := installments[0].Amount, installments[0].Amount
	for _, inst := range installments {
		min = min.Min(inst.Amount)
		max = max.Max(inst.Amount)
	}
	assert.LessOrEqual(t, max.Sub(min).Minor(), int64(1))
}

func TestDivide_DueDatesFollowPolicy(t *testing.T) {
	// GIVEN: a monthly policy starting Jan 15
	// THEN: due dates land on Jan 15, Feb 15, Mar 15

	installments, err := ledger.Divide(ledger.NewMoney(3000), 3, start2025(), ledger.MonthlyPolicy())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), installments[0].DueDate)
	assert.Equal(t, time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC), installments[1].DueDate)
	assert.Equal(t, time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC), installments[2].DueDate)
}

func TestDivide_WeeklyPolicy(t *testing.T) {
	policy := ledger.SchedulePolicy{
		Unit:           ledger.IntervalWeek,
		Every:          2,
		RedivideAnchor: ledger.AnchorNow,
	}
	installments, err := ledger.Divide(ledger.NewMoney(1000), 2, start2025(), policy)
	require.NoError(t, err)

	assert.Equal(t, start2025(), installments[0].DueDate)
	assert.Equal(t, start2025().AddDate(0, 0, 14), installments[1].DueDate)
}

func TestDivide_NumbersAreContiguousFromOne(t *testing.T) {
	installments, err := ledger.Divide(ledger.NewMoney(5000), 5, start2025(), ledger.MonthlyPolicy())
	require.NoError(t, err)

	for i, inst := range installments {
		assert.Equal(t, ledger.InstallmentNumber(i+1), inst.Number)
	}
}

func TestDivide_RejectsBadInput(t *testing.T) {
	_, err := ledger.Divide(ledger.NewMoney(1000), 0, start2025(), ledger.MonthlyPolicy())
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument, "zero count")

	_, err = ledger.Divide(ledger.NewMoney(-1), 3, start2025(), ledger.MonthlyPolicy())
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument, "negative principal")

	bad := ledger.SchedulePolicy{Unit: "fortnight", Every: 1, RedivideAnchor: ledger.AnchorNow}
	_, err = ledger.Divide(ledger.NewMoney(1000), 3, start2025(), bad)
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument, "unknown interval unit")
}

func TestDivide_ZeroPrincipal(t *testing.T) {
	// A fully-down-paid contract can still carry an explicit zero schedule.

	installments, err := ledger.Divide(ledger.NewMoney(0), 2, start2025(), ledger.MonthlyPolicy())
	require.NoError(t, err)
	for _, inst := range installments {
		assert.True(t, inst.Amount.IsZero())
	}
}
