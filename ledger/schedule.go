/*
schedule.go - Installment schedule builder

PURPOSE:
  Pure division of a principal into N dated installments. Used at admission
  creation (principal = totalFees - downPayment), at re-division time, and
  by the correction path.

REMAINDER RULE:
  base = principal div count, remainder = principal mod count, both in
  minor units. The first `remainder` installments receive base+1; the rest
  receive base. Front-loading the remainder means partial early payments
  are not penalized by rounding. The rule is deterministic policy, not an
  attempt to mimic any particular display rounding.

DUE DATES:
  startDate + i * interval for i = 0..count-1, interval per SchedulePolicy.
*/
package ledger

import (
	"fmt"
	"time"
)

// Divide splits principal across count installments starting at start.
// The returned slots are numbered 1..count, PENDING, with nothing paid.
// The amounts always sum exactly to principal.
func Divide(principal Money, count int, start time.Time, policy SchedulePolicy) ([]Installment, error) {
	if count < 1 {
		return nil, &InvalidArgumentError{Field: "count", Reason: "installment count must be >= 1"}
	}
	if principal.IsNegative() {
		return nil, &InvalidArgumentError{Field: "principal", Reason: fmt.Sprintf("principal %s is negative", principal)}
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	base := principal.Minor() / int64(count)
	remainder := principal.Minor() % int64(count)

	installments := make([]Installment, count)
	for i := 0; i < count; i++ {
		amount := base
		if int64(i) < remainder {
			amount++ // front-loaded remainder
		}
		installments[i] = Installment{
			Number:  InstallmentNumber(i + 1),
			DueDate: policy.DueDate(start, i),
			Amount:  NewMoney(amount),
			Status:  InstallmentPending,
		}
	}
	return installments, nil
}

// NominalShare returns the per-slot base amount for display fields.
func NominalShare(principal Money, count int) Money {
	if count < 1 {
		return 0
	}
	return NewMoney(principal.Minor() / int64(count))
}

// renumber rewrites slot numbers to start at first, preserving order.
func renumber(installments []Installment, first InstallmentNumber) {
	for i := range installments {
		installments[i].Number = first + InstallmentNumber(i)
	}
}
