/*
aggregate.go - Ledger aggregator: derived fields and invariants

PURPOSE:
  Recompute is the single place derived admission fields are produced and
  the single place the ledger invariants are asserted. Every mutation in
  this package ends by calling it; a failure means the mutated copy is
  discarded and nothing is persisted.

DERIVED FIELDS:
  totalPaid = downPayment.paidAmount
            + sum(installment.paidAmount over settled slots)
            + paidAdjustment (correction-path override, normally zero)
  remaining = totalFees - totalPaid - carryForwardBalance
  paymentStatus: COMPLETED iff remaining <= 0,
                 PENDING   iff totalPaid == 0,
                 PARTIAL   otherwise.

  The carry-forward term closes the books when terminal arrears or credit
  leave the schedule: a contract closed with carried-forward arrears shows
  remaining 0 while the standing balance is tracked separately.

INVARIANTS (violation = LedgerInconsistency, never silently corrected):
  - installment numbers are 1-based, gap-free, strictly increasing
  - settled slots form a contiguous prefix (sequential settlement)
  - no outstanding amount and no paid amount is negative
  - conservation:
      sum(amount over outstanding) + downPayment.outstanding == remaining
    i.e. what is still scheduled to collect equals what is still owed.
  - remaining is never negative
*/
package ledger

import "fmt"

// Recompute rebuilds the derived fields of adm and asserts the ledger
// invariants. Pure: no I/O, idempotent.
func Recompute(adm *Admission) error {
	// Numbering: 1-based, contiguous.
	for i := range adm.Installments {
		if adm.Installments[i].Number != InstallmentNumber(i+1) {
			return &InconsistencyError{
				Admission:   adm.ID,
				Check:       "numbering",
				Installment: adm.Installments[i].Number,
				Detail:      fmt.Sprintf("expected installment %d at position %d", i+1, i),
			}
		}
	}

	// Sequential settlement keeps settled slots a contiguous prefix.
	seenOutstanding := false
	for i := range adm.Installments {
		inst := &adm.Installments[i]
		if inst.Settled() {
			if seenOutstanding {
				return &InconsistencyError{
					Admission:   adm.ID,
					Check:       "settlement-order",
					Installment: inst.Number,
					Detail:      "settled installment follows an outstanding one",
				}
			}
		} else {
			seenOutstanding = true
		}
	}

	var schedulePaid, outstanding Money
	for i := range adm.Installments {
		inst := &adm.Installments[i]
		if inst.Amount.IsNegative() {
			return &InconsistencyError{
				Admission:   adm.ID,
				Check:       "amount",
				Installment: inst.Number,
				Detail:      fmt.Sprintf("negative amount %s", inst.Amount),
			}
		}
		if inst.PaidAmount.IsNegative() {
			return &InconsistencyError{
				Admission:   adm.ID,
				Check:       "paid-amount",
				Installment: inst.Number,
				Detail:      fmt.Sprintf("negative paid amount %s", inst.PaidAmount),
			}
		}
		if inst.Settled() {
			schedulePaid = schedulePaid.Add(inst.PaidAmount)
		} else {
			outstanding = outstanding.Add(inst.Amount)
		}
	}

	adm.TotalPaid = adm.DownPayment.PaidAmount.Add(schedulePaid).Add(adm.PaidAdjustment)

	remaining := adm.TotalFees.Sub(adm.TotalPaid).Sub(adm.CarryForwardBalance)
	if remaining.IsNegative() {
		return &InconsistencyError{
			Admission: adm.ID,
			Check:     "remaining",
			Detail:    fmt.Sprintf("remaining %s is negative (paid %s of %s, carry %s)", remaining, adm.TotalPaid, adm.TotalFees, adm.CarryForwardBalance),
		}
	}
	adm.Remaining = remaining

	// Conservation: scheduled-to-collect must equal still-owed.
	scheduled := outstanding.Add(adm.DownPayment.Outstanding())
	if scheduled.Cmp(remaining) != 0 {
		return &InconsistencyError{
			Admission: adm.ID,
			Check:     "conservation",
			Detail:    fmt.Sprintf("scheduled %s != remaining %s", scheduled, remaining),
		}
	}

	switch {
	case remaining.IsZero():
		adm.PaymentStatus = PaymentCompleted
	case adm.TotalPaid.IsZero():
		adm.PaymentStatus = PaymentPending
	default:
		adm.PaymentStatus = PaymentPartial
	}

	adm.NumberOfInstallments = len(adm.Installments)
	return nil
}
