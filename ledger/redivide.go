/*
redivide.go - Re-division of the unpaid tail

PURPOSE:
  Replaces the contiguous tail of outstanding installments with a fresh
  schedule of newCount slots over the same remaining principal. Settled
  installments and their remarks are never touched; the new slots are
  renumbered continuing from the last settled slot, so earlier numbers are
  never reassigned to paid history.

ANCHOR:
  The start date of the new schedule is an explicit policy choice carried
  on the admission (first-pending due date vs. the re-division date). It
  is resolved here, never silently defaulted at the call site.
*/
package ledger

import (
	"fmt"
	"time"
)

// Redivide replaces the outstanding tail with newCount fresh installments.
// now is used when the admission's policy anchors re-division on the
// current date.
//
// A FAILED slot in the tail blocks re-division: a bounced cheque must be
// resolved through the Correction Service first.
func Redivide(adm *Admission, newCount int, now time.Time) error {
	if newCount < 1 {
		return &InvalidArgumentError{Field: "new_count", Reason: "installment count must be >= 1"}
	}

	tailStart := adm.lastSettledIndex() + 1
	if tailStart >= len(adm.Installments) {
		return &InvalidArgumentError{Field: "admission", Reason: "no pending installments to re-divide"}
	}

	var principal Money
	for i := tailStart; i < len(adm.Installments); i++ {
		inst := &adm.Installments[i]
		if inst.Status == InstallmentFailed {
			return &SequencingError{
				Admission:   adm.ID,
				Installment: inst.Number,
				Reason:      "failed installment requires correction before re-division",
			}
		}
		principal = principal.Add(inst.Amount)
	}

	anchor := now
	if adm.Policy.RedivideAnchor == AnchorFirstPending {
		anchor = adm.Installments[tailStart].DueDate
	}

	fresh, err := Divide(principal, newCount, anchor, adm.Policy)
	if err != nil {
		return err
	}

	first := InstallmentNumber(tailStart + 1)
	renumber(fresh, first)

	adm.Installments = append(adm.Installments[:tailStart:tailStart], fresh...)
	adm.InstallmentAmount = NominalShare(principal, newCount)

	if err := Recompute(adm); err != nil {
		return fmt.Errorf("re-division left the ledger inconsistent: %w", err)
	}
	return nil
}
