/*
reconcile.go - Payment reconciliation state machine

PURPOSE:
  Applies a confirmed payment against one installment and accounts for the
  difference between the amount due and the amount received:

    diff = due - paid

  diff > 0 (shortfall):
    - folded into the NEXT installment's amount as inherited arrears, or
    - on the final slot with carryForward requested, moved into the
      admission's carry-forward balance (the schedule does not grow).
    - if the target was the final slot and carry-forward was NOT requested,
      a fresh slot is appended and receives the arrears.

  diff < 0 (surplus):
    - absorbed by following installments in order (each can only go down
      to zero), any leftover past the end of the schedule becomes a
      negative carry-forward balance (credit owed to the student).

  diff = 0: no propagation, no remark.

  Exactly one of {next-slot deltas, carry-forward delta} accounts for every
  minor unit of the diff; the returned PaymentEvent exposes the accounting.

SEQUENTIAL SETTLEMENT:
  Installment k can only be paid when every installment before k is PAID.
  This mirrors collections practice and keeps arrears/credit provenance
  unambiguous: the only slot whose amount can still change is the next
  outstanding one. A cheque in PENDING_CLEARANCE blocks the sequence until
  the external clearance event resolves it.

CHEQUES:
  method=CHEQUE settles into PENDING_CLEARANCE. ConfirmClearance later
  flips it to PAID, or on bounce unwinds the propagation (the target slots
  are provably still untouched, see above) and leaves the slot FAILED.
  FAILED is terminal for normal reconciliation; repair goes through the
  Correction Service.

SEE ALSO:
  - aggregate.go: invoked after every mutation here
  - correction.go: the only path allowed to rewrite totals
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// PAY - settle one installment
// =============================================================================

// Pay records a confirmed payment of paid against installment n and
// propagates the shortfall or surplus. carryForward only has meaning on
// the final slot of the schedule.
//
// The admission is mutated in place; callers work on a Clone and persist
// only on success. Recompute runs before returning.
func Pay(adm *Admission, n InstallmentNumber, paid Money, method PaymentMethod, receivedAt time.Time, carryForward bool) (*PaymentEvent, error) {
	if paid.IsNegative() {
		return nil, &InvalidArgumentError{Field: "paid_amount", Reason: "must not be negative"}
	}
	if !ValidMethod(method) {
		return nil, &InvalidArgumentError{Field: "method", Reason: fmt.Sprintf("unknown payment method %q", method)}
	}

	inst := adm.Installment(n)
	if inst == nil {
		return nil, &SequencingError{Admission: adm.ID, Installment: n, Reason: "no such installment"}
	}
	if !inst.Payable() {
		reason := fmt.Sprintf("installment is %s and cannot be settled again", inst.Status)
		if inst.Status == InstallmentFailed {
			reason = "installment failed clearance and requires correction"
		}
		return nil, &SequencingError{Admission: adm.ID, Installment: n, Reason: reason}
	}
	if err := requireSettledBefore(adm, n); err != nil {
		return nil, err
	}

	due := inst.Amount
	diff := due.Sub(paid)

	inst.PaidAmount = paid
	paidDate := receivedAt
	inst.PaidDate = &paidDate
	inst.Method = method
	if method == MethodCheque {
		inst.Status = InstallmentPendingClearance
	} else {
		inst.Status = InstallmentPaid
	}

	event := &PaymentEvent{
		Admission:   adm.ID,
		Installment: n,
		Due:         due,
		Paid:        paid,
		Diff:        diff,
		Status:      inst.Status,
	}

	isLast := n == adm.LastNumber()

	switch {
	case diff.IsPositive():
		if isLast && carryForward {
			// Terminal arrears: close the schedule, carry the balance.
			adm.CarryForwardBalance = adm.CarryForwardBalance.Add(diff)
			adm.MarkedForCarryForward = true
			inst.Lineage = CarriedForward(diff)
			event.CarryForwardDelta = diff
		} else {
			next := adm.Installment(n + 1)
			if next == nil {
				// Final slot underpaid without carry-forward: the schedule
				// grows by one empty slot to receive the arrears.
				adm.Installments = append(adm.Installments, Installment{
					Number:  n + 1,
					DueDate: adm.Policy.Next(inst.DueDate),
					Status:  InstallmentPending,
				})
				next = &adm.Installments[len(adm.Installments)-1]
				event.Appended = true
			}
			next.Amount = next.Amount.Add(diff)
			next.Lineage = ArrearsFrom(n, diff)
			event.Steps = append(event.Steps, PropagationStep{
				Target: next.Number, Delta: diff, Kind: LineageArrearsFrom,
			})
		}

	case diff.IsNegative():
		credit := diff.Neg()
		for j := n + 1; credit.IsPositive(); j++ {
			target := adm.Installment(j)
			if target == nil {
				// Past the end of the schedule: the rest is owed back to
				// the student as a negative carry-forward balance.
				adm.CarryForwardBalance = adm.CarryForwardBalance.Sub(credit)
				adm.MarkedForCarryForward = true
				inst.Lineage = CarriedForward(credit.Neg())
				event.CarryForwardDelta = credit.Neg()
				break
			}
			applied := credit.Min(target.Amount)
			if applied.IsPositive() {
				target.Amount = target.Amount.Sub(applied)
				target.Lineage = CreditFrom(n, applied)
				event.Steps = append(event.Steps, PropagationStep{
					Target: j, Delta: applied.Neg(), Kind: LineageCreditFrom,
				})
			}
			credit = credit.Sub(applied)
		}
	}

	if err := Recompute(adm); err != nil {
		return nil, err
	}
	return event, nil
}

// requireSettledBefore enforces sequential settlement: every slot before n
// must be PAID.
func requireSettledBefore(adm *Admission, n InstallmentNumber) error {
	for i := range adm.Installments {
		prev := &adm.Installments[i]
		if prev.Number >= n {
			break
		}
		if prev.Status == InstallmentPaid {
			continue
		}
		reason := fmt.Sprintf("installment %d is still %s", prev.Number, prev.Status)
		if prev.Status == InstallmentPendingClearance {
			reason = fmt.Sprintf("installment %d is awaiting cheque clearance", prev.Number)
		}
		return &SequencingError{Admission: adm.ID, Installment: n, Reason: reason}
	}
	return nil
}

// =============================================================================
// DOWN PAYMENT
// =============================================================================

// PayDownPayment settles the contractual down payment in full. Partial
// down payments are not a modeled case; shortfalls on the schedule are
// handled by the installment reconciliation above.
func PayDownPayment(adm *Admission, method PaymentMethod, receivedAt time.Time) error {
	if !ValidMethod(method) {
		return &InvalidArgumentError{Field: "method", Reason: fmt.Sprintf("unknown payment method %q", method)}
	}
	if adm.DownPayment.Status != DownPaymentPending {
		return &SequencingError{
			Admission:   adm.ID,
			Installment: DownPaymentSlot,
			Reason:      fmt.Sprintf("down payment is %s and cannot be settled again", adm.DownPayment.Status),
		}
	}

	adm.DownPayment.PaidAmount = adm.DownPayment.Amount
	paidDate := receivedAt
	adm.DownPayment.PaidDate = &paidDate
	adm.DownPayment.Method = method
	if method == MethodCheque {
		adm.DownPayment.Status = DownPaymentPendingClearance
	} else {
		adm.DownPayment.Status = DownPaymentPaid
	}

	return Recompute(adm)
}

// =============================================================================
// CHEQUE CLEARANCE - external event, delivered later
// =============================================================================

// ConfirmClearance resolves a PENDING_CLEARANCE settlement. n addresses an
// installment, or DownPaymentSlot (0) for the down payment.
//
// cleared=true flips the slot to PAID. cleared=false (bounce) unwinds the
// propagation that the cheque's settlement caused - safe because the slots
// it touched cannot have been settled while the cheque was blocking the
// sequence - and leaves the installment FAILED with nothing paid. FAILED
// is repaired through the Correction Service, not by re-paying.
func ConfirmClearance(adm *Admission, n InstallmentNumber, cleared bool) error {
	if n == DownPaymentSlot {
		return confirmDownPaymentClearance(adm, cleared)
	}

	inst := adm.Installment(n)
	if inst == nil {
		return &SequencingError{Admission: adm.ID, Installment: n, Reason: "no such installment"}
	}
	if inst.Status != InstallmentPendingClearance {
		return &SequencingError{
			Admission:   adm.ID,
			Installment: n,
			Reason:      fmt.Sprintf("installment is %s, not awaiting clearance", inst.Status),
		}
	}

	if cleared {
		inst.Status = InstallmentPaid
		return Recompute(adm)
	}

	unwindPropagation(adm, inst)
	inst.Status = InstallmentFailed
	inst.PaidAmount = 0
	inst.PaidDate = nil
	return Recompute(adm)
}

func confirmDownPaymentClearance(adm *Admission, cleared bool) error {
	if adm.DownPayment.Status != DownPaymentPendingClearance {
		return &SequencingError{
			Admission:   adm.ID,
			Installment: DownPaymentSlot,
			Reason:      fmt.Sprintf("down payment is %s, not awaiting clearance", adm.DownPayment.Status),
		}
	}
	if cleared {
		adm.DownPayment.Status = DownPaymentPaid
	} else {
		// A bounced down-payment cheque simply reopens the slot.
		adm.DownPayment.Status = DownPaymentPending
		adm.DownPayment.PaidAmount = 0
		adm.DownPayment.PaidDate = nil
	}
	return Recompute(adm)
}

// unwindPropagation reverses what the settlement of src pushed into later
// slots or the carry-forward balance.
func unwindPropagation(adm *Admission, src *Installment) {
	for i := range adm.Installments {
		target := &adm.Installments[i]
		if target.Lineage.From != src.Number {
			continue
		}
		switch target.Lineage.Kind {
		case LineageArrearsFrom:
			target.Amount = target.Amount.Sub(target.Lineage.Amount)
			target.Lineage = Lineage{}
		case LineageCreditFrom:
			target.Amount = target.Amount.Add(target.Lineage.Amount)
			target.Lineage = Lineage{}
		}
	}
	if src.Lineage.Kind == LineageCarriedForward {
		adm.CarryForwardBalance = adm.CarryForwardBalance.Sub(src.Lineage.Amount)
		src.Lineage = Lineage{}
	}
	adm.MarkedForCarryForward = !adm.CarryForwardBalance.IsZero()
}
