/*
correction.go - Privileged manual override

PURPOSE:
  The one sanctioned path that may hand-set totals. It exists for
  migrated/legacy records whose on-the-books totals disagree with the
  installment math and must be forced into agreement.

CAPABILITY:
  Authorization is an external concern. The caller passes an explicit
  Capability asserting the privilege; the engine checks the assertion but
  never consults ambient session state. This replaces the original
  system's implicit "current user" role lookup.

WHAT IT DOES:
  - sets totalFees directly
  - records the declared paid total as an explicit PaidAdjustment on top
    of the ledger-derived total (history is never spoofed into
    installments)
  - resets any standing carry-forward balance - the new totals supersede it
  - rebuilds the whole unsettled tail (including FAILED slots) over
    principal = newTotalFees - newTotalPaid - unpaid down-payment portion
  - appends an admission-level audit remark; the service layer writes the
    full before/after payload to the audit log

  Settled installments are untouched. Recompute re-validates everything
  afterward, so a correction cannot leave the ledger inconsistent.
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoleSuperAdmin is the only role the correction path accepts.
const RoleSuperAdmin = "superadmin"

// Capability is an explicit privilege assertion passed by the caller.
type Capability struct {
	Actor string
	Role  string
}

// AllowsCorrection reports whether the capability permits manual overrides.
func (c Capability) AllowsCorrection() bool { return c.Role == RoleSuperAdmin }

// CorrectionResult captures before/after values for the audit trail.
type CorrectionResult struct {
	Actor string `json:"actor"`

	TotalFeesBefore Money `json:"total_fees_before"`
	TotalFeesAfter  Money `json:"total_fees_after"`
	TotalPaidBefore Money `json:"total_paid_before"`
	TotalPaidAfter  Money `json:"total_paid_after"`
	CountBefore     int   `json:"installment_count_before"`
	CountAfter      int   `json:"installment_count_after"`
	CarryBefore     Money `json:"carry_forward_before"`
}

// Correct overrides the admission's totals and rebuilds the unsettled tail.
// newCount may be 0 only when nothing remains to schedule.
func Correct(adm *Admission, cap Capability, newTotalFees, newTotalPaid Money, newCount int, now time.Time) (*CorrectionResult, error) {
	if !cap.AllowsCorrection() {
		return nil, &AuthorizationError{Actor: cap.Actor, Role: cap.Role}
	}
	if newTotalFees.IsNegative() {
		return nil, &InvalidArgumentError{Field: "new_total_fees", Reason: "must not be negative"}
	}
	if newTotalPaid.IsNegative() {
		return nil, &InvalidArgumentError{Field: "new_total_paid", Reason: "must not be negative"}
	}
	if newCount < 0 {
		return nil, &InvalidArgumentError{Field: "new_installment_count", Reason: "must not be negative"}
	}

	result := &CorrectionResult{
		Actor:           cap.Actor,
		TotalFeesBefore: adm.TotalFees,
		TotalPaidBefore: adm.TotalPaid,
		CountBefore:     len(adm.Installments),
		CarryBefore:     adm.CarryForwardBalance,
	}

	tailStart := adm.lastSettledIndex() + 1

	// Ledger-derived paid: down payment plus the settled prefix.
	derivedPaid := adm.DownPayment.PaidAmount
	for i := 0; i < tailStart; i++ {
		derivedPaid = derivedPaid.Add(adm.Installments[i].PaidAmount)
	}

	principal := newTotalFees.Sub(newTotalPaid).Sub(adm.DownPayment.Outstanding())
	if principal.IsNegative() {
		return nil, &InvalidArgumentError{
			Field:  "new_total_paid",
			Reason: fmt.Sprintf("declared totals leave %s to schedule", principal),
		}
	}

	var fresh []Installment
	if newCount == 0 {
		if !principal.IsZero() {
			return nil, &InvalidArgumentError{
				Field:  "new_installment_count",
				Reason: fmt.Sprintf("zero installments leave %s unscheduled", principal),
			}
		}
	} else {
		anchor := now
		if adm.Policy.RedivideAnchor == AnchorFirstPending && tailStart < len(adm.Installments) {
			anchor = adm.Installments[tailStart].DueDate
		}
		var err error
		fresh, err = Divide(principal, newCount, anchor, adm.Policy)
		if err != nil {
			return nil, err
		}
		renumber(fresh, InstallmentNumber(tailStart+1))
	}

	adm.TotalFees = newTotalFees
	adm.PaidAdjustment = newTotalPaid.Sub(derivedPaid)
	adm.CarryForwardBalance = 0
	adm.MarkedForCarryForward = false
	adm.Installments = append(adm.Installments[:tailStart:tailStart], fresh...)
	adm.InstallmentAmount = NominalShare(principal, newCount)

	result.TotalFeesAfter = newTotalFees
	result.TotalPaidAfter = newTotalPaid
	result.CountAfter = len(adm.Installments)

	adm.Audit = append(adm.Audit, AuditRemark{
		ID:    uuid.NewString(),
		At:    now,
		Actor: cap.Actor,
		Note: fmt.Sprintf("manual correction: total fees %s -> %s, total paid %s -> %s, installments %d -> %d",
			result.TotalFeesBefore, newTotalFees,
			result.TotalPaidBefore, newTotalPaid,
			result.CountBefore, result.CountAfter),
	})

	if err := Recompute(adm); err != nil {
		return nil, err
	}
	return result, nil
}
