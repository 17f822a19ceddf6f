/*
admission.go - Admission construction and schedule-level maintenance
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewAdmission builds an admission with its initial division: the down
// payment plus count installments over totalFees - downPayment.
//
// count may be 0 only when the down payment covers the whole contract.
func NewAdmission(totalFees, downPayment Money, count int, start time.Time, policy SchedulePolicy, now time.Time) (*Admission, error) {
	if totalFees.IsNegative() {
		return nil, &InvalidArgumentError{Field: "total_fees", Reason: "must not be negative"}
	}
	if downPayment.IsNegative() {
		return nil, &InvalidArgumentError{Field: "down_payment", Reason: "must not be negative"}
	}
	if downPayment.Cmp(totalFees) > 0 {
		return nil, &InvalidArgumentError{Field: "down_payment", Reason: "exceeds total fees"}
	}
	if count < 0 {
		return nil, &InvalidArgumentError{Field: "installment_count", Reason: "must not be negative"}
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	principal := totalFees.Sub(downPayment)

	var installments []Installment
	if count == 0 {
		if !principal.IsZero() {
			return nil, &InvalidArgumentError{
				Field:  "installment_count",
				Reason: fmt.Sprintf("zero installments leave %s unscheduled", principal),
			}
		}
	} else {
		var err error
		installments, err = Divide(principal, count, start, policy)
		if err != nil {
			return nil, err
		}
	}

	adm := &Admission{
		ID:     AdmissionID(uuid.NewString()),
		Status: AdmissionActive,

		TotalFees: totalFees,
		DownPayment: DownPayment{
			Amount: downPayment,
			Status: DownPaymentPending,
		},

		InstallmentAmount: NominalShare(principal, count),
		Installments:      installments,

		Policy:    policy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if downPayment.IsZero() {
		// Nothing to collect up front; the slot is settled by construction.
		adm.DownPayment.Status = DownPaymentPaid
	}

	if err := Recompute(adm); err != nil {
		return nil, err
	}
	return adm, nil
}

// MarkOverdue flips dated PENDING installments past asOf to OVERDUE and
// returns how many changed. OVERDUE slots stay payable and re-dividable;
// the status exists for reporting and collections follow-up. There is no
// internal scheduler - an external cron calls this through the API.
func MarkOverdue(adm *Admission, asOf time.Time) int {
	flipped := 0
	for i := range adm.Installments {
		inst := &adm.Installments[i]
		if inst.Status == InstallmentPending && inst.DueDate.Before(asOf) {
			inst.Status = InstallmentOverdue
			flipped++
		}
	}
	return flipped
}
