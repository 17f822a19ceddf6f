/*
Package ledger implements the installment fee ledger and reconciliation
engine for student admissions.

PURPOSE:
  An Admission records one enrollment's fee contract: a total fee, a down
  payment, and a dated schedule of installments. This package owns every
  mutation of that record:

  - Divide:     split a principal into N dated installments (schedule.go)
  - Pay:        settle one installment and propagate shortfall/surplus
                forward through the schedule (reconcile.go)
  - Redivide:   replace the unpaid tail with a fresh schedule (redivide.go)
  - Correct:    privileged override of totals for migrated/legacy records
                (correction.go)
  - Recompute:  rebuild derived totals and assert the ledger invariants
                after every mutation (aggregate.go)

KEY CONCEPTS IN THIS FILE (types.go):
  - Admission/Installment: the aggregate and its ordered schedule lines
  - Lineage: structured provenance for propagated arrears/credit. The
    original system encoded this in free-text remarks and parsed it back
    with pattern matching; here it is a tagged variant and the display
    string is derived, never parsed.
  - SchedulePolicy: due-date interval and re-division anchor
  - PaymentEvent: the reconciliation outcome returned to callers, making
    the conservation property (every diff lands in exactly one place)
    observable and testable

DESIGN PRINCIPLES:
  1. Settled history is immutable: a PAID installment's paidAmount and
     paidDate are never rewritten; only the Correction Service may rebuild
     the unpaid tail around it.
  2. Precision: Money is exact minor units; decimal is used at the edges.
  3. Derived fields (totalPaid, remaining, paymentStatus) are recomputed,
     never hand-set - the correction path records an explicit adjustment
     instead of spoofing installment history.
  4. Mutations are computed against an in-memory copy and persisted only
     after the aggregator validates the result.

SEE ALSO:
  - reconcile.go: the payment state machine
  - aggregate.go: invariants and derived fields
  - store.go: persistence and audit interfaces
*/
package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// AdmissionID identifies one enrollment's fee contract.
type AdmissionID string

// InstallmentNumber is the 1-based, gap-free position of a schedule line.
// It is the stable key for an installment within its admission; number 0
// addresses the down payment in clearance operations.
type InstallmentNumber int

// DownPaymentSlot addresses the down payment in clearance calls.
const DownPaymentSlot InstallmentNumber = 0

// =============================================================================
// STATUS ENUMS
// =============================================================================

// PaymentStatus is the derived admission-level payment state.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"   // nothing realized yet
	PaymentPartial   PaymentStatus = "PARTIAL"   // some money in, some owed
	PaymentCompleted PaymentStatus = "COMPLETED" // nothing left owed
)

// InstallmentStatus is the lifecycle of a single schedule line.
//
// PENDING_CLEARANCE marks a cheque payment awaiting an external clearance
// event; it blocks further sequential settlement until it flips to PAID.
// FAILED marks a bounced cheque - terminal for normal reconciliation, the
// record is repaired through the Correction Service.
type InstallmentStatus string

const (
	InstallmentPending          InstallmentStatus = "PENDING"
	InstallmentPaid             InstallmentStatus = "PAID"
	InstallmentPendingClearance InstallmentStatus = "PENDING_CLEARANCE"
	InstallmentOverdue          InstallmentStatus = "OVERDUE"
	InstallmentFailed           InstallmentStatus = "FAILED"
)

// DownPaymentStatus mirrors InstallmentStatus for the down payment slot.
// A bounced down-payment cheque reverts to PENDING rather than FAILED.
type DownPaymentStatus string

const (
	DownPaymentPending          DownPaymentStatus = "PENDING"
	DownPaymentPaid             DownPaymentStatus = "PAID"
	DownPaymentPendingClearance DownPaymentStatus = "PENDING_CLEARANCE"
)

// AdmissionStatus is the enrollment lifecycle, independent of payment state.
type AdmissionStatus string

const (
	AdmissionActive    AdmissionStatus = "ACTIVE"
	AdmissionInactive  AdmissionStatus = "INACTIVE"
	AdmissionCancelled AdmissionStatus = "CANCELLED"
	AdmissionCompleted AdmissionStatus = "COMPLETED"
)

// PaymentMethod is how a payment was received. Gateway/terminal integration
// is an external concern; the engine only records the method.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodUPI          PaymentMethod = "UPI"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCheque       PaymentMethod = "CHEQUE"
	MethodPOS          PaymentMethod = "POS"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodUPI, MethodCard, MethodBankTransfer, MethodCheque, MethodPOS:
		return true
	}
	return false
}

// =============================================================================
// LINEAGE - structured arrears/credit provenance
// =============================================================================

// LineageKind tags how an installment's amount was influenced by the
// settlement of another installment.
type LineageKind string

const (
	LineageNone           LineageKind = ""
	LineageArrearsFrom    LineageKind = "arrears_from"    // inherited a shortfall
	LineageCreditFrom     LineageKind = "credit_from"     // absorbed a surplus
	LineageCarriedForward LineageKind = "carried_forward" // terminal carry-forward
)

// Lineage records at most one inheritance note per installment. It is
// stored structured; Remark() derives the display string.
type Lineage struct {
	Kind   LineageKind       `json:"kind,omitempty"`
	From   InstallmentNumber `json:"from,omitempty"` // source installment
	Amount Money             `json:"amount,omitempty"`
}

// ArrearsFrom notes a shortfall inherited from installment n.
func ArrearsFrom(n InstallmentNumber, amount Money) Lineage {
	return Lineage{Kind: LineageArrearsFrom, From: n, Amount: amount}
}

// CreditFrom notes a surplus absorbed from installment n.
func CreditFrom(n InstallmentNumber, amount Money) Lineage {
	return Lineage{Kind: LineageCreditFrom, From: n, Amount: amount}
}

// CarriedForward notes terminal arrears moved into the carry-forward balance.
func CarriedForward(amount Money) Lineage {
	return Lineage{Kind: LineageCarriedForward, Amount: amount}
}

func (l Lineage) IsZero() bool { return l.Kind == LineageNone }

// Remark renders the human-readable note. Display only - nothing parses it.
func (l Lineage) Remark() string {
	switch l.Kind {
	case LineageArrearsFrom:
		return fmt.Sprintf("arrears inherited from installment %d of amount %s", l.From, l.Amount)
	case LineageCreditFrom:
		return fmt.Sprintf("credit inherited from installment %d of amount %s", l.From, l.Amount)
	case LineageCarriedForward:
		return fmt.Sprintf("carried-forward arrears of amount %s", l.Amount)
	default:
		return ""
	}
}

// =============================================================================
// INSTALLMENT
// =============================================================================

// Installment is one scheduled payment slot.
//
// Amount is the amount currently due for the slot and is mutable while the
// slot is outstanding (arrears/credit from the prior settlement fold into
// it). PaidAmount and PaidDate become immutable once the slot settles.
type Installment struct {
	Number     InstallmentNumber `json:"number"`
	DueDate    time.Time         `json:"due_date"`
	Amount     Money             `json:"amount"`
	PaidAmount Money             `json:"paid_amount"`
	PaidDate   *time.Time        `json:"paid_date,omitempty"`
	Status     InstallmentStatus `json:"status"`
	Method     PaymentMethod     `json:"method,omitempty"`
	Lineage    Lineage           `json:"lineage,omitempty"`
}

// Settled reports whether a payment has been recorded against the slot.
// PENDING_CLEARANCE counts: the propagation already happened at pay time.
func (i Installment) Settled() bool {
	return i.Status == InstallmentPaid || i.Status == InstallmentPendingClearance
}

// Outstanding reports whether the slot's Amount is still owed.
func (i Installment) Outstanding() bool {
	return i.Status == InstallmentPending || i.Status == InstallmentOverdue || i.Status == InstallmentFailed
}

// Payable reports whether Pay may target this slot. An OVERDUE slot is
// still payable; FAILED requires correction.
func (i Installment) Payable() bool {
	return i.Status == InstallmentPending || i.Status == InstallmentOverdue
}

// =============================================================================
// DOWN PAYMENT
// =============================================================================

// DownPayment is the up-front share of the contract. It is settled in full
// or not at all; partial down payments are not a modeled case.
type DownPayment struct {
	Amount     Money             `json:"amount"`
	Status     DownPaymentStatus `json:"status"`
	PaidAmount Money             `json:"paid_amount"`
	PaidDate   *time.Time        `json:"paid_date,omitempty"`
	Method     PaymentMethod     `json:"method,omitempty"`
}

// Outstanding returns the contractual portion not yet realized.
func (d DownPayment) Outstanding() Money {
	return d.Amount.Sub(d.PaidAmount)
}

// =============================================================================
// SCHEDULE POLICY
// =============================================================================

// IntervalUnit is the spacing unit between consecutive due dates.
type IntervalUnit string

const (
	IntervalMonth IntervalUnit = "month"
	IntervalWeek  IntervalUnit = "week"
	IntervalDay   IntervalUnit = "day"
)

// RedivideAnchor selects the start date used when re-dividing a schedule.
// The choice is an operator policy and must be explicit, never defaulted
// silently at the call site.
type RedivideAnchor string

const (
	// AnchorFirstPending keeps the original first-pending due date.
	AnchorFirstPending RedivideAnchor = "first_pending"
	// AnchorNow restarts the schedule from the re-division date.
	AnchorNow RedivideAnchor = "now"
)

// SchedulePolicy controls due-date generation for a schedule.
type SchedulePolicy struct {
	Unit           IntervalUnit   `json:"unit"`
	Every          int            `json:"every"`
	RedivideAnchor RedivideAnchor `json:"redivide_anchor"`
}

// MonthlyPolicy is the common case: one installment per month, re-division
// anchored on the first pending due date.
func MonthlyPolicy() SchedulePolicy {
	return SchedulePolicy{Unit: IntervalMonth, Every: 1, RedivideAnchor: AnchorFirstPending}
}

// Validate rejects malformed policies before they reach the builder.
func (p SchedulePolicy) Validate() error {
	switch p.Unit {
	case IntervalMonth, IntervalWeek, IntervalDay:
	default:
		return &InvalidArgumentError{Field: "policy.unit", Reason: fmt.Sprintf("unknown interval unit %q", p.Unit)}
	}
	if p.Every < 1 {
		return &InvalidArgumentError{Field: "policy.every", Reason: "interval multiplier must be >= 1"}
	}
	switch p.RedivideAnchor {
	case AnchorFirstPending, AnchorNow:
	default:
		return &InvalidArgumentError{Field: "policy.redivide_anchor", Reason: fmt.Sprintf("unknown anchor %q", p.RedivideAnchor)}
	}
	return nil
}

// DueDate returns start advanced by i intervals (i = 0 is start itself).
func (p SchedulePolicy) DueDate(start time.Time, i int) time.Time {
	switch p.Unit {
	case IntervalWeek:
		return start.AddDate(0, 0, 7*p.Every*i)
	case IntervalDay:
		return start.AddDate(0, 0, p.Every*i)
	default:
		return start.AddDate(0, p.Every*i, 0)
	}
}

// Next returns the due date one interval after t. Used when a shortfall on
// the final slot forces an appended installment.
func (p SchedulePolicy) Next(t time.Time) time.Time {
	return p.DueDate(t, 1)
}

// =============================================================================
// AUDIT REMARK - admission-level correction notes
// =============================================================================

// AuditRemark is the admission-level record of a sanctioned override. The
// full before/after payload lives in the AuditLog; the remark travels with
// the admission so exports can show that the record was hand-corrected.
type AuditRemark struct {
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
	Actor string    `json:"actor"`
	Note  string    `json:"note"`
}

// =============================================================================
// ADMISSION - the aggregate
// =============================================================================

// Admission is one enrollment's fee contract and payment record.
type Admission struct {
	ID     AdmissionID     `json:"id"`
	Status AdmissionStatus `json:"status"`

	TotalFees   Money       `json:"total_fees"`
	DownPayment DownPayment `json:"down_payment"`

	// NumberOfInstallments tracks len(Installments); InstallmentAmount is
	// the nominal per-slot share at the last (re)division. Informational -
	// authoritative amounts live on each installment.
	NumberOfInstallments int   `json:"number_of_installments"`
	InstallmentAmount    Money `json:"installment_amount"`

	Installments []Installment `json:"payment_breakdown"`

	// Derived by Recompute. PaidAdjustment is the one sanctioned hand-set
	// component: the Correction Service records the gap between declared
	// and ledger-derived totals here instead of rewriting history.
	TotalPaid      Money         `json:"total_paid_amount"`
	PaidAdjustment Money         `json:"paid_adjustment"`
	Remaining      Money         `json:"remaining_amount"`
	PaymentStatus  PaymentStatus `json:"payment_status"`

	CarryForwardBalance   Money `json:"carry_forward_balance"`
	MarkedForCarryForward bool  `json:"marked_for_carry_forward"`

	Policy SchedulePolicy `json:"schedule_policy"`
	Audit  []AuditRemark  `json:"audit_remarks,omitempty"`

	// Version supports the per-record optimistic concurrency check.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Installment returns the slot with the given number, or nil.
func (a *Admission) Installment(n InstallmentNumber) *Installment {
	for i := range a.Installments {
		if a.Installments[i].Number == n {
			return &a.Installments[i]
		}
	}
	return nil
}

// LastNumber returns the highest installment number, or 0 for an empty
// schedule.
func (a *Admission) LastNumber() InstallmentNumber {
	if len(a.Installments) == 0 {
		return 0
	}
	return a.Installments[len(a.Installments)-1].Number
}

// lastSettledIndex returns the index of the last settled slot, or -1.
// Sequential settlement keeps the settled slots a contiguous prefix.
func (a *Admission) lastSettledIndex() int {
	last := -1
	for i := range a.Installments {
		if a.Installments[i].Settled() {
			last = i
		}
	}
	return last
}

// Clone returns a deep copy. Mutations run against a clone and persist
// only after the aggregator validates the result.
func (a *Admission) Clone() *Admission {
	cp := *a
	cp.Installments = make([]Installment, len(a.Installments))
	copy(cp.Installments, a.Installments)
	for i := range cp.Installments {
		if pd := cp.Installments[i].PaidDate; pd != nil {
			d := *pd
			cp.Installments[i].PaidDate = &d
		}
	}
	if pd := a.DownPayment.PaidDate; pd != nil {
		d := *pd
		cp.DownPayment.PaidDate = &d
	}
	if a.Audit != nil {
		cp.Audit = make([]AuditRemark, len(a.Audit))
		copy(cp.Audit, a.Audit)
	}
	return &cp
}

// =============================================================================
// PAYMENT EVENT - reconciliation outcome
// =============================================================================

// PropagationStep records one place a settlement diff landed.
type PropagationStep struct {
	Target InstallmentNumber `json:"target"`
	Delta  Money             `json:"delta"` // applied to the target's Amount
	Kind   LineageKind       `json:"kind"`
}

// PaymentEvent is returned by Pay. The diff (due - paid) is fully accounted
// for by Steps and CarryForwardDelta: diff == sum(step deltas) + carry delta.
type PaymentEvent struct {
	Admission   AdmissionID       `json:"admission_id"`
	Installment InstallmentNumber `json:"installment_number"`
	Due         Money             `json:"due"`
	Paid        Money             `json:"paid"`
	Diff        Money             `json:"diff"`
	Status      InstallmentStatus `json:"status"`
	Appended    bool              `json:"appended,omitempty"` // a new slot was created for arrears

	Steps             []PropagationStep `json:"steps,omitempty"`
	CarryForwardDelta Money             `json:"carry_forward_delta"`
}

// Accounted returns the portion of the diff explained by the event. Tests
// assert Accounted() == Diff (conservation under propagation).
func (e *PaymentEvent) Accounted() Money {
	total := e.CarryForwardDelta
	for _, s := range e.Steps {
		total = total.Add(s.Delta)
	}
	return total
}
