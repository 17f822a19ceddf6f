/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Admission:
    AdmissionDTO, InstallmentDTO, DownPaymentDTO, CreateAdmissionRequest

  Payments:
    RecordPaymentRequest, PaymentEventDTO, DownPaymentRequest,
    ClearanceRequest

  Schedule changes:
    RedivideRequest, CorrectRequest

  Admin:
    MarkOverdueRequest, AuditEntryDTO

MONEY REPRESENTATION:
  All amounts travel as 2-decimal strings ("2666.67"), never floats. The
  read model additionally exposes display_installment_amount, the nominal
  share rounded up to a whole unit for UI display - the authoritative
  amounts stay exact on each installment.

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run the
  validator before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/warp/fee-ledger/factory"
	"github.com/warp/fee-ledger/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAdmissionRequest opens a new fee contract.
type CreateAdmissionRequest struct {
	TotalFees        string              `json:"total_fees" validate:"required"`
	DownPayment      string              `json:"down_payment"`
	InstallmentCount int                 `json:"installment_count" validate:"min=0"`
	StartDate        string              `json:"start_date" validate:"required"` // YYYY-MM-DD
	Policy           *factory.PolicyJSON `json:"schedule_policy,omitempty"`
}

// RecordPaymentRequest applies a confirmed payment to one installment.
type RecordPaymentRequest struct {
	InstallmentNumber int    `json:"installment_number" validate:"min=1"`
	PaidAmount        string `json:"paid_amount" validate:"required"`
	Method            string `json:"method" validate:"required"`
	ReceivedDate      string `json:"received_date,omitempty"` // YYYY-MM-DD, default today
	CarryForward      bool   `json:"carry_forward,omitempty"`
}

// DownPaymentRequest settles the contractual down payment.
type DownPaymentRequest struct {
	Method       string `json:"method" validate:"required"`
	ReceivedDate string `json:"received_date,omitempty"`
}

// ClearanceRequest resolves a cheque awaiting clearance. Installment
// number 0 addresses the down payment.
type ClearanceRequest struct {
	InstallmentNumber int  `json:"installment_number" validate:"min=0"`
	Cleared           bool `json:"cleared"`
}

// RedivideRequest replaces the outstanding tail with a fresh division.
type RedivideRequest struct {
	NewCount int `json:"new_count" validate:"min=1"`
}

// CorrectRequest is the privileged totals override. The actor's privilege
// is asserted via the X-Actor-Role header, not the body.
type CorrectRequest struct {
	NewTotalFees        string `json:"new_total_fees" validate:"required"`
	NewTotalPaid        string `json:"new_total_paid" validate:"required"`
	NewInstallmentCount int    `json:"new_installment_count" validate:"min=0"`
}

// MarkOverdueRequest triggers the overdue sweep. AsOf defaults to now.
type MarkOverdueRequest struct {
	AsOf string `json:"as_of,omitempty"` // YYYY-MM-DD
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// InstallmentDTO is one schedule line in API responses.
type InstallmentDTO struct {
	Number     int    `json:"number"`
	DueDate    string `json:"due_date"`
	Amount     string `json:"amount"`
	PaidAmount string `json:"paid_amount"`
	PaidDate   string `json:"paid_date,omitempty"`
	Status     string `json:"status"`
	Method     string `json:"method,omitempty"`
	Remark     string `json:"remark,omitempty"` // derived from lineage
}

// DownPaymentDTO is the down payment slot in API responses.
type DownPaymentDTO struct {
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	PaidAmount string `json:"paid_amount"`
	PaidDate   string `json:"paid_date,omitempty"`
	Method     string `json:"method,omitempty"`
}

// AdmissionDTO is the admission read model.
type AdmissionDTO struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	TotalFees   string         `json:"total_fees"`
	DownPayment DownPaymentDTO `json:"down_payment"`

	NumberOfInstallments int    `json:"number_of_installments"`
	InstallmentAmount    string `json:"installment_amount"`
	// Nominal share rounded up to a whole unit, for display only.
	DisplayInstallmentAmount string `json:"display_installment_amount"`

	Installments []InstallmentDTO `json:"payment_breakdown"`

	TotalPaid     string `json:"total_paid_amount"`
	Remaining     string `json:"remaining_amount"`
	PaymentStatus string `json:"payment_status"`

	CarryForwardBalance   string `json:"carry_forward_balance"`
	MarkedForCarryForward bool   `json:"marked_for_carry_forward"`

	AuditRemarks []AuditRemarkDTO `json:"audit_remarks,omitempty"`

	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AuditRemarkDTO is an admission-level correction note.
type AuditRemarkDTO struct {
	At    string `json:"at"`
	Actor string `json:"actor"`
	Note  string `json:"note"`
}

// PropagationStepDTO records one place a settlement diff landed.
type PropagationStepDTO struct {
	Target int    `json:"target"`
	Delta  string `json:"delta"`
	Kind   string `json:"kind"`
}

// PaymentEventDTO reports the reconciliation outcome of one payment.
type PaymentEventDTO struct {
	InstallmentNumber int    `json:"installment_number"`
	Due               string `json:"due"`
	Paid              string `json:"paid"`
	Diff              string `json:"diff"`
	Status            string `json:"status"`
	Appended          bool   `json:"appended,omitempty"`

	Steps             []PropagationStepDTO `json:"steps,omitempty"`
	CarryForwardDelta string               `json:"carry_forward_delta"`
}

// PaymentResponse wraps the updated admission together with the event.
type PaymentResponse struct {
	Admission AdmissionDTO    `json:"admission"`
	Event     PaymentEventDTO `json:"event"`
}

// AuditEntryDTO is one append-only audit record.
type AuditEntryDTO struct {
	ID      string         `json:"id"`
	At      string         `json:"at"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

// MarkOverdueResponse reports the sweep outcome.
type MarkOverdueResponse struct {
	Flipped int    `json:"flipped"`
	AsOf    string `json:"as_of"`
}

// ErrorResponse is the structured JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toAdmissionDTO(adm *ledger.Admission) AdmissionDTO {
	dto := AdmissionDTO{
		ID:                       string(adm.ID),
		Status:                   string(adm.Status),
		TotalFees:                adm.TotalFees.String(),
		DownPayment:              toDownPaymentDTO(adm.DownPayment),
		NumberOfInstallments:     adm.NumberOfInstallments,
		InstallmentAmount:        adm.InstallmentAmount.String(),
		DisplayInstallmentAmount: adm.InstallmentAmount.CeilToWhole().String(),
		TotalPaid:                adm.TotalPaid.String(),
		Remaining:                adm.Remaining.String(),
		PaymentStatus:            string(adm.PaymentStatus),
		CarryForwardBalance:      adm.CarryForwardBalance.String(),
		MarkedForCarryForward:    adm.MarkedForCarryForward,
		Version:                  adm.Version,
		CreatedAt:                adm.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                adm.UpdatedAt.Format(time.RFC3339),
	}
	dto.Installments = make([]InstallmentDTO, len(adm.Installments))
	for i, inst := range adm.Installments {
		dto.Installments[i] = toInstallmentDTO(inst)
	}
	for _, remark := range adm.Audit {
		dto.AuditRemarks = append(dto.AuditRemarks, AuditRemarkDTO{
			At:    remark.At.Format(time.RFC3339),
			Actor: remark.Actor,
			Note:  remark.Note,
		})
	}
	return dto
}

func toInstallmentDTO(inst ledger.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		Number:     int(inst.Number),
		DueDate:    inst.DueDate.Format("2006-01-02"),
		Amount:     inst.Amount.String(),
		PaidAmount: inst.PaidAmount.String(),
		Status:     string(inst.Status),
		Method:     string(inst.Method),
		Remark:     inst.Lineage.Remark(),
	}
	if inst.PaidDate != nil {
		dto.PaidDate = inst.PaidDate.Format("2006-01-02")
	}
	return dto
}

func toDownPaymentDTO(dp ledger.DownPayment) DownPaymentDTO {
	dto := DownPaymentDTO{
		Amount:     dp.Amount.String(),
		Status:     string(dp.Status),
		PaidAmount: dp.PaidAmount.String(),
		Method:     string(dp.Method),
	}
	if dp.PaidDate != nil {
		dto.PaidDate = dp.PaidDate.Format("2006-01-02")
	}
	return dto
}

func toPaymentEventDTO(e *ledger.PaymentEvent) PaymentEventDTO {
	dto := PaymentEventDTO{
		InstallmentNumber: int(e.Installment),
		Due:               e.Due.String(),
		Paid:              e.Paid.String(),
		Diff:              e.Diff.String(),
		Status:            string(e.Status),
		Appended:          e.Appended,
		CarryForwardDelta: e.CarryForwardDelta.String(),
	}
	for _, step := range e.Steps {
		dto.Steps = append(dto.Steps, PropagationStepDTO{
			Target: int(step.Target),
			Delta:  step.Delta.String(),
			Kind:   string(step.Kind),
		})
	}
	return dto
}

func toAuditEntryDTO(e ledger.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:      e.ID,
		At:      e.At.Format(time.RFC3339),
		Actor:   e.Actor,
		Action:  string(e.Action),
		Payload: e.Payload,
	}
}
