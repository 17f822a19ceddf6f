/*
handlers.go - HTTP API handlers for the fee ledger engine

PURPOSE:
  Exposes the installment ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Admissions:
    GET    /api/admissions                    List all admissions
    POST   /api/admissions                    Create admission + schedule
    GET    /api/admissions/{id}               Get admission read model
    POST   /api/admissions/{id}/payments      Record installment payment
    POST   /api/admissions/{id}/down-payment  Pay the down payment
    POST   /api/admissions/{id}/clearance     Confirm/bounce a cheque
    POST   /api/admissions/{id}/redivide      Re-divide outstanding tail
    POST   /api/admissions/{id}/correct       Privileged totals override
    GET    /api/admissions/{id}/audit         Correction audit trail

  Admin:
    POST   /api/admin/mark-overdue            Overdue sweep (external cron)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator)
  3. Call domain logic (ledger.Service)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Domain errors map to HTTP status by sentinel:
  - 400: invalid argument
  - 403: authorization required (correction without superadmin role)
  - 404: admission not found
  - 409: sequencing violation, concurrent modification
  - 500: ledger inconsistency, everything else

AUTHORIZATION:
  Authentication is an external concern (a gateway in front of this
  service). The correction endpoint maps the X-Actor-Role and X-Actor
  headers onto a ledger.Capability; the engine checks the assertion.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/warp/fee-ledger/factory"
	"github.com/warp/fee-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Factory *factory.PolicyFactory
	Log     *logrus.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler over the engine service.
func NewHandler(svc *ledger.Service, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Service:  svc,
		Factory:  factory.NewPolicyFactory(),
		Log:      log,
		validate: validator.New(),
	}
}

// =============================================================================
// ADMISSION HANDLERS
// =============================================================================

// ListAdmissions returns all admissions.
func (h *Handler) ListAdmissions(w http.ResponseWriter, r *http.Request) {
	admissions, err := h.Service.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]AdmissionDTO, len(admissions))
	for i, adm := range admissions {
		dtos[i] = toAdmissionDTO(adm)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAdmission returns a single admission read model.
func (h *Handler) GetAdmission(w http.ResponseWriter, r *http.Request) {
	id := ledger.AdmissionID(chi.URLParam(r, "id"))
	adm, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdmissionDTO(adm))
}

// CreateAdmission opens a new fee contract with its initial division.
func (h *Handler) CreateAdmission(w http.ResponseWriter, r *http.Request) {
	var req CreateAdmissionRequest
	if !h.decode(w, r, &req) {
		return
	}

	totalFees, err := ledger.ParseMoney(req.TotalFees)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_fees", "invalid_argument", err)
		return
	}
	var downPayment ledger.Money
	if req.DownPayment != "" {
		if downPayment, err = ledger.ParseMoney(req.DownPayment); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid down_payment", "invalid_argument", err)
			return
		}
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", "invalid_argument", err)
		return
	}

	policy := ledger.MonthlyPolicy()
	if req.Policy != nil {
		if policy, err = h.Factory.FromJSON(*req.Policy); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	adm, err := h.Service.CreateSchedule(r.Context(), ledger.CreateScheduleInput{
		TotalFees:        totalFees,
		DownPayment:      downPayment,
		InstallmentCount: req.InstallmentCount,
		StartDate:        startDate,
		Policy:           policy,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdmissionDTO(adm))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment applies a confirmed payment against an installment.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.AdmissionID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	paid, err := ledger.ParseMoney(req.PaidAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_amount", "invalid_argument", err)
		return
	}
	receivedAt, ok := h.parseDateOrNow(w, req.ReceivedDate)
	if !ok {
		return
	}

	adm, event, err := h.Service.RecordPayment(r.Context(), id,
		ledger.InstallmentNumber(req.InstallmentNumber), paid,
		ledger.PaymentMethod(req.Method), receivedAt, req.CarryForward)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentResponse{
		Admission: toAdmissionDTO(adm),
		Event:     toPaymentEventDTO(event),
	})
}

// PayDownPayment settles the contractual down payment in full.
func (h *Handler) PayDownPayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.AdmissionID(chi.URLParam(r, "id"))

	var req DownPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	receivedAt, ok := h.parseDateOrNow(w, req.ReceivedDate)
	if !ok {
		return
	}

	adm, err := h.Service.PayDownPayment(r.Context(), id, ledger.PaymentMethod(req.Method), receivedAt)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdmissionDTO(adm))
}

// ConfirmClearance resolves a cheque that was awaiting clearance.
func (h *Handler) ConfirmClearance(w http.ResponseWriter, r *http.Request) {
	id := ledger.AdmissionID(chi.URLParam(r, "id"))

	var req ClearanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	adm, err := h.Service.ConfirmClearance(r.Context(), id,
		ledger.InstallmentNumber(req.InstallmentNumber), req.Cleared)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdmissionDTO(adm))
}

// =============================================================================
// SCHEDULE CHANGE HANDLERS
// =============================================================================

// Redivide replaces the outstanding tail with a fresh division.
func (h *Handler) Redivide(w http.ResponseWriter, r *http.Request) {
	id := ledger.AdmissionID(chi.URLParam(r, "id"))

	var req RedivideRequest
	if !h.decode(w, r, &req) {
		return
	}

	adm, err := h.Service.Redivide(r.Context(), id, req.NewCount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdmissionDTO(adm))
}

// Correct applies a privileged totals override. The caller's privilege
// arrives in the X-Actor-Role header; the engine verifies the assertion.
func (h *Handler) Correct(w http.ResponseWriter, r *http.Request) {
	id := ledger.AdmissionID(chi.URLParam(r, "id"))

	var req CorrectRequest
	if !h.decode(w, r, &req) {
		return
	}

	newTotalFees, err := ledger.ParseMoney(req.NewTotalFees)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new_total_fees", "invalid_argument", err)
		return
	}
	newTotalPaid, err := ledger.ParseMoney(req.NewTotalPaid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new_total_paid", "invalid_argument", err)
		return
	}

	cap := ledger.Capability{
		Actor: r.Header.Get("X-Actor"),
		Role:  r.Header.Get("X-Actor-Role"),
	}
	if cap.Actor == "" {
		cap.Actor = "unknown"
	}

	adm, err := h.Service.Correct(r.Context(), id, cap, newTotalFees, newTotalPaid, req.NewInstallmentCount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdmissionDTO(adm))
}

// GetAudit returns the correction audit trail.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id := ledger.AdmissionID(chi.URLParam(r, "id"))

	entries, err := h.Service.AuditTrail(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// MarkOverdue runs the overdue sweep. Intended to be hit by an external
// scheduler - the engine runs no background jobs of its own.
func (h *Handler) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	var req MarkOverdueRequest
	// Body optional for this endpoint.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		t, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", "invalid_argument", err)
			return
		}
		asOf = t
	}

	flipped, err := h.Service.MarkOverdueAll(r.Context(), asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkOverdueResponse{
		Flipped: flipped,
		AsOf:    asOf.Format("2006-01-02"),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON request body. Writes the error
// response and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_argument", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", "invalid_argument", err)
		return false
	}
	return true
}

func (h *Handler) parseDateOrNow(w http.ResponseWriter, date string) (time.Time, bool) {
	if date == "" {
		return time.Now().UTC(), true
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid received_date format (use YYYY-MM-DD)", "invalid_argument", err)
		return time.Time{}, false
	}
	return t, true
}

// writeDomainError maps a ledger error onto an HTTP status and code.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "Invalid request", "invalid_argument", err)
	case errors.Is(err, ledger.ErrSequencingViolation):
		writeError(w, http.StatusConflict, "Sequencing violation", "sequencing_violation", err)
	case errors.Is(err, ledger.ErrAuthorizationRequired):
		writeError(w, http.StatusForbidden, "Authorization required", "authorization_required", err)
	case errors.Is(err, ledger.ErrAdmissionNotFound):
		writeError(w, http.StatusNotFound, "Admission not found", "not_found", err)
	case errors.Is(err, ledger.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "Concurrent modification, retry with fresh state", "conflict", err)
	case errors.Is(err, ledger.ErrLedgerInconsistency):
		h.Log.WithError(err).Error("ledger inconsistency surfaced at API")
		writeError(w, http.StatusInternalServerError, "Ledger inconsistency", "inconsistency", err)
	default:
		h.Log.WithError(err).Error("unhandled error at API")
		writeError(w, http.StatusInternalServerError, "Internal error", "internal", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
