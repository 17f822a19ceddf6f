/*
handlers_test.go - HTTP handler tests

Tests drive the full router over an in-memory store: request decoding,
domain delegation, error-to-status mapping, and the read model's
2-decimal string amounts.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mem := store.NewMemory()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	svc := ledger.NewService(mem, mem, log)
	return NewRouter(NewHandler(svc, log))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createAdmission(t *testing.T, router http.Handler) AdmissionDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/admissions", CreateAdmissionRequest{
		TotalFees:        "100.00",
		DownPayment:      "20.00",
		InstallmentCount: 3,
		StartDate:        "2025-01-15",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dto AdmissionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto
}

func payDownPayment(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/admissions/%s/down-payment", id),
		DownPaymentRequest{Method: "CASH", ReceivedDate: "2025-01-15"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// CREATE + READ MODEL
// =============================================================================

func TestCreateAdmission_ReturnsDividedSchedule(t *testing.T) {
	// GIVEN: 100.00 total, 20.00 down, 3 installments
	// THEN: the read model shows the front-loaded division as 2-decimal
	//       strings with contiguous numbering

	router := newTestRouter(t)
	dto := createAdmission(t, router)

	assert.Equal(t, "100.00", dto.TotalFees)
	assert.Equal(t, "20.00", dto.DownPayment.Amount)
	assert.Equal(t, "PENDING", dto.DownPayment.Status)
	require.Len(t, dto.Installments, 3)

	assert.Equal(t, "26.67", dto.Installments[0].Amount)
	assert.Equal(t, "26.67", dto.Installments[1].Amount)
	assert.Equal(t, "26.66", dto.Installments[2].Amount)
	assert.Equal(t, 1, dto.Installments[0].Number)
	assert.Equal(t, "2025-01-15", dto.Installments[0].DueDate)
	assert.Equal(t, "2025-02-15", dto.Installments[1].DueDate)

	assert.Equal(t, "PENDING", dto.PaymentStatus)
	assert.Equal(t, "100.00", dto.Remaining)
	assert.Equal(t, "27.00", dto.DisplayInstallmentAmount, "display ceiling, never stored")
}

func TestCreateAdmission_BadInput(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/admissions", CreateAdmissionRequest{
		TotalFees: "not-money", InstallmentCount: 3, StartDate: "2025-01-15",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_argument", errResp.Code)

	// Missing required fields trip the validator.
	rec = doJSON(t, router, http.MethodPost, "/api/admissions", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAdmission_NotFound(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/admissions/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "not_found", errResp.Code)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_ShortfallPropagates(t *testing.T) {
	// GIVEN: installment 1 due 26.67
	// WHEN: 20.00 arrives
	// THEN: the response carries both the event accounting and the updated
	//       schedule with the arrears remark

	router := newTestRouter(t)
	created := createAdmission(t, router)
	payDownPayment(t, router, created.ID)

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/admissions/%s/payments", created.ID),
		RecordPaymentRequest{
			InstallmentNumber: 1,
			PaidAmount:        "20.00",
			Method:            "UPI",
			ReceivedDate:      "2025-01-20",
		}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "6.67", resp.Event.Diff)
	require.Len(t, resp.Event.Steps, 1)
	assert.Equal(t, 2, resp.Event.Steps[0].Target)
	assert.Equal(t, "6.67", resp.Event.Steps[0].Delta)

	assert.Equal(t, "PAID", resp.Admission.Installments[0].Status)
	assert.Equal(t, "33.34", resp.Admission.Installments[1].Amount)
	assert.Contains(t, resp.Admission.Installments[1].Remark, "arrears inherited from installment 1")
}

func TestRecordPayment_OutOfOrder_Conflict(t *testing.T) {
	router := newTestRouter(t)
	created := createAdmission(t, router)
	payDownPayment(t, router, created.ID)

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/admissions/%s/payments", created.ID),
		RecordPaymentRequest{InstallmentNumber: 2, PaidAmount: "26.67", Method: "CASH"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "sequencing_violation", errResp.Code)
}

func TestClearance_ChequeLifecycle(t *testing.T) {
	// Cheque payment -> PENDING_CLEARANCE -> cleared -> PAID.

	router := newTestRouter(t)
	created := createAdmission(t, router)
	payDownPayment(t, router, created.ID)

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/admissions/%s/payments", created.ID),
		RecordPaymentRequest{InstallmentNumber: 1, PaidAmount: "26.67", Method: "CHEQUE"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING_CLEARANCE", resp.Admission.Installments[0].Status)

	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/admissions/%s/clearance", created.ID),
		ClearanceRequest{InstallmentNumber: 1, Cleared: true}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto AdmissionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "PAID", dto.Installments[0].Status)
}

// =============================================================================
// REDIVIDE + CORRECT
// =============================================================================

func TestRedivide_ReshapesTail(t *testing.T) {
	router := newTestRouter(t)
	created := createAdmission(t, router)

	rec := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/admissions/%s/redivide", created.ID),
		RedivideRequest{NewCount: 5}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto AdmissionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Len(t, dto.Installments, 5)
	assert.Equal(t, "16.00", dto.Installments[0].Amount)
}

func TestCorrect_RequiresRoleHeader(t *testing.T) {
	// GIVEN: a correction without the superadmin role header
	// THEN: 403 with the authorization code; with the header it succeeds
	//       and the audit trail records the actor

	router := newTestRouter(t)
	created := createAdmission(t, router)

	body := CorrectRequest{NewTotalFees: "120.00", NewTotalPaid: "0.00", NewInstallmentCount: 4}
	path := fmt.Sprintf("/api/admissions/%s/correct", created.ID)

	rec := doJSON(t, router, http.MethodPost, path, body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, path, body, map[string]string{
		"X-Actor":      "ops-admin",
		"X-Actor-Role": "superadmin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto AdmissionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "120.00", dto.TotalFees)
	require.Len(t, dto.AuditRemarks, 1)
	assert.Equal(t, "ops-admin", dto.AuditRemarks[0].Actor)

	// Audit trail endpoint shows the before/after payload.
	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/admissions/%s/audit", created.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []AuditEntryDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "correction", entries[0].Action)
	assert.Equal(t, "100.00", entries[0].Payload["total_fees_before"])
}

// =============================================================================
// ADMIN SWEEP
// =============================================================================

func TestMarkOverdue_Sweep(t *testing.T) {
	router := newTestRouter(t)
	createAdmission(t, router)
	createAdmission(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/admin/mark-overdue",
		MarkOverdueRequest{AsOf: "2025-01-16"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MarkOverdueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Flipped)
	assert.Equal(t, "2025-01-16", resp.AsOf)

	list := doJSON(t, router, http.MethodGet, "/api/admissions", nil, nil)
	require.Equal(t, http.StatusOK, list.Code)

	var dtos []AdmissionDTO
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &dtos))
	require.Len(t, dtos, 2)
	for _, dto := range dtos {
		assert.Equal(t, "OVERDUE", dto.Installments[0].Status)
	}
}
