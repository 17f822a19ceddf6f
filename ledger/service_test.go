package ledger_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/ledger/store"
)

func newTestService(t *testing.T) (*ledger.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return ledger.NewService(mem, mem, log), mem
}

func createTestSchedule(t *testing.T, svc *ledger.Service) *ledger.Admission {
	t.Helper()
	adm, err := svc.CreateSchedule(context.Background(), ledger.CreateScheduleInput{
		TotalFees:        ledger.NewMoney(10000),
		DownPayment:      ledger.NewMoney(2000),
		InstallmentCount: 3,
		StartDate:        start2025(),
		Policy:           ledger.MonthlyPolicy(),
	})
	require.NoError(t, err)
	return adm
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	adm := createTestSchedule(t, svc)
	require.NotEmpty(t, adm.ID)

	loaded, err := svc.Get(ctx, adm.ID)
	require.NoError(t, err)
	assert.Equal(t, adm.TotalFees, loaded.TotalFees)
	assert.Len(t, loaded.Installments, 3)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrAdmissionNotFound)
}

func TestService_RecordPayment_PersistsAndBumpsVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	adm := createTestSchedule(t, svc)
	_, err := svc.PayDownPayment(ctx, adm.ID, ledger.MethodCash, start2025())
	require.NoError(t, err)

	updated, event, err := svc.RecordPayment(ctx, adm.ID, 1,
		ledger.NewMoney(2000), ledger.MethodCash, start2025(), false)
	require.NoError(t, err)

	assert.Equal(t, ledger.NewMoney(667), event.Diff)
	assert.Equal(t, int64(2), updated.Version, "each committed mutation bumps the version")

	// The persisted copy matches what the caller got back.
	loaded, err := svc.Get(ctx, adm.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, loaded.Version)
	assert.Equal(t, ledger.NewMoney(3334), loaded.Installments[1].Amount)
}

func TestService_RejectedMutation_PersistsNothing(t *testing.T) {
	// GIVEN: an out-of-order payment
	// THEN: the store still holds the previous state

	svc, _ := newTestService(t)
	ctx := context.Background()
	adm := createTestSchedule(t, svc)

	_, _, err := svc.RecordPayment(ctx, adm.ID, 2,
		ledger.NewMoney(2667), ledger.MethodCash, start2025(), false)
	assert.ErrorIs(t, err, ledger.ErrSequencingViolation)

	loaded, err := svc.Get(ctx, adm.ID)
	require.NoError(t, err)
	assert.Equal(t, adm.Version, loaded.Version)
	assert.Equal(t, ledger.InstallmentPending, loaded.Installments[1].Status)
}

func TestService_VersionConflict_Surfaces(t *testing.T) {
	// GIVEN: a writer holding a stale version
	// WHEN: it saves after a concurrent commit
	// THEN: the conflict surfaces; the engine never auto-retries

	svc, mem := newTestService(t)
	ctx := context.Background()
	adm := createTestSchedule(t, svc)

	stale, err := mem.Get(ctx, adm.ID)
	require.NoError(t, err)

	// Concurrent commit bumps the stored version.
	_, err = svc.PayDownPayment(ctx, adm.ID, ledger.MethodCash, start2025())
	require.NoError(t, err)

	err = mem.Save(ctx, stale, stale.Version)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
	assert.True(t, ledger.IsRetryable(err))
}

func TestService_Correct_WritesAuditTrail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	adm := createTestSchedule(t, svc)

	cap := ledger.Capability{Actor: "ops-admin", Role: ledger.RoleSuperAdmin}
	updated, err := svc.Correct(ctx, adm.ID, cap,
		ledger.NewMoney(12000), ledger.NewMoney(0), 4)
	require.NoError(t, err)
	assert.Equal(t, ledger.NewMoney(12000), updated.TotalFees)

	entries, err := svc.AuditTrail(ctx, adm.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, ledger.AuditCorrection, entry.Action)
	assert.Equal(t, "ops-admin", entry.Actor)
	assert.Equal(t, "100.00", entry.Payload["total_fees_before"])
	assert.Equal(t, "120.00", entry.Payload["total_fees_after"])
}

func TestService_Correct_Unauthorized_NoAuditEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	adm := createTestSchedule(t, svc)

	_, err := svc.Correct(ctx, adm.ID, ledger.Capability{Actor: "clerk", Role: "clerk"},
		ledger.NewMoney(12000), ledger.NewMoney(0), 4)
	assert.ErrorIs(t, err, ledger.ErrAuthorizationRequired)

	entries, err := svc.AuditTrail(ctx, adm.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_MarkOverdueAll_SweepsEveryAdmission(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	createTestSchedule(t, svc)
	createTestSchedule(t, svc)

	asOf := start2025().AddDate(0, 0, 1) // past the first due date only
	flipped, err := svc.MarkOverdueAll(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, flipped)

	admissions, err := svc.List(ctx)
	require.NoError(t, err)
	for _, adm := range admissions {
		assert.Equal(t, ledger.InstallmentOverdue, adm.Installments[0].Status)
		assert.Equal(t, ledger.InstallmentPending, adm.Installments[1].Status)
	}
}

func TestService_Redivide(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	adm := createTestSchedule(t, svc)

	updated, err := svc.Redivide(ctx, adm.ID, 6)
	require.NoError(t, err)
	assert.Len(t, updated.Installments, 6)

	var sum ledger.Money
	for _, inst := range updated.Installments {
		sum = sum.Add(inst.Amount)
	}
	assert.Equal(t, ledger.NewMoney(8000), sum)
}

func TestMemoryStore_GetReturnsIsolatedCopies(t *testing.T) {
	// Mutating what Get returned must not leak into the store.

	svc, mem := newTestService(t)
	ctx := context.Background()
	adm := createTestSchedule(t, svc)

	copy1, err := mem.Get(ctx, adm.ID)
	require.NoError(t, err)
	copy1.Installments[0].Amount = ledger.NewMoney(1)

	copy2, err := mem.Get(ctx, adm.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.NewMoney(2667), copy2.Installments[0].Amount)
}
