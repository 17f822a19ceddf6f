/*
service.go - Engine facade over a store

PURPOSE:
  Service is what the HTTP layer (or any other caller) talks to. Each
  mutating operation follows the same shape:

    1. load the admission
    2. clone it and apply the domain mutation to the clone
    3. the mutation ends with Recompute, which validates the invariants
    4. persist the clone with an optimistic version check

  A validation failure or version conflict means nothing was written.
  Conflicts are surfaced, never retried here - retrying financial
  mutations risks double-application; the caller decides.
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service exposes the engine operations over persisted admissions.
type Service struct {
	store AdmissionStore
	audit AuditLog // may be nil when auditing is handled elsewhere
	log   *logrus.Logger
}

// NewService wires the engine to a store. audit may be nil.
func NewService(store AdmissionStore, audit AuditLog, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, audit: audit, log: log}
}

// CreateScheduleInput carries the enrollment workflow's one-time call.
type CreateScheduleInput struct {
	TotalFees        Money
	DownPayment      Money
	InstallmentCount int
	StartDate        time.Time
	Policy           SchedulePolicy
}

// CreateSchedule builds and persists a new admission with its initial
// division.
func (s *Service) CreateSchedule(ctx context.Context, in CreateScheduleInput) (*Admission, error) {
	adm, err := NewAdmission(in.TotalFees, in.DownPayment, in.InstallmentCount, in.StartDate, in.Policy, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, adm); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"admission":    adm.ID,
		"total_fees":   adm.TotalFees,
		"down_payment": adm.DownPayment.Amount,
		"installments": adm.NumberOfInstallments,
	}).Info("admission schedule created")
	return adm, nil
}

// Get returns the admission read model.
func (s *Service) Get(ctx context.Context, id AdmissionID) (*Admission, error) {
	return s.store.Get(ctx, id)
}

// List returns all admissions for reporting/export.
func (s *Service) List(ctx context.Context) ([]*Admission, error) {
	return s.store.List(ctx)
}

// RecordPayment applies a confirmed payment against an installment.
func (s *Service) RecordPayment(ctx context.Context, id AdmissionID, n InstallmentNumber, paid Money, method PaymentMethod, receivedAt time.Time, carryForward bool) (*Admission, *PaymentEvent, error) {
	var event *PaymentEvent
	adm, err := s.mutate(ctx, id, func(a *Admission) error {
		var payErr error
		event, payErr = Pay(a, n, paid, method, receivedAt, carryForward)
		return payErr
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.WithFields(logrus.Fields{
		"admission":   id,
		"installment": n,
		"paid":        paid,
		"method":      method,
		"diff":        event.Diff,
	}).Info("payment reconciled")
	return adm, event, nil
}

// PayDownPayment settles the contractual down payment.
func (s *Service) PayDownPayment(ctx context.Context, id AdmissionID, method PaymentMethod, receivedAt time.Time) (*Admission, error) {
	return s.mutate(ctx, id, func(a *Admission) error {
		return PayDownPayment(a, method, receivedAt)
	})
}

// ConfirmClearance resolves a cheque that was awaiting clearance.
func (s *Service) ConfirmClearance(ctx context.Context, id AdmissionID, n InstallmentNumber, cleared bool) (*Admission, error) {
	adm, err := s.mutate(ctx, id, func(a *Admission) error {
		return ConfirmClearance(a, n, cleared)
	})
	if err != nil {
		return nil, err
	}
	if !cleared {
		s.log.WithFields(logrus.Fields{"admission": id, "installment": n}).Warn("cheque bounced; settlement unwound")
	}
	return adm, nil
}

// Redivide replaces the outstanding tail with newCount fresh installments.
func (s *Service) Redivide(ctx context.Context, id AdmissionID, newCount int) (*Admission, error) {
	return s.mutate(ctx, id, func(a *Admission) error {
		return Redivide(a, newCount, time.Now().UTC())
	})
}

// Correct applies a privileged override and writes the audit trail.
func (s *Service) Correct(ctx context.Context, id AdmissionID, cap Capability, newTotalFees, newTotalPaid Money, newCount int) (*Admission, error) {
	now := time.Now().UTC()
	var result *CorrectionResult
	adm, err := s.mutate(ctx, id, func(a *Admission) error {
		var corrErr error
		result, corrErr = Correct(a, cap, newTotalFees, newTotalPaid, newCount, now)
		return corrErr
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"admission":  id,
		"actor":      cap.Actor,
		"fees_from":  result.TotalFeesBefore,
		"fees_to":    result.TotalFeesAfter,
		"paid_from":  result.TotalPaidBefore,
		"paid_to":    result.TotalPaidAfter,
		"count_from": result.CountBefore,
		"count_to":   result.CountAfter,
	}).Warn("manual correction applied")

	if s.audit != nil {
		entry := AuditEntry{
			ID:        uuid.NewString(),
			Admission: id,
			At:        now,
			Actor:     cap.Actor,
			Action:    AuditCorrection,
			Payload: map[string]any{
				"total_fees_before": result.TotalFeesBefore.String(),
				"total_fees_after":  result.TotalFeesAfter.String(),
				"total_paid_before": result.TotalPaidBefore.String(),
				"total_paid_after":  result.TotalPaidAfter.String(),
				"count_before":      result.CountBefore,
				"count_after":       result.CountAfter,
				"carry_before":      result.CarryBefore.String(),
			},
		}
		if err := s.audit.AppendAudit(ctx, entry); err != nil {
			// The correction is already committed; losing the audit row is
			// worth a loud log, not a rollback of a financial mutation.
			s.log.WithError(err).WithField("admission", id).Error("failed to append audit entry")
		}
	}
	return adm, nil
}

// AuditTrail returns the correction history for an admission.
func (s *Service) AuditTrail(ctx context.Context, id AdmissionID) ([]AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.AuditByAdmission(ctx, id)
}

// MarkOverdueAll sweeps every admission, flipping dated pending slots to
// OVERDUE. Invoked by an external scheduler through the API; the engine
// runs no background jobs of its own.
func (s *Service) MarkOverdueAll(ctx context.Context, asOf time.Time) (int, error) {
	admissions, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, adm := range admissions {
		work := adm.Clone()
		flipped := MarkOverdue(work, asOf)
		if flipped == 0 {
			continue
		}
		if err := Recompute(work); err != nil {
			return total, err
		}
		work.UpdatedAt = time.Now().UTC()
		if err := s.store.Save(ctx, work, adm.Version); err != nil {
			return total, err
		}
		total += flipped
	}
	return total, nil
}

// mutate runs fn against a clone and persists it under the version check.
func (s *Service) mutate(ctx context.Context, id AdmissionID, fn func(*Admission) error) (*Admission, error) {
	adm, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	work := adm.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, work, adm.Version); err != nil {
		return nil, err
	}
	work.Version = adm.Version + 1
	return work, nil
}
