/*
store.go - Persistence and audit interfaces

PURPOSE:
  Defines the boundary between the engine and the database. The store
  persists whole Admission aggregates; the engine mutates an in-memory
  copy and saves it back atomically with an optimistic version check.

CONCURRENCY CONTRACT:
  At most one mutating operation per admission may commit at a time.
  Save takes the version the caller read; if the stored version differs,
  the save fails with ErrConcurrentModification and nothing is written.
  Operations on different admissions are independent.

AUDIT LOG:
  Every use of the correction path is recorded append-only with full
  before/after values. The audit log has no update or delete.

IMPLEMENTATIONS:
  - ledger/store:  in-memory, for tests and development
  - store/sqlite:  production SQLite (WAL), version CAS in SQL
*/
package ledger

import (
	"context"
	"time"
)

// AdmissionStore persists admission aggregates.
type AdmissionStore interface {
	// Create persists a new admission. Fails if the ID already exists.
	Create(ctx context.Context, adm *Admission) error

	// Get returns a copy of the admission, or ErrAdmissionNotFound.
	Get(ctx context.Context, id AdmissionID) (*Admission, error)

	// List returns all admissions ordered by creation time.
	List(ctx context.Context) ([]*Admission, error)

	// Save replaces the stored aggregate if its version still equals
	// expectedVersion, bumping the version by one. Returns
	// ErrConcurrentModification on a version mismatch.
	Save(ctx context.Context, adm *Admission, expectedVersion int64) error
}

// =============================================================================
// AUDIT LOG - append-only record of privileged overrides
// =============================================================================

// AuditAction names what a log entry records.
type AuditAction string

const (
	AuditCorrection AuditAction = "correction"
)

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	ID        string         `json:"id"`
	Admission AdmissionID    `json:"admission_id"`
	At        time.Time      `json:"at"`
	Actor     string         `json:"actor"`
	Action    AuditAction    `json:"action"`
	Payload   map[string]any `json:"payload"` // action-specific before/after data
}

// AuditLog stores audit entries. Append-only: no update, no delete.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	AuditByAdmission(ctx context.Context, id AdmissionID) ([]AuditEntry, error)
}
