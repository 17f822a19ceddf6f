// Package store provides AdmissionStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/fee-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps admission aggregates in a map. Get and List return clones,
// so callers never share mutable state with the store. Save enforces the
// optimistic version check under the store lock, which gives the
// at-most-one-mutation-per-admission guarantee.
type Memory struct {
	mu         sync.RWMutex
	admissions map[ledger.AdmissionID]*ledger.Admission
	order      []ledger.AdmissionID
	audit      map[ledger.AdmissionID][]ledger.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		admissions: make(map[ledger.AdmissionID]*ledger.Admission),
		audit:      make(map[ledger.AdmissionID][]ledger.AuditEntry),
	}
}

func (m *Memory) Create(_ context.Context, adm *ledger.Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.admissions[adm.ID]; exists {
		return &ledger.InvalidArgumentError{Field: "id", Reason: "admission already exists"}
	}
	m.admissions[adm.ID] = adm.Clone()
	m.order = append(m.order, adm.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id ledger.AdmissionID) (*ledger.Admission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	adm, ok := m.admissions[id]
	if !ok {
		return nil, ledger.ErrAdmissionNotFound
	}
	return adm.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]*ledger.Admission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ledger.Admission, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.admissions[id].Clone())
	}
	return result, nil
}

func (m *Memory) Save(_ context.Context, adm *ledger.Admission, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.admissions[adm.ID]
	if !ok {
		return ledger.ErrAdmissionNotFound
	}
	if current.Version != expectedVersion {
		return ledger.ErrConcurrentModification
	}
	saved := adm.Clone()
	saved.Version = expectedVersion + 1
	m.admissions[adm.ID] = saved
	return nil
}

// =============================================================================
// AUDIT LOG - append-only
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry ledger.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit[entry.Admission] = append(m.audit[entry.Admission], entry)
	return nil
}

func (m *Memory) AuditByAdmission(_ context.Context, id ledger.AdmissionID) ([]ledger.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]ledger.AuditEntry, len(m.audit[id]))
	copy(entries, m.audit[id])
	sort.Slice(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
	return entries, nil
}
