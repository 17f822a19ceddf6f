/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. Handlers map these onto HTTP statuses;
  domain code wraps the sentinels with structured context.

ERROR CATEGORIES:
  1. Sequencing violations - out-of-order or repeated settlement attempts.
     Recoverable: the request is rejected, no state changes.
  2. Invalid arguments - negative amounts, bad counts. Rejected before any
     mutation.
  3. Ledger inconsistency - a post-mutation invariant check failed. Fatal
     for the request: the mutated copy is discarded, nothing is persisted,
     and the error is never silently corrected.
  4. Authorization - the correction path requires an asserted privilege.
  5. Concurrency - the optimistic version check failed. The engine never
     retries financial mutations automatically; the caller decides.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrSequencingViolation is returned for out-of-order settlement:
	// paying a later installment while an earlier one is outstanding, or
	// re-paying a settled slot.
	ErrSequencingViolation = errors.New("sequencing violation")

	// ErrInvalidArgument is returned for malformed input (negative amount,
	// zero/negative count) before any mutation happens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLedgerInconsistency is returned when a post-mutation invariant
	// check fails. The mutation must not be persisted.
	ErrLedgerInconsistency = errors.New("ledger inconsistency")

	// ErrAuthorizationRequired is returned when the correction path is
	// invoked without the required privilege assertion.
	ErrAuthorizationRequired = errors.New("authorization required")

	// ErrAdmissionNotFound is returned when the referenced admission does
	// not exist.
	ErrAdmissionNotFound = errors.New("admission not found")

	// ErrConcurrentModification is returned when the optimistic version
	// check detects a conflicting mutation on the same admission.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - carry enough detail for a user-facing message
// =============================================================================

// SequencingError describes which installment violated the settlement order.
type SequencingError struct {
	Admission   AdmissionID
	Installment InstallmentNumber
	Reason      string
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("sequencing violation on installment %d of admission %s: %s",
		e.Installment, e.Admission, e.Reason)
}

func (e *SequencingError) Unwrap() error { return ErrSequencingViolation }

// InvalidArgumentError names the offending field.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// InconsistencyError names the invariant that failed and where.
type InconsistencyError struct {
	Admission   AdmissionID
	Check       string // e.g. "conservation", "numbering", "remaining"
	Installment InstallmentNumber
	Detail      string
}

func (e *InconsistencyError) Error() string {
	if e.Installment != 0 {
		return fmt.Sprintf("ledger inconsistency (%s) on admission %s installment %d: %s",
			e.Check, e.Admission, e.Installment, e.Detail)
	}
	return fmt.Sprintf("ledger inconsistency (%s) on admission %s: %s", e.Check, e.Admission, e.Detail)
}

func (e *InconsistencyError) Unwrap() error { return ErrLedgerInconsistency }

// AuthorizationError records who attempted the privileged call.
type AuthorizationError struct {
	Actor string
	Role  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization required: actor %q with role %q may not correct records", e.Actor, e.Role)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorizationRequired }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the caller's fault and the
// request should be rejected without alarm.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSequencingViolation) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrAuthorizationRequired)
}

// IsNotFound reports whether the error indicates a missing admission.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAdmissionNotFound)
}

// IsRetryable reports whether the caller may retry. Only version conflicts
// qualify; financial mutations are never retried inside the engine.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
