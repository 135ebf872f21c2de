/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API layer, tests) classify errors with the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - Rejected edits; working state unchanged
  2. Persistence errors - Commit write failures; session preserved for retry
  3. Invariant errors - Engine bugs, loud in tests, never silently clamped

Allocation shortfalls are deliberately NOT errors: a refund that exceeds the
deductible funds still applies the part it can, and the allocator returns the
unresolved remainder as a value for the caller to surface as a warning.

SEE ALSO:
  - session.go: Wraps these errors with charge context
  - allocator.go: Returns shortfall remainders, never errors
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all rejected-edit errors.
	ErrValidation = errors.New("validation failed")

	// ErrChargeNotFound is returned when an operation references a charge
	// that is not in the working schedule.
	ErrChargeNotFound = errors.New("charge not found")

	// ErrTenancyNotFound is returned by stores when the tenancy does not exist.
	ErrTenancyNotFound = errors.New("tenancy not found")

	// ErrNoScheduleLoaded is returned when editing before any charges exist.
	ErrNoScheduleLoaded = errors.New("no schedule loaded")

	// ErrPersistenceFailed wraps a failed commit write. The session's working
	// state is preserved so the same commit can be retried.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrInvariantViolated indicates an engine bug, not a user error.
	ErrInvariantViolated = errors.New("ledger invariant violated")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected edit. The working state is unchanged;
// the caller corrects the input and retries.
type ValidationError struct {
	Field   string // e.g. "due_date", "base_amount", "occupant"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DateOutOfBoundsError describes a due-date edit placed outside the range
// allowed by the neighboring charges. Dates are never auto-corrected.
type DateOutOfBoundsError struct {
	ChargeID   ChargeID
	Requested  Date
	LowerBound *Date // exclusive; nil when the charge is first
	UpperBound *Date // exclusive; nil when the charge is last
}

func (e *DateOutOfBoundsError) Error() string {
	switch {
	case e.LowerBound != nil && e.UpperBound != nil:
		return fmt.Sprintf("due date %s must fall strictly between %s and %s",
			e.Requested, *e.LowerBound, *e.UpperBound)
	case e.LowerBound != nil:
		return fmt.Sprintf("due date %s must fall strictly after %s", e.Requested, *e.LowerBound)
	case e.UpperBound != nil:
		return fmt.Sprintf("due date %s must fall strictly before %s", e.Requested, *e.UpperBound)
	default:
		return fmt.Sprintf("due date %s rejected", e.Requested)
	}
}

func (e *DateOutOfBoundsError) Unwrap() error { return ErrValidation }

// PersistenceError wraps a failed commit write verbatim. The session keeps
// every pending edit, so the caller can retry the identical commit.
type PersistenceError struct {
	TenancyID TenancyID
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("commit tenancy %s: %v", e.TenancyID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistenceFailed }

// InvariantError carries the numbers behind a violated invariant so tests
// can fail loudly with context.
type InvariantError struct {
	ChargeID ChargeID
	Name     string // e.g. "occupant_sum", "chronological_priority"
	Detail   string
	Got      decimal.Decimal
	Want     decimal.Decimal
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s violated on charge %s: %s (got %s, want %s)",
		e.Name, e.ChargeID, e.Detail, e.Got, e.Want)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolated }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is a rejected edit (client error).
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChargeNotFound) || errors.Is(err, ErrTenancyNotFound)
}

// IsRetryable reports whether the same call might succeed if repeated.
// Only persistence failures qualify; the session keeps its pending edits.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceFailed)
}
