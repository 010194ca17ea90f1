/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every operation surfaces its failure synchronously; nothing in this
  package retries or recovers silently.

ERROR CATEGORIES:
  1. Input validation - rejected before any ledger access
  2. Capacity         - rejected after computing days, before reserving
  3. Identity         - unknown employee/request, ownership mismatch
  4. Protocol         - caller out of sync with the state machine

USAGE:
  Callers match with errors.Is:

    if errors.Is(err, leave.ErrInsufficientBalance) {
        // suggest unpaid leave or a shorter range
    }

SEE ALSO:
  - engine.go: Where these are returned
  - api/handlers.go: HTTP status mapping
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDateRange is returned when end date precedes start date.
	ErrInvalidDateRange = errors.New("invalid date range: end before start")

	// ErrInvalidHalfDayRange is returned when a half-day request spans more
	// than one calendar day.
	ErrInvalidHalfDayRange = errors.New("half-day request must cover exactly one day")

	// ErrEmptyDateRange is returned when a range contains no chargeable days
	// (weekend-only ranges).
	ErrEmptyDateRange = errors.New("date range contains no chargeable days")

	// ErrInsufficientBalance is returned when a reservation would overdraw
	// the entitlement of a bounded leave type.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrDuplicateRequest is returned when an active request already holds
	// the derived request identifier.
	ErrDuplicateRequest = errors.New("duplicate request for employee and start date")

	// ErrRequestNotFound is returned when the request id is unknown.
	ErrRequestNotFound = errors.New("request not found")

	// ErrNotOwner is returned when cancellation is attempted by someone other
	// than the requesting employee.
	ErrNotOwner = errors.New("request belongs to a different employee")

	// ErrInvalidStateTransition is returned when the requested operation is
	// not permitted from the request's current status. The caller should
	// re-fetch state, not retry.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrAlreadyInitialized is returned when initializing an employee that
	// already has ledger entries. There is no implicit reset.
	ErrAlreadyInitialized = errors.New("employee balance already initialized")

	// ErrEmployeeNotFound is returned when the employee has no ledger entries.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrUnknownLeaveType is returned for a leave type outside the closed set.
	ErrUnknownLeaveType = errors.New("unknown leave type")

	// ErrOutstandingPending is returned when a policy-year reset is attempted
	// while pending holds exist. Decide the open requests first.
	ErrOutstandingPending = errors.New("outstanding pending holds block policy-year reset")

	// ErrLedgerConflict indicates a ledger mutation that would drive a
	// counter negative. It means engine and ledger are out of sync and is
	// not a caller error.
	ErrLedgerConflict = errors.New("ledger counter would go negative")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a capacity shortage.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Type       LeaveType
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %s, requested %s",
		e.Type, e.EmployeeID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is how many days the reservation exceeds the entitlement.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// InvalidTransitionError details a state machine violation.
type InvalidTransitionError struct {
	RequestID RequestID
	From      RequestStatus
	Operation string // "approve", "reject", "cancel"
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s", e.Operation, e.RequestID, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input or
// a caller that is out of sync with current state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidHalfDayRange) ||
		errors.Is(err, ErrEmptyDateRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrAlreadyInitialized) ||
		errors.Is(err, ErrUnknownLeaveType) ||
		errors.Is(err, ErrOutstandingPending)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}
