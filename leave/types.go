/*
Package leave implements the leave balance ledger and request lifecycle engine.

PURPOSE:
  This package is the core of the leave management system. It tracks
  per-employee, per-leave-type entitlement (allocated/used/pending days),
  enforces allocation rules (tenure tiers, carry-over caps), computes
  chargeable durations with weekend and half-day semantics, and drives
  leave requests through an approval state machine while keeping the
  ledger consistent under concurrent callers.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: The closed set of leave categories, each with a policy
  - BalanceEntry: The ledger record for one (employee, leave type) pair
  - LeaveRequest: A request moving through the lifecycle state machine
  - HistoryEntry: An immutable record of a lifecycle transition

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for day counts (half-days are exact 0.5)
  2. Single writer: only the Engine mutates balances and requests
  3. Auditability: every decision appends a history entry
  4. Type safety: strong ID types prevent mixing employees and requests

SEE ALSO:
  - policy.go: Allocation rules per leave type
  - ledger.go: Balance mutations and the entitlement invariant
  - engine.go: The lifecycle state machine
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string

// RequestID is derived from employee and start date, e.g. REQ-EMP001-20250317.
// The same id is reused once a prior request reaches a terminal status;
// history entries disambiguate by timestamp.
type RequestID string

// NewRequestID builds the deterministic request identifier.
func NewRequestID(employeeID EmployeeID, start Date) RequestID {
	return RequestID(fmt.Sprintf("REQ-%s-%s", employeeID, start.Compact()))
}

// =============================================================================
// LEAVE TYPES - Closed set, policies resolved at compile time
// =============================================================================

type LeaveType string

const (
	Vacation    LeaveType = "vacation"
	Sick        LeaveType = "sick"
	Personal    LeaveType = "personal"
	Bereavement LeaveType = "bereavement"
	Parental    LeaveType = "parental"
	Unpaid      LeaveType = "unpaid"
)

// AllLeaveTypes lists every leave type in a stable order. The order matters:
// multi-type operations acquire per-type locks in this order to avoid deadlock.
var AllLeaveTypes = []LeaveType{Vacation, Sick, Personal, Bereavement, Parental, Unpaid}

func (lt LeaveType) Valid() bool {
	switch lt {
	case Vacation, Sick, Personal, Bereavement, Parental, Unpaid:
		return true
	}
	return false
}

// =============================================================================
// EMPLOYEE - Owned externally; tenure is read once at initialization
// =============================================================================

type Employee struct {
	ID          EmployeeID
	Name        string
	TenureYears int
	CreatedAt   time.Time
}

// =============================================================================
// BALANCE ENTRY - Ledger record per (employee, leave type)
// =============================================================================

// BalanceEntry is owned exclusively by the Ledger.
//
// INVARIANT (bounded types): Used + Pending <= Allocated, and both >= 0.
// Unbounded types (Unpaid) skip the capacity check but still accumulate
// Used and Pending for reporting.
type BalanceEntry struct {
	EmployeeID EmployeeID
	Type       LeaveType
	Allocated  decimal.Decimal
	Used       decimal.Decimal
	Pending    decimal.Decimal
}

// Remaining is derived, never stored.
func (e BalanceEntry) Remaining() decimal.Decimal {
	return e.Allocated.Sub(e.Used).Sub(e.Pending)
}

// BalanceSnapshot is the read-only view returned to callers. For unbounded
// types Remaining is meaningless and Unbounded is set instead.
type BalanceSnapshot struct {
	Allocated decimal.Decimal
	Used      decimal.Decimal
	Pending   decimal.Decimal
	Remaining decimal.Decimal
	Unbounded bool
}

func (e BalanceEntry) Snapshot(unbounded bool) BalanceSnapshot {
	s := BalanceSnapshot{
		Allocated: e.Allocated,
		Used:      e.Used,
		Pending:   e.Pending,
		Unbounded: unbounded,
	}
	if !unbounded {
		s.Remaining = e.Remaining()
	}
	return s
}

// =============================================================================
// LEAVE REQUEST - Lifecycle owned by the Engine
// =============================================================================

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID
	Type       LeaveType
	StartDate  Date
	EndDate    Date
	HalfDay    bool
	Days       decimal.Decimal
	Status     RequestStatus
	Reason     string

	// Decision audit fields, set by approve/reject/cancel.
	ManagerID     string
	DecisionNotes string
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

// =============================================================================
// HISTORY ENTRY - Immutable transition record
// =============================================================================

// HistoryEntry is appended whenever a request leaves a defined prior state
// (approve, reject, cancel). Entries are created, never updated or deleted.
type HistoryEntry struct {
	ID         string // uuid
	RequestID  RequestID
	EmployeeID EmployeeID
	Type       LeaveType
	Days       decimal.Decimal
	FromStatus RequestStatus
	ToStatus   RequestStatus
	Actor      string
	Notes      string
	OccurredAt time.Time
}

// =============================================================================
// INJECTED COLLABORATORS
// =============================================================================

// Clock supplies timestamps for CreatedAt/DecidedAt. Injected so tests can
// pin time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Directory answers manager-scoping questions for PendingRequests. The
// employee directory is owned externally; this core only consumes it.
type Directory interface {
	// Manages reports whether managerID is responsible for employeeID.
	Manages(ctx context.Context, managerID string, employeeID EmployeeID) (bool, error)
}
