/*
engine.go - Request lifecycle state machine

PURPOSE:
  The Engine is the only writer of balances, requests, and history. It
  drives requests through:

    submit -> PENDING -> APPROVED -> CANCELLED
                      -> REJECTED
                      -> CANCELLED

  with the matching ledger effect for each transition:

    submit           reserve(pending += days)
    approve          release_pending + commit_used
    reject           release_pending
    cancel(pending)  release_pending
    cancel(approved) restore_used

  REJECTED and CANCELLED are absorbing: any further operation fails with
  InvalidTransitionError and leaves the ledger untouched.

ATOMICITY:
  Each transition runs inside store.WithTx while holding the exclusive lock
  for its (employee, leave type) key. The status check, ledger mutation,
  request update, and history append are indivisible with respect to other
  transitions on the same key; transitions on different keys proceed in
  parallel.

HISTORY:
  Transitions from a defined prior state (approve, reject, cancel) append
  exactly one history entry. Submission creates the request itself and is
  not separately journaled.

SEE ALSO:
  - ledger.go: The four ledger mutators
  - store.go: WithTx contract
*/
package leave

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store     TxStore
	policies  *PolicyTable
	clock     Clock
	directory Directory // optional; nil disables manager scoping

	locks keyedLocks
}

type EngineOption func(*Engine)

// WithClock injects a clock (tests pin time with this).
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithDirectory injects the employee directory used to scope
// PendingRequests to a manager's team.
func WithDirectory(d Directory) EngineOption {
	return func(e *Engine) { e.directory = d }
}

// WithPolicies replaces the default policy table.
func WithPolicies(t *PolicyTable) EngineOption {
	return func(e *Engine) { e.policies = t }
}

func NewEngine(store TxStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		policies: NewPolicyTable(),
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.locks.init()
	return e
}

// Policies exposes the table read-only (API catalog endpoint).
func (e *Engine) Policies() *PolicyTable { return e.policies }

// =============================================================================
// BALANCE INITIALIZATION & POLICY-YEAR RESET
// =============================================================================

// InitializeBalance creates the ledger entries for a new employee. Tenure is
// read once, here, to select the vacation tier. Re-initializing fails with
// ErrAlreadyInitialized; there is no implicit reset.
func (e *Engine) InitializeBalance(ctx context.Context, id EmployeeID, name string, tenureYears int) (map[LeaveType]BalanceSnapshot, error) {
	unlock := e.locks.lockEmployee(id)
	defer unlock()

	err := e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetEmployee(ctx, id); err == nil {
			return ErrAlreadyInitialized
		} else if !IsNotFound(err) {
			return err
		}

		if err := s.PutEmployee(ctx, Employee{
			ID:          id,
			Name:        name,
			TenureYears: tenureYears,
			CreatedAt:   e.clock.Now(),
		}); err != nil {
			return err
		}

		for _, lt := range AllLeaveTypes {
			policy := e.policies.MustLookup(lt)
			entry := BalanceEntry{
				EmployeeID: id,
				Type:       lt,
				Allocated:  policy.Allocation(tenureYears),
				Used:       decimal.Zero,
				Pending:    decimal.Zero,
			}
			if err := s.PutBalance(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.GetBalance(ctx, id)
}

// ResetPolicyYear starts a new entitlement year for an employee: each
// bounded type gets its annual allocation plus min(remaining, carry-over
// cap); unused days above the cap are forfeited, and usage counters start
// from zero. The reset is rejected while pending holds exist - decide the
// open requests first.
func (e *Engine) ResetPolicyYear(ctx context.Context, id EmployeeID) (map[LeaveType]BalanceSnapshot, error) {
	unlock := e.locks.lockEmployee(id)
	defer unlock()

	err := e.store.WithTx(ctx, func(s Store) error {
		emp, err := s.GetEmployee(ctx, id)
		if err != nil {
			return err
		}

		entries, err := s.ListBalances(ctx, id)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrEmployeeNotFound
		}

		for _, entry := range entries {
			if !entry.Pending.IsZero() {
				return ErrOutstandingPending
			}
		}

		for _, entry := range entries {
			policy := e.policies.MustLookup(entry.Type)
			carry := decimal.Zero
			if !policy.Unbounded {
				carry = policy.CarryOver(entry.Remaining())
			}
			entry.Allocated = policy.Allocation(emp.TenureYears).Add(carry)
			entry.Used = decimal.Zero
			entry.Pending = decimal.Zero
			if err := s.PutBalance(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.GetBalance(ctx, id)
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput carries everything needed to open a request.
type SubmitInput struct {
	EmployeeID EmployeeID
	Type       LeaveType
	StartDate  Date
	EndDate    Date
	HalfDay    bool
	Reason     string
}

// SubmitRequest validates the range, reserves the days, and creates a
// PENDING request. Validation happens before any ledger access; a failed
// submission has no side effects.
func (e *Engine) SubmitRequest(ctx context.Context, in SubmitInput) (RequestID, error) {
	if !in.Type.Valid() {
		return "", ErrUnknownLeaveType
	}

	days, err := CalculateDays(in.StartDate, in.EndDate, in.HalfDay)
	if err != nil {
		return "", err
	}
	if days.IsZero() {
		return "", ErrEmptyDateRange
	}

	id := NewRequestID(in.EmployeeID, in.StartDate)

	unlock := e.locks.lock(in.EmployeeID, in.Type)
	defer unlock()

	err = e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetEmployee(ctx, in.EmployeeID); err != nil {
			return err
		}

		if existing, err := s.GetRequest(ctx, id); err == nil {
			if !existing.Status.IsTerminal() {
				return ErrDuplicateRequest
			}
			// Terminal holder: the id is reused, history keeps the old record.
		} else if !IsNotFound(err) {
			return err
		}

		ledger := NewLedger(s, e.policies)
		if err := ledger.Reserve(ctx, in.EmployeeID, in.Type, days); err != nil {
			return err
		}

		return s.PutRequest(ctx, LeaveRequest{
			ID:         id,
			EmployeeID: in.EmployeeID,
			Type:       in.Type,
			StartDate:  in.StartDate,
			EndDate:    in.EndDate,
			HalfDay:    in.HalfDay,
			Days:       days,
			Status:     StatusPending,
			Reason:     in.Reason,
			CreatedAt:  e.clock.Now(),
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// =============================================================================
// APPROVE / REJECT / CANCEL
// =============================================================================

// ApproveRequest moves a PENDING request to APPROVED, converting its pending
// hold into usage.
func (e *Engine) ApproveRequest(ctx context.Context, id RequestID, managerID, notes string) error {
	return e.transition(ctx, id, "approve", func(ctx context.Context, s Store, ledger *Ledger, req *LeaveRequest) error {
		if req.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: req.Status, Operation: "approve"}
		}
		if err := ledger.ReleasePending(ctx, req.EmployeeID, req.Type, req.Days); err != nil {
			return err
		}
		if err := ledger.CommitUsed(ctx, req.EmployeeID, req.Type, req.Days); err != nil {
			return err
		}
		e.decide(req, StatusApproved, managerID, notes)
		return nil
	}, managerID, notes)
}

// RejectRequest moves a PENDING request to REJECTED, dropping its hold.
func (e *Engine) RejectRequest(ctx context.Context, id RequestID, managerID, reason string) error {
	return e.transition(ctx, id, "reject", func(ctx context.Context, s Store, ledger *Ledger, req *LeaveRequest) error {
		if req.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: req.Status, Operation: "reject"}
		}
		if err := ledger.ReleasePending(ctx, req.EmployeeID, req.Type, req.Days); err != nil {
			return err
		}
		e.decide(req, StatusRejected, managerID, reason)
		return nil
	}, managerID, reason)
}

// CancelRequest cancels a PENDING or APPROVED request on behalf of the
// employee that owns it. Cancelling an approved request restores the used
// days exactly.
func (e *Engine) CancelRequest(ctx context.Context, id RequestID, employeeID EmployeeID) error {
	return e.transition(ctx, id, "cancel", func(ctx context.Context, s Store, ledger *Ledger, req *LeaveRequest) error {
		if req.EmployeeID != employeeID {
			return ErrNotOwner
		}
		switch req.Status {
		case StatusPending:
			if err := ledger.ReleasePending(ctx, req.EmployeeID, req.Type, req.Days); err != nil {
				return err
			}
		case StatusApproved:
			if err := ledger.RestoreUsed(ctx, req.EmployeeID, req.Type, req.Days); err != nil {
				return err
			}
		default:
			return &InvalidTransitionError{RequestID: id, From: req.Status, Operation: "cancel"}
		}
		// Cancellation is employee-initiated; no manager is involved.
		now := e.clock.Now()
		req.Status = StatusCancelled
		req.DecisionNotes = "cancelled by employee"
		req.DecidedAt = &now
		return nil
	}, string(employeeID), "")
}

// transition runs one lifecycle step: resolve the request's lock key, then
// atomically re-check status, mutate the ledger, update the request, and
// append the history entry.
func (e *Engine) transition(
	ctx context.Context,
	id RequestID,
	op string,
	apply func(context.Context, Store, *Ledger, *LeaveRequest) error,
	actor, notes string,
) error {
	// Unlocked read just to learn the (employee, type) key. Status is
	// re-checked under the lock.
	probe, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(probe.EmployeeID, probe.Type)
	defer unlock()

	return e.store.WithTx(ctx, func(s Store) error {
		req, err := s.GetRequest(ctx, id)
		if err != nil {
			return err
		}

		from := req.Status
		if err := apply(ctx, s, NewLedger(s, e.policies), &req); err != nil {
			return err
		}

		if err := s.PutRequest(ctx, req); err != nil {
			return err
		}

		return s.AppendHistory(ctx, HistoryEntry{
			ID:         uuid.NewString(),
			RequestID:  req.ID,
			EmployeeID: req.EmployeeID,
			Type:       req.Type,
			Days:       req.Days,
			FromStatus: from,
			ToStatus:   req.Status,
			Actor:      actor,
			Notes:      notes,
			OccurredAt: e.clock.Now(),
		})
	})
}

// decide stamps the manager decision audit fields on a request.
func (e *Engine) decide(req *LeaveRequest, to RequestStatus, managerID, notes string) {
	now := e.clock.Now()
	req.Status = to
	req.ManagerID = managerID
	req.DecisionNotes = notes
	req.DecidedAt = &now
}

// =============================================================================
// READ SURFACE
// =============================================================================

// GetBalance returns the balance snapshot per leave type.
func (e *Engine) GetBalance(ctx context.Context, id EmployeeID) (map[LeaveType]BalanceSnapshot, error) {
	return NewLedger(e.store, e.policies).Snapshot(ctx, id)
}

// GetEmployee returns the employee record created at initialization.
func (e *Engine) GetEmployee(ctx context.Context, id EmployeeID) (Employee, error) {
	return e.store.GetEmployee(ctx, id)
}

// Request returns the latest request holding the id.
func (e *Engine) Request(ctx context.Context, id RequestID) (LeaveRequest, error) {
	return e.store.GetRequest(ctx, id)
}

// PendingRequests lists PENDING requests ordered by submission time. With a
// non-empty managerID and a configured directory, the list is scoped to the
// manager's team; without a directory the filter is ignored.
func (e *Engine) PendingRequests(ctx context.Context, managerID string) ([]LeaveRequest, error) {
	status := StatusPending
	requests, err := e.store.ListRequests(ctx, RequestFilter{Status: &status})
	if err != nil {
		return nil, err
	}

	if managerID == "" || e.directory == nil {
		return requests, nil
	}

	scoped := requests[:0]
	for _, req := range requests {
		ok, err := e.directory.Manages(ctx, managerID, req.EmployeeID)
		if err != nil {
			return nil, err
		}
		if ok {
			scoped = append(scoped, req)
		}
	}
	return scoped, nil
}

// History returns the employee's requests across all statuses, ordered by
// creation time. A non-zero year keeps only requests starting in that year.
func (e *Engine) History(ctx context.Context, id EmployeeID, year int) ([]LeaveRequest, error) {
	filter := RequestFilter{EmployeeID: &id}
	if year != 0 {
		filter.Year = &year
	}
	return e.store.ListRequests(ctx, filter)
}

// HistoryLog returns the transition journal for an employee, chronological.
func (e *Engine) HistoryLog(ctx context.Context, id EmployeeID) ([]HistoryEntry, error) {
	return e.store.ListHistory(ctx, id)
}

// =============================================================================
// KEYED LOCKS - One exclusive lock per (employee, leave type)
// =============================================================================

type lockKey struct {
	employee EmployeeID
	leave    LeaveType
}

// keyedLocks serializes transitions per (employee, leave type) pair.
// Transitions on different keys run concurrently. Mutexes are created on
// first use and kept for the engine's lifetime; the key space is bounded by
// employees x six leave types.
type keyedLocks struct {
	mu sync.Mutex
	m  map[lockKey]*sync.Mutex
}

func (k *keyedLocks) init() {
	k.m = make(map[lockKey]*sync.Mutex)
}

func (k *keyedLocks) lock(id EmployeeID, lt LeaveType) (unlock func()) {
	k.mu.Lock()
	key := lockKey{employee: id, leave: lt}
	mu, ok := k.m[key]
	if !ok {
		mu = &sync.Mutex{}
		k.m[key] = mu
	}
	k.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// lockEmployee takes every per-type lock for an employee, in AllLeaveTypes
// order so concurrent lockEmployee calls cannot deadlock. Used by
// initialization and policy-year reset, which touch all types at once.
func (k *keyedLocks) lockEmployee(id EmployeeID) (unlock func()) {
	unlocks := make([]func(), 0, len(AllLeaveTypes))
	for _, lt := range AllLeaveTypes {
		unlocks = append(unlocks, k.lock(id, lt))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
