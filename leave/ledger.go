/*
ledger.go - Balance ledger with the entitlement invariant

PURPOSE:
  The Ledger is the single source of truth for entitlement. It exposes
  exactly four mutators - Reserve, ReleasePending, CommitUsed, RestoreUsed -
  and a snapshot reader. The mutators are only ever invoked by the Engine
  inside a transition critical section.

INVARIANT (bounded types):
  Used + Pending <= Allocated, and Used, Pending >= 0, after every mutation.

  Reserve is the only mutator that can grow Used+Pending beyond what a prior
  state allowed, so it is the only one that can fail with
  InsufficientBalanceError. The release/commit/restore mutators move days
  between counters that a prior Reserve already admitted; a negative counter
  there means engine and ledger disagree and surfaces as ErrLedgerConflict.

UNBOUNDED TYPES:
  Unpaid leave skips the capacity check entirely but still accumulates
  Pending and Used so reporting can see it.

SEE ALSO:
  - engine.go: The only caller of the mutators
  - policy.go: Per-type bounds
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger wraps a Store with the entitlement rules. It is cheap to construct;
// the Engine builds one per transaction over the transactional store view.
type Ledger struct {
	store    Store
	policies *PolicyTable
}

func NewLedger(store Store, policies *PolicyTable) *Ledger {
	return &Ledger{store: store, policies: policies}
}

// Reserve places a pending hold of days on (employee, type). For bounded
// types it fails with InsufficientBalanceError if the hold would overdraw
// the entitlement.
func (l *Ledger) Reserve(ctx context.Context, id EmployeeID, lt LeaveType, days decimal.Decimal) error {
	entry, err := l.store.GetBalance(ctx, id, lt)
	if err != nil {
		return err
	}

	policy := l.policies.MustLookup(lt)
	if !policy.Unbounded {
		available := entry.Remaining()
		if days.GreaterThan(available) {
			return &InsufficientBalanceError{
				EmployeeID: id,
				Type:       lt,
				Available:  available,
				Requested:  days,
			}
		}
	}

	entry.Pending = entry.Pending.Add(days)
	return l.store.PutBalance(ctx, entry)
}

// ReleasePending drops a pending hold (approve, reject, cancel-pending).
func (l *Ledger) ReleasePending(ctx context.Context, id EmployeeID, lt LeaveType, days decimal.Decimal) error {
	entry, err := l.store.GetBalance(ctx, id, lt)
	if err != nil {
		return err
	}
	entry.Pending = entry.Pending.Sub(days)
	if entry.Pending.IsNegative() {
		return ErrLedgerConflict
	}
	return l.store.PutBalance(ctx, entry)
}

// CommitUsed converts an approved request's days into usage.
func (l *Ledger) CommitUsed(ctx context.Context, id EmployeeID, lt LeaveType, days decimal.Decimal) error {
	entry, err := l.store.GetBalance(ctx, id, lt)
	if err != nil {
		return err
	}
	entry.Used = entry.Used.Add(days)

	policy := l.policies.MustLookup(lt)
	if !policy.Unbounded && entry.Remaining().IsNegative() {
		return ErrLedgerConflict
	}
	return l.store.PutBalance(ctx, entry)
}

// RestoreUsed returns days to the balance when an approved request is
// cancelled. The round-trip approve-then-cancel restores Used exactly.
func (l *Ledger) RestoreUsed(ctx context.Context, id EmployeeID, lt LeaveType, days decimal.Decimal) error {
	entry, err := l.store.GetBalance(ctx, id, lt)
	if err != nil {
		return err
	}
	entry.Used = entry.Used.Sub(days)
	if entry.Used.IsNegative() {
		return ErrLedgerConflict
	}
	return l.store.PutBalance(ctx, entry)
}

// Snapshot returns a read-only copy of every balance entry for an employee,
// keyed by leave type. Returns ErrEmployeeNotFound for uninitialized
// employees.
func (l *Ledger) Snapshot(ctx context.Context, id EmployeeID) (map[LeaveType]BalanceSnapshot, error) {
	entries, err := l.store.ListBalances(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmployeeNotFound
	}

	snapshots := make(map[LeaveType]BalanceSnapshot, len(entries))
	for _, e := range entries {
		policy := l.policies.MustLookup(e.Type)
		snapshots[e.Type] = e.Snapshot(policy.Unbounded)
	}
	return snapshots, nil
}
