package leave_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*leave.Ledger, *memory.Store) {
	t.Helper()
	store := memory.New()
	return leave.NewLedger(store, leave.NewPolicyTable()), store
}

func seedBalance(t *testing.T, store *memory.Store, id leave.EmployeeID, lt leave.LeaveType, allocated int64) {
	t.Helper()
	err := store.PutBalance(context.Background(), leave.BalanceEntry{
		EmployeeID: id,
		Type:       lt,
		Allocated:  decimal.NewFromInt(allocated),
		Used:       decimal.Zero,
		Pending:    decimal.Zero,
	})
	require.NoError(t, err)
}

// =============================================================================
// RESERVE TESTS
// =============================================================================

func TestLedger_Reserve_WithinBalance(t *testing.T) {
	// GIVEN: 15 allocated vacation days
	// WHEN: Reserving 3
	// THEN: Pending becomes 3, remaining 12

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Vacation, 15)

	err := ledger.Reserve(ctx, "emp-1", leave.Vacation, decimalInt(3))
	require.NoError(t, err)

	entry, err := store.GetBalance(ctx, "emp-1", leave.Vacation)
	require.NoError(t, err)
	assert.True(t, entry.Pending.Equal(decimalInt(3)))
	assert.True(t, entry.Remaining().Equal(decimalInt(12)))
}

func TestLedger_Reserve_Overdraw_Rejected(t *testing.T) {
	// GIVEN: 5 personal days, 4 already pending
	// WHEN: Reserving 2 more
	// THEN: InsufficientBalanceError with available=1, requested=2

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Personal, 5)
	require.NoError(t, ledger.Reserve(ctx, "emp-1", leave.Personal, decimalInt(4)))

	err := ledger.Reserve(ctx, "emp-1", leave.Personal, decimalInt(2))

	require.ErrorIs(t, err, leave.ErrInsufficientBalance)
	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(decimalInt(1)))
	assert.True(t, insufficient.Requested.Equal(decimalInt(2)))
	assert.True(t, insufficient.Shortfall().Equal(decimalInt(1)))

	// Failed reservation leaves the ledger untouched.
	entry, err := store.GetBalance(ctx, "emp-1", leave.Personal)
	require.NoError(t, err)
	assert.True(t, entry.Pending.Equal(decimalInt(4)))
}

func TestLedger_Reserve_ExactRemaining_Allowed(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Personal, 5)

	err := ledger.Reserve(ctx, "emp-1", leave.Personal, decimalInt(5))
	require.NoError(t, err)

	entry, _ := store.GetBalance(ctx, "emp-1", leave.Personal)
	assert.True(t, entry.Remaining().IsZero())
}

func TestLedger_Reserve_Unbounded_NeverOverdraws(t *testing.T) {
	// GIVEN: Unpaid leave with zero allocation
	// WHEN: Reserving 30 days
	// THEN: Allowed; usage is still recorded

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Unpaid, 0)

	err := ledger.Reserve(ctx, "emp-1", leave.Unpaid, decimalInt(30))
	require.NoError(t, err)

	entry, err := store.GetBalance(ctx, "emp-1", leave.Unpaid)
	require.NoError(t, err)
	assert.True(t, entry.Pending.Equal(decimalInt(30)))
}

func TestLedger_Reserve_UnknownEmployee(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.Reserve(context.Background(), "ghost", leave.Vacation, decimalInt(1))
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
}

// =============================================================================
// RELEASE / COMMIT / RESTORE TESTS
// =============================================================================

func TestLedger_ApprovalFlow_MovesPendingToUsed(t *testing.T) {
	// GIVEN: A 3-day hold on 15 vacation days
	// WHEN: Releasing the hold and committing usage (approval)
	// THEN: used=3, pending=0, remaining unchanged at 12

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Vacation, 15)
	require.NoError(t, ledger.Reserve(ctx, "emp-1", leave.Vacation, decimalInt(3)))

	require.NoError(t, ledger.ReleasePending(ctx, "emp-1", leave.Vacation, decimalInt(3)))
	require.NoError(t, ledger.CommitUsed(ctx, "emp-1", leave.Vacation, decimalInt(3)))

	entry, err := store.GetBalance(ctx, "emp-1", leave.Vacation)
	require.NoError(t, err)
	assert.True(t, entry.Used.Equal(decimalInt(3)))
	assert.True(t, entry.Pending.IsZero())
	assert.True(t, entry.Remaining().Equal(decimalInt(12)))
}

func TestLedger_RestoreUsed_ExactRoundTrip(t *testing.T) {
	// Approve then cancel restores the balance exactly.
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Vacation, 15)
	require.NoError(t, ledger.Reserve(ctx, "emp-1", leave.Vacation, decimalInt(3)))
	require.NoError(t, ledger.ReleasePending(ctx, "emp-1", leave.Vacation, decimalInt(3)))
	require.NoError(t, ledger.CommitUsed(ctx, "emp-1", leave.Vacation, decimalInt(3)))

	require.NoError(t, ledger.RestoreUsed(ctx, "emp-1", leave.Vacation, decimalInt(3)))

	entry, err := store.GetBalance(ctx, "emp-1", leave.Vacation)
	require.NoError(t, err)
	assert.True(t, entry.Used.IsZero())
	assert.True(t, entry.Pending.IsZero())
	assert.True(t, entry.Remaining().Equal(decimalInt(15)))
}

func TestLedger_ReleasePending_NegativeCounter_Conflict(t *testing.T) {
	// Releasing more than was reserved means engine and ledger disagree.
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Vacation, 15)

	err := ledger.ReleasePending(ctx, "emp-1", leave.Vacation, decimalInt(1))
	assert.ErrorIs(t, err, leave.ErrLedgerConflict)
}

func TestLedger_RestoreUsed_NegativeCounter_Conflict(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Vacation, 15)

	err := ledger.RestoreUsed(ctx, "emp-1", leave.Vacation, decimalInt(1))
	assert.ErrorIs(t, err, leave.ErrLedgerConflict)
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestLedger_Snapshot(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedBalance(t, store, "emp-1", leave.Vacation, 15)
	seedBalance(t, store, "emp-1", leave.Unpaid, 0)
	require.NoError(t, ledger.Reserve(ctx, "emp-1", leave.Vacation, decimalInt(2)))

	snapshots, err := ledger.Snapshot(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	vacation := snapshots[leave.Vacation]
	assert.False(t, vacation.Unbounded)
	assert.True(t, vacation.Remaining.Equal(decimalInt(13)))

	unpaid := snapshots[leave.Unpaid]
	assert.True(t, unpaid.Unbounded)
}

func TestLedger_Snapshot_UnknownEmployee(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Snapshot(context.Background(), "ghost")
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
}
