package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// =============================================================================
// EMPLOYEE TESTS
// =============================================================================

func TestStore_Employee_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, time.January, 2, 10, 30, 0, 0, time.UTC)
	err := store.PutEmployee(ctx, leave.Employee{
		ID:          "emp-1",
		Name:        "Dana Okafor",
		TenureYears: 5,
		CreatedAt:   created,
	})
	require.NoError(t, err)

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana Okafor", got.Name)
	assert.Equal(t, 5, got.TenureYears)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestStore_Employee_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEmployee(context.Background(), "ghost")
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
}

// =============================================================================
// BALANCE TESTS
// =============================================================================

func TestStore_Balance_DecimalsRoundTripExactly(t *testing.T) {
	// Day counts are stored as TEXT so 0.5 survives the round trip without
	// floating-point drift.
	store := newTestStore(t)
	ctx := context.Background()

	entry := leave.BalanceEntry{
		EmployeeID: "emp-1",
		Type:       leave.Sick,
		Allocated:  d(12),
		Used:       decimal.NewFromFloat(0.5),
		Pending:    decimal.NewFromFloat(1.5),
	}
	require.NoError(t, store.PutBalance(ctx, entry))

	got, err := store.GetBalance(ctx, "emp-1", leave.Sick)
	require.NoError(t, err)
	assert.Equal(t, "0.5", got.Used.String())
	assert.Equal(t, "1.5", got.Pending.String())
	assert.Equal(t, "10", got.Remaining().String())
}

func TestStore_Balance_UpsertOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := leave.BalanceEntry{EmployeeID: "emp-1", Type: leave.Vacation,
		Allocated: d(15), Used: decimal.Zero, Pending: decimal.Zero}
	require.NoError(t, store.PutBalance(ctx, entry))

	entry.Pending = d(3)
	require.NoError(t, store.PutBalance(ctx, entry))

	got, err := store.GetBalance(ctx, "emp-1", leave.Vacation)
	require.NoError(t, err)
	assert.True(t, got.Pending.Equal(d(3)))
}

func TestStore_ListBalances_OnlyRequestedEmployee(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []leave.EmployeeID{"emp-1", "emp-2"} {
		require.NoError(t, store.PutBalance(ctx, leave.BalanceEntry{
			EmployeeID: id, Type: leave.Vacation,
			Allocated: d(15), Used: decimal.Zero, Pending: decimal.Zero}))
	}

	entries, err := store.ListBalances(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, leave.EmployeeID("emp-1"), entries[0].EmployeeID)
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func seedRequest(t *testing.T, store *sqlite.Store, id leave.RequestID, emp leave.EmployeeID,
	status leave.RequestStatus, start leave.Date, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.PutRequest(context.Background(), leave.LeaveRequest{
		ID:         id,
		EmployeeID: emp,
		Type:       leave.Vacation,
		StartDate:  start,
		EndDate:    start,
		Days:       d(1),
		Status:     status,
		CreatedAt:  createdAt,
	}))
}

func TestStore_Request_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	decided := time.Date(2025, time.March, 18, 14, 0, 0, 0, time.UTC)
	req := leave.LeaveRequest{
		ID:            "REQ-emp-1-20250317",
		EmployeeID:    "emp-1",
		Type:          leave.Sick,
		StartDate:     leave.NewDate(2025, time.March, 17),
		EndDate:       leave.NewDate(2025, time.March, 17),
		HalfDay:       true,
		Days:          decimal.NewFromFloat(0.5),
		Status:        leave.StatusApproved,
		Reason:        "dentist",
		ManagerID:     "mgr-1",
		DecisionNotes: "ok",
		CreatedAt:     time.Date(2025, time.March, 16, 9, 0, 0, 0, time.UTC),
		DecidedAt:     &decided,
	}
	require.NoError(t, store.PutRequest(ctx, req))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.EmployeeID, got.EmployeeID)
	assert.True(t, got.HalfDay)
	assert.Equal(t, "0.5", got.Days.String())
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, "dentist", got.Reason)
	assert.Equal(t, "mgr-1", got.ManagerID)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decided))
	assert.Equal(t, "2025-03-17", got.StartDate.String())
}

func TestStore_Request_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRequest(context.Background(), "REQ-ghost-20250101")
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)
}

func TestStore_Request_UpsertReplacesTerminalHolder(t *testing.T) {
	// Ids are reused after a terminal status; the latest request wins.
	store := newTestStore(t)
	ctx := context.Background()

	start := leave.NewDate(2025, time.March, 17)
	seedRequest(t, store, "REQ-emp-1-20250317", "emp-1", leave.StatusCancelled,
		start, time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC))
	seedRequest(t, store, "REQ-emp-1-20250317", "emp-1", leave.StatusPending,
		start, time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))

	got, err := store.GetRequest(ctx, "REQ-emp-1-20250317")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status)
}

func TestStore_ListRequests_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	seedRequest(t, store, "REQ-emp-1-20250317", "emp-1", leave.StatusPending,
		leave.NewDate(2025, time.March, 17), base)
	seedRequest(t, store, "REQ-emp-1-20241223", "emp-1", leave.StatusApproved,
		leave.NewDate(2024, time.December, 23), base.Add(time.Minute))
	seedRequest(t, store, "REQ-emp-2-20250317", "emp-2", leave.StatusPending,
		leave.NewDate(2025, time.March, 17), base.Add(2*time.Minute))

	// By employee.
	emp := leave.EmployeeID("emp-1")
	requests, err := store.ListRequests(ctx, leave.RequestFilter{EmployeeID: &emp})
	require.NoError(t, err)
	assert.Len(t, requests, 2)

	// By status, ordered by creation time.
	pending := leave.StatusPending
	requests, err = store.ListRequests(ctx, leave.RequestFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, leave.RequestID("REQ-emp-1-20250317"), requests[0].ID)
	assert.Equal(t, leave.RequestID("REQ-emp-2-20250317"), requests[1].ID)

	// By employee and start year.
	year := 2024
	requests, err = store.ListRequests(ctx, leave.RequestFilter{EmployeeID: &emp, Year: &year})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, leave.RequestID("REQ-emp-1-20241223"), requests[0].ID)
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestStore_History_AppendAndListChronological(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 18, 9, 0, 0, 0, time.UTC)
	entries := []leave.HistoryEntry{
		{ID: "h-1", RequestID: "REQ-emp-1-20250317", EmployeeID: "emp-1",
			Type: leave.Vacation, Days: d(3),
			FromStatus: leave.StatusPending, ToStatus: leave.StatusApproved,
			Actor: "mgr-1", Notes: "ok", OccurredAt: base},
		{ID: "h-2", RequestID: "REQ-emp-1-20250317", EmployeeID: "emp-1",
			Type: leave.Vacation, Days: d(3),
			FromStatus: leave.StatusApproved, ToStatus: leave.StatusCancelled,
			Actor: "emp-1", OccurredAt: base.Add(time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, store.AppendHistory(ctx, e))
	}

	got, err := store.ListHistory(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "h-1", got[0].ID)
	assert.Equal(t, "h-2", got[1].ID)
	assert.Equal(t, leave.StatusCancelled, got[1].ToStatus)
	assert.True(t, got[0].Days.Equal(d(3)))
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutBalance(ctx, leave.BalanceEntry{
		EmployeeID: "emp-1", Type: leave.Vacation,
		Allocated: d(15), Used: decimal.Zero, Pending: decimal.Zero}))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s leave.Store) error {
		entry, err := s.GetBalance(ctx, "emp-1", leave.Vacation)
		if err != nil {
			return err
		}
		entry.Pending = d(3)
		if err := s.PutBalance(ctx, entry); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetBalance(ctx, "emp-1", leave.Vacation)
	require.NoError(t, err)
	assert.True(t, got.Pending.IsZero(), "write inside failed tx must not persist")
}

func TestStore_WithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s leave.Store) error {
		return s.PutBalance(ctx, leave.BalanceEntry{
			EmployeeID: "emp-1", Type: leave.Vacation,
			Allocated: d(15), Used: decimal.Zero, Pending: decimal.Zero})
	})
	require.NoError(t, err)

	got, err := store.GetBalance(ctx, "emp-1", leave.Vacation)
	require.NoError(t, err)
	assert.True(t, got.Allocated.Equal(d(15)))
}

// =============================================================================
// ENGINE-ON-SQLITE INTEGRATION
// =============================================================================

func TestEngine_OnSQLite_FullLifecycle(t *testing.T) {
	// The lifecycle tests run mostly on the memory store; this one pins the
	// same behavior on the durable store.

	store := newTestStore(t)
	engine := leave.NewEngine(store)
	ctx := context.Background()

	_, err := engine.InitializeBalance(ctx, "emp-1", "Dana Okafor", 2)
	require.NoError(t, err)

	reqID, err := engine.SubmitRequest(ctx, leave.SubmitInput{
		EmployeeID: "emp-1",
		Type:       leave.Vacation,
		StartDate:  leave.NewDate(2025, time.March, 17),
		EndDate:    leave.NewDate(2025, time.March, 19),
		Reason:     "trip",
	})
	require.NoError(t, err)

	require.NoError(t, engine.ApproveRequest(ctx, reqID, "mgr-1", ""))
	require.NoError(t, engine.CancelRequest(ctx, reqID, "emp-1"))

	snapshots, err := engine.GetBalance(ctx, "emp-1")
	require.NoError(t, err)
	vacation := snapshots[leave.Vacation]
	assert.True(t, vacation.Used.IsZero())
	assert.True(t, vacation.Pending.IsZero())
	assert.True(t, vacation.Remaining.Equal(d(15)))

	entries, err := engine.HistoryLog(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
