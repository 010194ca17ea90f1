package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

func TestMemory_WithTx_RollsBackEveryTable(t *testing.T) {
	// GIVEN: A store with one balance
	// WHEN: A transaction writes a balance, a request, and a history entry,
	//       then fails
	// THEN: None of the writes survive

	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.PutBalance(ctx, leave.BalanceEntry{
		EmployeeID: "emp-1", Type: leave.Vacation,
		Allocated: decimal.NewFromInt(15),
	}))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s leave.Store) error {
		entry, err := s.GetBalance(ctx, "emp-1", leave.Vacation)
		if err != nil {
			return err
		}
		entry.Pending = decimal.NewFromInt(3)
		if err := s.PutBalance(ctx, entry); err != nil {
			return err
		}
		if err := s.PutRequest(ctx, leave.LeaveRequest{ID: "REQ-emp-1-20250317", EmployeeID: "emp-1"}); err != nil {
			return err
		}
		if err := s.AppendHistory(ctx, leave.HistoryEntry{ID: "h-1", EmployeeID: "emp-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	entry, err := store.GetBalance(ctx, "emp-1", leave.Vacation)
	require.NoError(t, err)
	assert.True(t, entry.Pending.IsZero())

	_, err = store.GetRequest(ctx, "REQ-emp-1-20250317")
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)

	history, err := store.ListHistory(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemory_WithTx_ReadsSeeUncommittedWrites(t *testing.T) {
	// The callback must observe its own writes (the engine re-reads the
	// balance between ledger mutations).
	store := memory.New()
	ctx := context.Background()

	err := store.WithTx(ctx, func(s leave.Store) error {
		if err := s.PutBalance(ctx, leave.BalanceEntry{
			EmployeeID: "emp-1", Type: leave.Vacation,
			Allocated: decimal.NewFromInt(15),
		}); err != nil {
			return err
		}
		entry, err := s.GetBalance(ctx, "emp-1", leave.Vacation)
		if err != nil {
			return err
		}
		assert.True(t, entry.Allocated.Equal(decimal.NewFromInt(15)))
		return nil
	})
	require.NoError(t, err)
}
