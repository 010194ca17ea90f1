/*
store.go - Persistence interface for the leave engine

PURPOSE:
  Defines the repository contract between the engine and storage. The
  engine never touches a database directly; it is handed a TxStore and
  performs every lifecycle transition inside WithTx so that the ledger
  mutation, request update, and history append land together or not at all.

MUTABILITY CONTRACT:
  - Balances and requests are upserted (PutBalance/PutRequest). A request
    id is reused after the prior holder reaches a terminal status; the
    store keeps only the latest request per id.
  - History is APPEND-ONLY: no update, no delete.

IMPLEMENTATIONS:
  - store/memory: In-memory with snapshot/rollback transactions
  - store/sqlite: SQLite with real transactions (WAL mode)

SEE ALSO:
  - engine.go: The only writer
  - ledger.go: Balance access patterns
*/
package leave

import "context"

// =============================================================================
// STORE - Repository contract
// =============================================================================

type Store interface {
	// Employees
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error) // ErrEmployeeNotFound
	PutEmployee(ctx context.Context, e Employee) error

	// Balances
	GetBalance(ctx context.Context, id EmployeeID, lt LeaveType) (BalanceEntry, error) // ErrEmployeeNotFound
	PutBalance(ctx context.Context, entry BalanceEntry) error
	ListBalances(ctx context.Context, id EmployeeID) ([]BalanceEntry, error)

	// Requests. GetRequest returns the latest request holding the id.
	GetRequest(ctx context.Context, id RequestID) (LeaveRequest, error) // ErrRequestNotFound
	PutRequest(ctx context.Context, req LeaveRequest) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)

	// History (append-only)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	ListHistory(ctx context.Context, id EmployeeID) ([]HistoryEntry, error)
}

// RequestFilter narrows ListRequests. Nil fields match everything.
// Results are ordered by CreatedAt ascending.
type RequestFilter struct {
	EmployeeID *EmployeeID
	Status     *RequestStatus
	Year       *int // filters on StartDate year
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore adds atomic multi-write support. Every lifecycle transition runs
// inside WithTx: if fn returns an error the store rolls back everything fn
// wrote.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
