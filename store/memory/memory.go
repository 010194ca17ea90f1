// Package memory provides an in-memory leave.TxStore for tests and
// development. Transactions are simulated with a full snapshot taken before
// the callback and restored on error.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type balanceKey struct {
	Employee leave.EmployeeID
	Type     leave.LeaveType
}

type Store struct {
	mu        sync.RWMutex
	employees map[leave.EmployeeID]leave.Employee
	balances  map[balanceKey]leave.BalanceEntry
	requests  map[leave.RequestID]leave.LeaveRequest
	history   []leave.HistoryEntry
}

func New() *Store {
	return &Store{
		employees: make(map[leave.EmployeeID]leave.Employee),
		balances:  make(map[balanceKey]leave.BalanceEntry),
		requests:  make(map[leave.RequestID]leave.LeaveRequest),
	}
}

var _ leave.TxStore = (*Store)(nil)

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) GetEmployee(_ context.Context, id leave.EmployeeID) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployeeLocked(id)
}

func (s *Store) getEmployeeLocked(id leave.EmployeeID) (leave.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	return e, nil
}

func (s *Store) PutEmployee(_ context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
	return nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(_ context.Context, id leave.EmployeeID, lt leave.LeaveType) (leave.BalanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBalanceLocked(id, lt)
}

func (s *Store) getBalanceLocked(id leave.EmployeeID, lt leave.LeaveType) (leave.BalanceEntry, error) {
	entry, ok := s.balances[balanceKey{Employee: id, Type: lt}]
	if !ok {
		return leave.BalanceEntry{}, leave.ErrEmployeeNotFound
	}
	return entry, nil
}

func (s *Store) PutBalance(_ context.Context, entry leave.BalanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBalanceLocked(entry)
	return nil
}

func (s *Store) putBalanceLocked(entry leave.BalanceEntry) {
	s.balances[balanceKey{Employee: entry.EmployeeID, Type: entry.Type}] = entry
}

func (s *Store) ListBalances(_ context.Context, id leave.EmployeeID) ([]leave.BalanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBalancesLocked(id), nil
}

func (s *Store) listBalancesLocked(id leave.EmployeeID) []leave.BalanceEntry {
	var entries []leave.BalanceEntry
	for _, lt := range leave.AllLeaveTypes {
		if entry, ok := s.balances[balanceKey{Employee: id, Type: lt}]; ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) GetRequest(_ context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequestLocked(id)
}

func (s *Store) getRequestLocked(id leave.RequestID) (leave.LeaveRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return leave.LeaveRequest{}, leave.ErrRequestNotFound
	}
	return req, nil
}

func (s *Store) PutRequest(_ context.Context, req leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *Store) ListRequests(_ context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequestsLocked(filter), nil
}

func (s *Store) listRequestsLocked(filter leave.RequestFilter) []leave.LeaveRequest {
	var result []leave.LeaveRequest
	for _, req := range s.requests {
		if filter.EmployeeID != nil && req.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if filter.Year != nil && req.StartDate.Year() != *filter.Year {
			continue
		}
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// =============================================================================
// HISTORY (append-only)
// =============================================================================

func (s *Store) AppendHistory(_ context.Context, entry leave.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *Store) ListHistory(_ context.Context, id leave.EmployeeID) ([]leave.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listHistoryLocked(id), nil
}

func (s *Store) listHistoryLocked(id leave.EmployeeID) []leave.HistoryEntry {
	var entries []leave.HistoryEntry
	for _, e := range s.history {
		if e.EmployeeID == id {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})
	return entries
}

// =============================================================================
// TRANSACTIONS - Snapshot and restore on error
// =============================================================================

// WithTx holds the store lock for the whole callback, so fn sees and writes
// a consistent state. On error every write is rolled back from the snapshot.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&txView{parent: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	employees map[leave.EmployeeID]leave.Employee
	balances  map[balanceKey]leave.BalanceEntry
	requests  map[leave.RequestID]leave.LeaveRequest
	history   []leave.HistoryEntry
}

func (s *Store) snapshot() storeSnapshot {
	snap := storeSnapshot{
		employees: make(map[leave.EmployeeID]leave.Employee, len(s.employees)),
		balances:  make(map[balanceKey]leave.BalanceEntry, len(s.balances)),
		requests:  make(map[leave.RequestID]leave.LeaveRequest, len(s.requests)),
		history:   append([]leave.HistoryEntry(nil), s.history...),
	}
	for k, v := range s.employees {
		snap.employees[k] = v
	}
	for k, v := range s.balances {
		snap.balances[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.employees = snap.employees
	s.balances = snap.balances
	s.requests = snap.requests
	s.history = snap.history
}

// txView gives the WithTx callback lock-free access to the already-locked
// parent store.
type txView struct {
	parent *Store
}

var _ leave.Store = (*txView)(nil)

func (v *txView) GetEmployee(_ context.Context, id leave.EmployeeID) (leave.Employee, error) {
	return v.parent.getEmployeeLocked(id)
}

func (v *txView) PutEmployee(_ context.Context, e leave.Employee) error {
	v.parent.employees[e.ID] = e
	return nil
}

func (v *txView) GetBalance(_ context.Context, id leave.EmployeeID, lt leave.LeaveType) (leave.BalanceEntry, error) {
	return v.parent.getBalanceLocked(id, lt)
}

func (v *txView) PutBalance(_ context.Context, entry leave.BalanceEntry) error {
	v.parent.putBalanceLocked(entry)
	return nil
}

func (v *txView) ListBalances(_ context.Context, id leave.EmployeeID) ([]leave.BalanceEntry, error) {
	return v.parent.listBalancesLocked(id), nil
}

func (v *txView) GetRequest(_ context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	return v.parent.getRequestLocked(id)
}

func (v *txView) PutRequest(_ context.Context, req leave.LeaveRequest) error {
	v.parent.requests[req.ID] = req
	return nil
}

func (v *txView) ListRequests(_ context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	return v.parent.listRequestsLocked(filter), nil
}

func (v *txView) AppendHistory(_ context.Context, entry leave.HistoryEntry) error {
	v.parent.history = append(v.parent.history, entry)
	return nil
}

func (v *txView) ListHistory(_ context.Context, id leave.EmployeeID) ([]leave.HistoryEntry, error) {
	return v.parent.listHistoryLocked(id), nil
}
