/*
Package sqlite provides a SQLite-backed leave.TxStore.

PURPOSE:
  Durable storage for employees, balances, requests, and history. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:  One row per initialized employee (tenure captured at init)
  balances:   One row per (employee, leave type); day counts stored as TEXT
              so decimal values round-trip exactly
  requests:   Latest request per derived id (ids are reused after terminal
              statuses; the history table keeps the full record)
  history:    Append-only transition journal - no UPDATE, no DELETE

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./leave.db")  // ":memory:" for tests
  engine := leave.NewEngine(store)

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Store implements leave.TxStore on SQLite.
type Store struct {
	db *sql.DB
}

var _ leave.TxStore = (*Store)(nil)

// New opens (and migrates) a SQLite database. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The engine serializes writers; a single connection keeps ":memory:"
	// databases from fragmenting across the pool.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tenure_years INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balances (
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		allocated TEXT NOT NULL,
		used TEXT NOT NULL,
		pending TEXT NOT NULL,
		PRIMARY KEY (employee_id, leave_type)
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		half_day INTEGER NOT NULL DEFAULT 0,
		days TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		manager_id TEXT,
		decision_notes TEXT,
		created_at TEXT NOT NULL,
		decided_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	-- Append-only transition journal
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		days TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		notes TEXT,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_employee
		ON history(employee_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_history_request
		ON history(request_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIER - Shared between the pool and an open transaction
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements leave.Store over any querier, so the direct store and
// the in-transaction view share one implementation.
type queries struct {
	q querier
}

var _ leave.Store = (*queries)(nil)

func (s *Store) view() *queries { return &queries{q: s.db} }

// =============================================================================
// EMPLOYEES
// =============================================================================

func (qs *queries) GetEmployee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error) {
	row := qs.q.QueryRowContext(ctx,
		`SELECT id, name, tenure_years, created_at FROM employees WHERE id = ?`, string(id))

	var e leave.Employee
	var createdAt string
	err := row.Scan(&e.ID, &e.Name, &e.TenureYears, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	if err != nil {
		return leave.Employee{}, err
	}
	e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	return e, err
}

func (qs *queries) PutEmployee(ctx context.Context, e leave.Employee) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO employees (id, name, tenure_years, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			tenure_years = excluded.tenure_years`,
		string(e.ID), e.Name, e.TenureYears, e.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// =============================================================================
// BALANCES
// =============================================================================

func (qs *queries) GetBalance(ctx context.Context, id leave.EmployeeID, lt leave.LeaveType) (leave.BalanceEntry, error) {
	row := qs.q.QueryRowContext(ctx, `
		SELECT employee_id, leave_type, allocated, used, pending
		FROM balances WHERE employee_id = ? AND leave_type = ?`,
		string(id), string(lt))
	entry, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.BalanceEntry{}, leave.ErrEmployeeNotFound
	}
	return entry, err
}

func (qs *queries) PutBalance(ctx context.Context, entry leave.BalanceEntry) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO balances (employee_id, leave_type, allocated, used, pending)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, leave_type) DO UPDATE SET
			allocated = excluded.allocated,
			used = excluded.used,
			pending = excluded.pending`,
		string(entry.EmployeeID), string(entry.Type),
		entry.Allocated.String(), entry.Used.String(), entry.Pending.String())
	return err
}

func (qs *queries) ListBalances(ctx context.Context, id leave.EmployeeID) ([]leave.BalanceEntry, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT employee_id, leave_type, allocated, used, pending
		FROM balances WHERE employee_id = ? ORDER BY leave_type`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []leave.BalanceEntry
	for rows.Next() {
		entry, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBalance(row scanner) (leave.BalanceEntry, error) {
	var entry leave.BalanceEntry
	var allocated, used, pending string
	if err := row.Scan(&entry.EmployeeID, &entry.Type, &allocated, &used, &pending); err != nil {
		return leave.BalanceEntry{}, err
	}
	var err error
	if entry.Allocated, err = decimal.NewFromString(allocated); err != nil {
		return leave.BalanceEntry{}, err
	}
	if entry.Used, err = decimal.NewFromString(used); err != nil {
		return leave.BalanceEntry{}, err
	}
	if entry.Pending, err = decimal.NewFromString(pending); err != nil {
		return leave.BalanceEntry{}, err
	}
	return entry, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, leave_type, start_date, end_date,
	half_day, days, status, reason, manager_id, decision_notes, created_at, decided_at`

func (qs *queries) GetRequest(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	row := qs.q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, string(id))
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveRequest{}, leave.ErrRequestNotFound
	}
	return req, err
}

func (qs *queries) PutRequest(ctx context.Context, req leave.LeaveRequest) error {
	var decidedAt any
	if req.DecidedAt != nil {
		decidedAt = req.DecidedAt.Format(time.RFC3339Nano)
	}
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			leave_type = excluded.leave_type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			half_day = excluded.half_day,
			days = excluded.days,
			status = excluded.status,
			reason = excluded.reason,
			manager_id = excluded.manager_id,
			decision_notes = excluded.decision_notes,
			created_at = excluded.created_at,
			decided_at = excluded.decided_at`,
		string(req.ID), string(req.EmployeeID), string(req.Type),
		req.StartDate.String(), req.EndDate.String(),
		boolToInt(req.HalfDay), req.Days.String(), string(req.Status),
		req.Reason, req.ManagerID, req.DecisionNotes,
		req.CreatedAt.Format(time.RFC3339Nano), decidedAt)
	return err
}

func (qs *queries) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []any
	if filter.EmployeeID != nil {
		query += ` AND employee_id = ?`
		args = append(args, string(*filter.EmployeeID))
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.Year != nil {
		query += ` AND start_date LIKE ?`
		args = append(args, fmt.Sprintf("%04d-%%", *filter.Year))
	}
	query += ` ORDER BY created_at`

	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row scanner) (leave.LeaveRequest, error) {
	var req leave.LeaveRequest
	var startDate, endDate, days, createdAt string
	var halfDay int
	var reason, managerID, notes, decidedAt sql.NullString

	err := row.Scan(&req.ID, &req.EmployeeID, &req.Type, &startDate, &endDate,
		&halfDay, &days, &req.Status, &reason, &managerID, &notes, &createdAt, &decidedAt)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	if req.StartDate, err = leave.ParseDate(startDate); err != nil {
		return leave.LeaveRequest{}, err
	}
	if req.EndDate, err = leave.ParseDate(endDate); err != nil {
		return leave.LeaveRequest{}, err
	}
	if req.Days, err = decimal.NewFromString(days); err != nil {
		return leave.LeaveRequest{}, err
	}
	if req.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return leave.LeaveRequest{}, err
	}
	req.HalfDay = halfDay != 0
	req.Reason = reason.String
	req.ManagerID = managerID.String
	req.DecisionNotes = notes.String
	if decidedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, decidedAt.String)
		if err != nil {
			return leave.LeaveRequest{}, err
		}
		req.DecidedAt = &t
	}
	return req, nil
}

// =============================================================================
// HISTORY (append-only: INSERT is the only statement touching this table)
// =============================================================================

func (qs *queries) AppendHistory(ctx context.Context, entry leave.HistoryEntry) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO history (id, request_id, employee_id, leave_type, days,
			from_status, to_status, actor, notes, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.RequestID), string(entry.EmployeeID),
		string(entry.Type), entry.Days.String(), string(entry.FromStatus),
		string(entry.ToStatus), entry.Actor, entry.Notes,
		entry.OccurredAt.Format(time.RFC3339Nano))
	return err
}

func (qs *queries) ListHistory(ctx context.Context, id leave.EmployeeID) ([]leave.HistoryEntry, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT id, request_id, employee_id, leave_type, days,
			from_status, to_status, actor, notes, occurred_at
		FROM history WHERE employee_id = ? ORDER BY occurred_at`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []leave.HistoryEntry
	for rows.Next() {
		var e leave.HistoryEntry
		var days, occurredAt string
		var notes sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.EmployeeID, &e.Type, &days,
			&e.FromStatus, &e.ToStatus, &e.Actor, &notes, &occurredAt); err != nil {
			return nil, err
		}
		if e.Days, err = decimal.NewFromString(days); err != nil {
			return nil, err
		}
		if e.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, err
		}
		e.Notes = notes.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// STORE - Direct (non-transactional) access delegates to the shared queries
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error) {
	return s.view().GetEmployee(ctx, id)
}

func (s *Store) PutEmployee(ctx context.Context, e leave.Employee) error {
	return s.view().PutEmployee(ctx, e)
}

func (s *Store) GetBalance(ctx context.Context, id leave.EmployeeID, lt leave.LeaveType) (leave.BalanceEntry, error) {
	return s.view().GetBalance(ctx, id, lt)
}

func (s *Store) PutBalance(ctx context.Context, entry leave.BalanceEntry) error {
	return s.view().PutBalance(ctx, entry)
}

func (s *Store) ListBalances(ctx context.Context, id leave.EmployeeID) ([]leave.BalanceEntry, error) {
	return s.view().ListBalances(ctx, id)
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	return s.view().GetRequest(ctx, id)
}

func (s *Store) PutRequest(ctx context.Context, req leave.LeaveRequest) error {
	return s.view().PutRequest(ctx, req)
}

func (s *Store) ListRequests(ctx context.Context, filter leave.RequestFilter) ([]leave.LeaveRequest, error) {
	return s.view().ListRequests(ctx, filter)
}

func (s *Store) AppendHistory(ctx context.Context, entry leave.HistoryEntry) error {
	return s.view().AppendHistory(ctx, entry)
}

func (s *Store) ListHistory(ctx context.Context, id leave.EmployeeID) ([]leave.HistoryEntry, error) {
	return s.view().ListHistory(ctx, id)
}

// WithTx runs fn inside a database transaction. Rolls back on error.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
