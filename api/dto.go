/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication. These types decouple the internal
  domain model from the external contract; day quantities cross the wire as
  float64 (0.5 for half-days) while the core keeps exact decimals.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// InitializeBalanceRequest creates an employee's ledger entries.
type InitializeBalanceRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TenureYears int    `json:"tenure_years"`
}

// BalanceDTO is one leave type's balance. Remaining is null for unbounded
// types (unpaid).
type BalanceDTO struct {
	Type      string   `json:"type"`
	Allocated float64  `json:"allocated"`
	Used      float64  `json:"used"`
	Pending   float64  `json:"pending"`
	Remaining *float64 `json:"remaining"`
	Unbounded bool     `json:"unbounded,omitempty"`
}

// BalanceSummaryDTO is the full per-employee balance response.
type BalanceSummaryDTO struct {
	EmployeeID string       `json:"employee_id"`
	Name       string       `json:"name,omitempty"`
	Balances   []BalanceDTO `json:"balances"`
}

// SubmitRequestDTO opens a leave request.
type SubmitRequestDTO struct {
	Type      string `json:"type"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
	HalfDay   bool   `json:"half_day,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SubmitResponseDTO acknowledges a submission.
type SubmitResponseDTO struct {
	RequestID string  `json:"request_id"`
	Status    string  `json:"status"`
	Days      float64 `json:"days"`
}

// DecisionRequestDTO approves or rejects a request.
type DecisionRequestDTO struct {
	ManagerID string `json:"manager_id"`
	Notes     string `json:"notes,omitempty"`
	Reason    string `json:"reason,omitempty"` // rejections
}

// CancelRequestDTO cancels a request on behalf of its owner.
type CancelRequestDTO struct {
	EmployeeID string `json:"employee_id"`
}

// RequestDTO mirrors leave.LeaveRequest.
type RequestDTO struct {
	ID            string  `json:"id"`
	EmployeeID    string  `json:"employee_id"`
	Type          string  `json:"type"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	HalfDay       bool    `json:"half_day,omitempty"`
	Days          float64 `json:"days"`
	Status        string  `json:"status"`
	Reason        string  `json:"reason,omitempty"`
	ManagerID     string  `json:"manager_id,omitempty"`
	DecisionNotes string  `json:"decision_notes,omitempty"`
	CreatedAt     string  `json:"created_at"`
	DecidedAt     string  `json:"decided_at,omitempty"`
}

// PendingListDTO lists pending requests with a count (managers triage from
// the count).
type PendingListDTO struct {
	Count    int          `json:"count"`
	Requests []RequestDTO `json:"requests"`
}

// HistoryEntryDTO mirrors leave.HistoryEntry.
type HistoryEntryDTO struct {
	RequestID  string  `json:"request_id"`
	Type       string  `json:"type"`
	Days       float64 `json:"days"`
	FromStatus string  `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	Actor      string  `json:"actor"`
	Notes      string  `json:"notes,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}

// HistoryDTO is the chronological record for one employee: the requests
// themselves plus the transition journal.
type HistoryDTO struct {
	EmployeeID string            `json:"employee_id"`
	Requests   []RequestDTO      `json:"requests"`
	Events     []HistoryEntryDTO `json:"events"`
}

// LeaveTypeDTO describes one policy for the catalog endpoint.
type LeaveTypeDTO struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Tiered       bool     `json:"tiered,omitempty"`
	Annual       *float64 `json:"annual_allocation,omitempty"`
	CarryOverCap float64  `json:"carry_over_cap"`
	Unbounded    bool     `json:"unbounded,omitempty"`
}

// ResetRequestDTO triggers a policy-year reset.
type ResetRequestDTO struct {
	EmployeeID string `json:"employee_id"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBalanceDTOs(snapshots map[leave.LeaveType]leave.BalanceSnapshot) []BalanceDTO {
	dtos := make([]BalanceDTO, 0, len(snapshots))
	for _, lt := range leave.AllLeaveTypes {
		snap, ok := snapshots[lt]
		if !ok {
			continue
		}
		dto := BalanceDTO{
			Type:      string(lt),
			Allocated: decToFloat(snap.Allocated),
			Used:      decToFloat(snap.Used),
			Pending:   decToFloat(snap.Pending),
			Unbounded: snap.Unbounded,
		}
		if !snap.Unbounded {
			remaining := decToFloat(snap.Remaining)
			dto.Remaining = &remaining
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

func toRequestDTO(req leave.LeaveRequest) RequestDTO {
	dto := RequestDTO{
		ID:            string(req.ID),
		EmployeeID:    string(req.EmployeeID),
		Type:          string(req.Type),
		StartDate:     req.StartDate.String(),
		EndDate:       req.EndDate.String(),
		HalfDay:       req.HalfDay,
		Days:          decToFloat(req.Days),
		Status:        string(req.Status),
		Reason:        req.Reason,
		ManagerID:     req.ManagerID,
		DecisionNotes: req.DecisionNotes,
		CreatedAt:     req.CreatedAt.Format(time.RFC3339),
	}
	if req.DecidedAt != nil {
		dto.DecidedAt = req.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

func toRequestDTOs(requests []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	return dtos
}

func toHistoryEntryDTOs(entries []leave.HistoryEntry) []HistoryEntryDTO {
	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = HistoryEntryDTO{
			RequestID:  string(e.RequestID),
			Type:       string(e.Type),
			Days:       decToFloat(e.Days),
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Actor:      e.Actor,
			Notes:      e.Notes,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		}
	}
	return dtos
}

func decToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
