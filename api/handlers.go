/*
handlers.go - HTTP handlers for the leave engine

PURPOSE:
  Exposes the engine via REST. Handlers parse and validate input, delegate
  to the engine, and translate domain errors to HTTP statuses.

ENDPOINTS:
  POST /api/employees                      Initialize balance
  GET  /api/employees/{id}/balance         Balance per leave type
  GET  /api/employees/{id}/history         Requests + transition journal
  POST /api/employees/{id}/requests        Submit a request
  GET  /api/requests/pending               Pending requests (manager scoped)
  POST /api/requests/{id}/approve          Approve
  POST /api/requests/{id}/reject           Reject
  POST /api/requests/{id}/cancel           Cancel (owner only)
  POST /api/admin/reset                    Policy-year reset
  GET  /api/leave-types                    Policy catalog

ERROR HANDLING:
  400: Validation errors (bad dates, half-day over a range, unknown type)
  403: Ownership violation on cancel
  404: Unknown employee or request
  409: Conflict-class: duplicate, insufficient balance, invalid transition,
       already initialized, outstanding pending holds
  500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *leave.Engine
	Log    zerolog.Logger
}

func NewHandler(engine *leave.Engine, log zerolog.Logger) *Handler {
	return &Handler{Engine: engine, Log: log}
}

// =============================================================================
// EMPLOYEE / BALANCE HANDLERS
// =============================================================================

// InitializeBalance creates the ledger entries for a new employee.
func (h *Handler) InitializeBalance(w http.ResponseWriter, r *http.Request) {
	var req InitializeBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if req.TenureYears < 0 {
		writeError(w, http.StatusBadRequest, "tenure_years must be non-negative", nil)
		return
	}

	snapshots, err := h.Engine.InitializeBalance(r.Context(), leave.EmployeeID(req.ID), req.Name, req.TenureYears)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, BalanceSummaryDTO{
		EmployeeID: req.ID,
		Name:       req.Name,
		Balances:   toBalanceDTOs(snapshots),
	})
}

// GetBalance returns the per-type balance snapshot.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	snapshots, err := h.Engine.GetBalance(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	summary := BalanceSummaryDTO{EmployeeID: string(id), Balances: toBalanceDTOs(snapshots)}
	if emp, err := h.Engine.GetEmployee(r.Context(), id); err == nil {
		summary.Name = emp.Name
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetHistory returns the employee's requests and transition journal.
// Optional ?year=2025 keeps only requests starting that year.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = parsed
	}

	requests, err := h.Engine.History(r.Context(), id, year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	events, err := h.Engine.HistoryLog(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryDTO{
		EmployeeID: string(id),
		Requests:   toRequestDTOs(requests),
		Events:     toHistoryEntryDTOs(events),
	})
}

// =============================================================================
// REQUEST LIFECYCLE HANDLERS
// =============================================================================

// SubmitRequest opens a leave request for the employee in the URL.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))

	var body SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start, err := leave.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	end, err := leave.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date", err)
		return
	}

	id, err := h.Engine.SubmitRequest(r.Context(), leave.SubmitInput{
		EmployeeID: employeeID,
		Type:       leave.LeaveType(body.Type),
		StartDate:  start,
		EndDate:    end,
		HalfDay:    body.HalfDay,
		Reason:     body.Reason,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	submitted, err := h.Engine.Request(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info().
		Str("request_id", string(id)).
		Str("employee_id", string(employeeID)).
		Str("type", body.Type).
		Msg("leave request submitted")

	writeJSON(w, http.StatusCreated, SubmitResponseDTO{
		RequestID: string(id),
		Status:    string(submitted.Status),
		Days:      decToFloat(submitted.Days),
	})
}

// ListPendingRequests returns PENDING requests, optionally scoped to a
// manager's team via ?manager_id=.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	managerID := r.URL.Query().Get("manager_id")

	requests, err := h.Engine.PendingRequests(r.Context(), managerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PendingListDTO{
		Count:    len(requests),
		Requests: toRequestDTOs(requests),
	})
}

// ApproveRequest approves a pending request.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body DecisionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.ManagerID == "" {
		writeError(w, http.StatusBadRequest, "manager_id is required", nil)
		return
	}

	if err := h.Engine.ApproveRequest(r.Context(), id, body.ManagerID, body.Notes); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info().
		Str("request_id", string(id)).
		Str("manager_id", body.ManagerID).
		Msg("leave request approved")
	w.WriteHeader(http.StatusNoContent)
}

// RejectRequest rejects a pending request. A reason is required.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body DecisionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.ManagerID == "" {
		writeError(w, http.StatusBadRequest, "manager_id is required", nil)
		return
	}
	if body.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required", nil)
		return
	}

	if err := h.Engine.RejectRequest(r.Context(), id, body.ManagerID, body.Reason); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info().
		Str("request_id", string(id)).
		Str("manager_id", body.ManagerID).
		Msg("leave request rejected")
	w.WriteHeader(http.StatusNoContent)
}

// CancelRequest cancels a pending or approved request; only the owner may
// cancel.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body CancelRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	if err := h.Engine.CancelRequest(r.Context(), id, leave.EmployeeID(body.EmployeeID)); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.Info().
		Str("request_id", string(id)).
		Str("employee_id", body.EmployeeID).
		Msg("leave request cancelled")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN / CATALOG HANDLERS
// =============================================================================

// ResetPolicyYear starts a new entitlement year for one employee.
func (h *Handler) ResetPolicyYear(w http.ResponseWriter, r *http.Request) {
	var body ResetRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	snapshots, err := h.Engine.ResetPolicyYear(r.Context(), leave.EmployeeID(body.EmployeeID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceSummaryDTO{
		EmployeeID: body.EmployeeID,
		Balances:   toBalanceDTOs(snapshots),
	})
}

// ListLeaveTypes returns the policy catalog.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	table := h.Engine.Policies()

	dtos := make([]LeaveTypeDTO, 0, len(leave.AllLeaveTypes))
	for _, lt := range leave.AllLeaveTypes {
		policy, _ := table.Lookup(lt)
		dto := LeaveTypeDTO{
			Type:         string(lt),
			Name:         policy.Name,
			Tiered:       policy.Tiered,
			CarryOverCap: decToFloat(policy.CarryOverCap),
			Unbounded:    policy.Unbounded,
		}
		if !policy.Tiered && !policy.Unbounded {
			annual := decToFloat(policy.AnnualAllocation)
			dto.Annual = &annual
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ERROR MAPPING & RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leave.ErrInvalidDateRange),
		errors.Is(err, leave.ErrInvalidHalfDayRange),
		errors.Is(err, leave.ErrEmptyDateRange),
		errors.Is(err, leave.ErrUnknownLeaveType):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, leave.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case leave.IsClientError(err):
		// Conflict-class: caller is out of sync with current state.
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.Log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := ErrorResponse{Error: msg}
	if err != nil {
		body.Error = msg + ": " + err.Error()
	}
	writeJSON(w, status, body)
}
