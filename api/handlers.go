/*
handlers.go - HTTP API handlers for the billing ledger engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the ledger engine.

ENDPOINTS:
  Tenancies:
    GET    /api/tenancies                List tenancy records
    POST   /api/tenancies                Create tenancy + generated schedule
    GET    /api/tenancies/{id}           Get tenancy details
    DELETE /api/tenancies/{id}           Delete tenancy and charges

  Edit sessions (one per tenancy, in-memory until commit):
    POST   /api/tenancies/{id}/session          Open session
    GET    /api/tenancies/{id}/session          Current working state
    DELETE /api/tenancies/{id}/session          Discard without committing
    POST   .../session/payments                 Apply signed payment
    POST   .../session/charges                  Insert charge after anchor
    DELETE .../session/charges/{chargeID}       Delete charge
    PUT    .../session/charges/{chargeID}/amount    Edit base amount
    PUT    .../session/charges/{chargeID}/due-date  Edit due date
    POST   .../session/charges/{chargeID}/extras    Add itemized extra
    DELETE .../session/charges/{chargeID}/extras/{index}
    POST   .../session/undo | /redo | /commit

  Scenarios:
    GET    /api/scenarios                List demo scenarios
    POST   /api/scenarios/load           Load a demo scenario

SESSION MODEL:
  The engine is single-editor by design. The handler keeps at most one open
  session per tenancy; opening twice returns the existing session's state,
  and discard/commit-then-close releases it. Sessions live only in process
  memory - a restart discards uncommitted edits, which is the documented
  cancellation semantics.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (rejected edits), invalid input
  - 404: Unknown tenancy/charge, no open session
  - 502: Persistence failures on commit (session preserved, retryable)
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store           *sqlite.Store
	ScheduleFactory *factory.ScheduleFactory

	mu       sync.Mutex
	sessions map[ledger.TenancyID]*ledger.Session

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:           store,
		ScheduleFactory: factory.NewScheduleFactory(),
		sessions:        make(map[ledger.TenancyID]*ledger.Session),
	}
}

// =============================================================================
// TENANCY HANDLERS
// =============================================================================

// ListTenancies returns all tenancy records.
func (h *Handler) ListTenancies(w http.ResponseWriter, r *http.Request) {
	tenancies, err := h.Store.ListTenancies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tenancies", err)
		return
	}

	dtos := make([]TenancyDTO, len(tenancies))
	for i, t := range tenancies {
		dtos[i] = toTenancyDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTenancy returns a single tenancy record.
func (h *Handler) GetTenancy(w http.ResponseWriter, r *http.Request) {
	id := ledger.TenancyID(chi.URLParam(r, "id"))

	t, err := h.Store.GetTenancy(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get tenancy", err)
		return
	}
	writeJSON(w, http.StatusOK, toTenancyDTO(*t))
}

// CreateTenancy creates a tenancy record together with its generated
// charge schedule.
func (h *Handler) CreateTenancy(w http.ResponseWriter, r *http.Request) {
	var req CreateTenancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PropertyName == "" || req.TenantName == "" {
		writeError(w, http.StatusBadRequest, "property_name and tenant_name are required", nil)
		return
	}

	charges, occupants, err := h.ScheduleFactory.Build(req.Schedule)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	start, _ := ledger.ParseDate(req.Schedule.StartDate)
	t := sqlite.Tenancy{
		ID:             ledger.TenancyID(ledger.NewChargeID()),
		PropertyName:   req.PropertyName,
		TenantName:     req.TenantName,
		OccupantCount:  occupants,
		StartDate:      start,
		Overflow:       decimal.Zero,
		DepositBalance: decimal.Zero,
	}
	if err := h.Store.CreateTenancy(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create tenancy", err)
		return
	}
	if err := h.Store.SeedCharges(r.Context(), t.ID, charges); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create schedule", err)
		return
	}

	created, err := h.Store.GetTenancy(r.Context(), t.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload tenancy", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTenancyDTO(*created))
}

// DeleteTenancy removes a tenancy, discarding any open session.
func (h *Handler) DeleteTenancy(w http.ResponseWriter, r *http.Request) {
	id := ledger.TenancyID(chi.URLParam(r, "id"))

	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()

	if err := h.Store.DeleteTenancy(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete tenancy", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// OpenSession starts (or returns the already-open) edit session for a tenancy.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	id := ledger.TenancyID(chi.URLParam(r, "id"))

	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[id]; ok {
		writeJSON(w, http.StatusOK, toSessionStateDTO(s))
		return
	}

	s, err := ledger.Open(r.Context(), h.Store, id)
	if err != nil {
		writeStoreError(w, "Failed to open session", err)
		return
	}
	h.sessions[id] = s
	writeJSON(w, http.StatusCreated, toSessionStateDTO(s))
}

// GetSession returns the current working state of an open session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// DiscardSession drops the session without committing. Always safe: all
// mutation happened on an in-memory copy.
func (h *Handler) DiscardSession(w http.ResponseWriter, r *http.Request) {
	id := ledger.TenancyID(chi.URLParam(r, "id"))

	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SESSION MUTATIONS
// =============================================================================

// ApplyPayment applies a signed payment within the session.
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	var req ApplyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind := ledger.PaymentKind(req.Kind)
	if kind == "" {
		kind = ledger.PaymentRent
	}

	result, err := s.ApplyPayment(decimal.NewFromFloat(req.Amount), req.Occupant, kind)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := PaymentResultDTO{
		Requested:  toFloat(result.Requested),
		Applied:    toFloat(result.Applied),
		Unresolved: toFloat(result.Unresolved),
		State:      toSessionStateDTO(s),
	}
	if result.Unresolved.IsPositive() {
		resp.Warning = fmt.Sprintf("%s could not be deducted: no paid funds left to refund from", result.Unresolved)
	}
	writeJSON(w, http.StatusOK, resp)
}

// InsertCharge adds a charge after an anchor charge.
func (h *Handler) InsertCharge(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	var req InsertChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := s.InsertCharge(ledger.ChargeID(req.AfterID), req.Supplemental)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Charge ChargeDTO        `json:"charge"`
		State  *SessionStateDTO `json:"state"`
	}{toChargeDTO(c), toSessionStateDTO(s)})
}

// DeleteCharge removes a charge from the working schedule.
func (h *Handler) DeleteCharge(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	if err := s.DeleteCharge(ledger.ChargeID(chi.URLParam(r, "chargeID"))); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// EditChargeAmount changes a charge's base amount.
func (h *Handler) EditChargeAmount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	var req EditAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := ledger.ChargeID(chi.URLParam(r, "chargeID"))
	if err := s.EditChargeAmount(id, decimal.NewFromFloat(req.BaseAmount)); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// EditChargeDueDate moves a charge's due date.
func (h *Handler) EditChargeDueDate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	var req EditDueDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := ledger.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date format (use YYYY-MM-DD)", err)
		return
	}

	id := ledger.ChargeID(chi.URLParam(r, "chargeID"))
	if err := s.EditChargeDueDate(id, date); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// AddExtra appends an itemized supplemental charge to a charge.
func (h *Handler) AddExtra(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	var req AddExtraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := ledger.ChargeID(chi.URLParam(r, "chargeID"))
	item := ledger.ExtraItem{Label: req.Label, Amount: decimal.NewFromFloat(req.Amount)}
	if err := s.AddExtra(id, item); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// RemoveExtra removes the itemized extra at the given index.
func (h *Handler) RemoveExtra(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	var index int
	if _, err := fmt.Sscanf(chi.URLParam(r, "index"), "%d", &index); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid extra index", err)
		return
	}

	id := ledger.ChargeID(chi.URLParam(r, "chargeID"))
	if err := s.RemoveExtra(id, index); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// Undo reverts the most recent mutation.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}
	s.Undo()
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// Redo reapplies the most recently undone mutation.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}
	s.Redo()
	writeJSON(w, http.StatusOK, toSessionStateDTO(s))
}

// Commit persists the session's diff. On persistence failure the session
// keeps all pending edits and the commit can be retried.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No open session for tenancy", nil)
		return
	}

	result, err := s.Commit(r.Context())
	if err != nil {
		if ledger.IsRetryable(err) {
			writeError(w, http.StatusBadGateway, "Commit failed; session preserved, retry is safe", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Commit failed", err)
		return
	}

	writeJSON(w, http.StatusOK, CommitResultDTO{
		Upserted:    result.Upserted,
		Deleted:     result.Deleted,
		Swept:       toFloat(result.Swept),
		NewOverflow: toFloat(result.NewOverflow),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) session(r *http.Request) (*ledger.Session, bool) {
	id := ledger.TenancyID(chi.URLParam(r, "id"))
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Edit rejected", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeStoreError(w http.ResponseWriter, message string, err error) {
	if ledger.IsNotFound(err) {
		writeError(w, http.StatusNotFound, message, err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}
