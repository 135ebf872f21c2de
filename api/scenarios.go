/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a tenancy with a
	charge schedule and drives a real edit session against it, so the data
	you see is data the engine itself produced.

AVAILABLE SCENARIOS:

	new-tenancy:          Fresh 12-month schedule, two on-time payments
	overpayment-overflow: Lump-sum payment, leftover banked as overflow
	shared-tenancy:       Three occupants, targeted per-occupant payments
	mid-lease-adjustment: Amount edits and itemized extras with redistribution
	arrears-clawback:     Bounced payment reversed against newest charges

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create tenancy + schedule via factory
 3. Open an edit session and apply payments/edits
 4. Commit the session

USAGE VIA API:

	POST /api/scenarios/load
	{"id": "shared-tenancy"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared response helpers
  - factory/schedule.go: Schedule JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-tenancy",
		Name:        "New Tenancy",
		Description: "Fresh 12-month schedule with two on-time payments",
	},
	{
		ID:          "overpayment-overflow",
		Name:        "Overpayment & Overflow",
		Description: "Lump-sum payment clears the whole schedule, excess banked as overflow",
	},
	{
		ID:          "shared-tenancy",
		Name:        "Shared Tenancy",
		Description: "Three occupants with aggregate and targeted per-occupant payments",
	},
	{
		ID:          "mid-lease-adjustment",
		Name:        "Mid-Lease Adjustment",
		Description: "Rent change and itemized extras with paid-amount redistribution",
	},
	{
		ID:          "arrears-clawback",
		Name:        "Arrears Clawback",
		Description: "Bounced payment reversed against overflow and newest charges",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// ResetDatabase clears all data. Development/demo only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.sessions = make(map[ledger.TenancyID]*ledger.Session)
	h.mu.Unlock()
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.sessions = make(map[ledger.TenancyID]*ledger.Session)
	h.mu.Unlock()
	h.currentScenario = "" // Clear current scenario on reset

	var err error
	switch req.ID {
	case "new-tenancy":
		err = h.loadNewTenancyScenario(ctx)
	case "overpayment-overflow":
		err = h.loadOverpaymentScenario(ctx)
	case "shared-tenancy":
		err = h.loadSharedTenancyScenario(ctx)
	case "mid-lease-adjustment":
		err = h.loadMidLeaseAdjustmentScenario(ctx)
	case "arrears-clawback":
		err = h.loadArrearsClawbackScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedTenancy creates a tenancy record plus its generated schedule and
// returns the tenancy ID.
func (h *Handler) seedTenancy(ctx context.Context, id, property, tenant string, def factory.ScheduleJSON) (ledger.TenancyID, error) {
	charges, occupants, err := h.ScheduleFactory.Build(def)
	if err != nil {
		return "", err
	}
	start, err := ledger.ParseDate(def.StartDate)
	if err != nil {
		return "", err
	}

	t := sqlite.Tenancy{
		ID:             ledger.TenancyID(id),
		PropertyName:   property,
		TenantName:     tenant,
		OccupantCount:  occupants,
		StartDate:      start,
		Overflow:       decimal.Zero,
		DepositBalance: decimal.Zero,
	}
	if err := h.Store.CreateTenancy(ctx, t); err != nil {
		return "", err
	}
	if err := h.Store.SeedCharges(ctx, t.ID, charges); err != nil {
		return "", err
	}
	return t.ID, nil
}

// monthsAgo returns the first day of the month n months before today.
func monthsAgo(n int) ledger.Date {
	now := time.Now().UTC()
	return ledger.NewDate(now.Year(), now.Month(), 1).AddMonths(-n)
}

func (h *Handler) loadNewTenancyScenario(ctx context.Context) error {
	// 12 monthly charges of 1200, started three months ago
	id, err := h.seedTenancy(ctx, "ten-001", "14 Elm Street, Flat 2", "Alice Johnson", factory.ScheduleJSON{
		StartDate:     monthsAgo(3).String(),
		Periods:       12,
		BaseAmount:    1200,
		OccupantCount: 1,
	})
	if err != nil {
		return err
	}

	s, err := ledger.Open(ctx, h.Store, id)
	if err != nil {
		return err
	}
	// Two on-time rent payments; third month left outstanding
	for i := 0; i < 2; i++ {
		if _, err := s.ApplyPayment(decimal.NewFromInt(1200), nil, ledger.PaymentRent); err != nil {
			return err
		}
	}
	_, err = s.Commit(ctx)
	return err
}

func (h *Handler) loadOverpaymentScenario(ctx context.Context) error {
	id, err := h.seedTenancy(ctx, "ten-002", "9 Harbor View", "Ben Okafor", factory.ScheduleJSON{
		StartDate:     monthsAgo(4).String(),
		Periods:       6,
		BaseAmount:    950,
		OccupantCount: 1,
	})
	if err != nil {
		return err
	}

	s, err := ledger.Open(ctx, h.Store, id)
	if err != nil {
		return err
	}
	// Lump sum clearing the whole 5700 schedule with 300 left over; the
	// excess persists as overflow because no charge remains to sweep into
	if _, err := s.ApplyPayment(decimal.NewFromInt(6000), nil, ledger.PaymentRent); err != nil {
		return err
	}
	_, err = s.Commit(ctx)
	return err
}

func (h *Handler) loadSharedTenancyScenario(ctx context.Context) error {
	id, err := h.seedTenancy(ctx, "ten-003", "The Old Mill, Unit 5", "Chen / Dubois / Evans", factory.ScheduleJSON{
		StartDate:     monthsAgo(2).String(),
		Periods:       12,
		BaseAmount:    1800,
		OccupantCount: 3,
	})
	if err != nil {
		return err
	}

	s, err := ledger.Open(ctx, h.Store, id)
	if err != nil {
		return err
	}
	// One aggregate payment covering the first month
	if _, err := s.ApplyPayment(decimal.NewFromInt(1800), nil, ledger.PaymentRent); err != nil {
		return err
	}
	// Occupants 0 and 1 pay their 600 share of month two; occupant 2 is behind
	slot0, slot1 := 0, 1
	if _, err := s.ApplyPayment(decimal.NewFromInt(600), &slot0, ledger.PaymentRent); err != nil {
		return err
	}
	if _, err := s.ApplyPayment(decimal.NewFromInt(600), &slot1, ledger.PaymentRent); err != nil {
		return err
	}
	_, err = s.Commit(ctx)
	return err
}

func (h *Handler) loadMidLeaseAdjustmentScenario(ctx context.Context) error {
	id, err := h.seedTenancy(ctx, "ten-004", "22 Birch Lane", "Dana Whitfield", factory.ScheduleJSON{
		StartDate:     monthsAgo(3).String(),
		Periods:       12,
		BaseAmount:    1100,
		OccupantCount: 1,
		RecurringExtras: []factory.ExtraJSON{
			{Label: "Parking", Amount: 50},
		},
	})
	if err != nil {
		return err
	}

	s, err := ledger.Open(ctx, h.Store, id)
	if err != nil {
		return err
	}
	if _, err := s.ApplyPayment(decimal.NewFromInt(2300), nil, ledger.PaymentRent); err != nil {
		return err
	}
	// Rent increase from the third charge onward, plus a one-off repair
	charges := s.Charges()
	if len(charges) >= 3 {
		third := charges[2]
		if err := s.EditChargeAmount(third.ID, decimal.NewFromInt(1200)); err != nil {
			return err
		}
		if err := s.AddExtra(third.ID, ledger.ExtraItem{
			Label:  "Window repair",
			Amount: decimal.NewFromInt(85),
		}); err != nil {
			return err
		}
	}
	_, err = s.Commit(ctx)
	return err
}

func (h *Handler) loadArrearsClawbackScenario(ctx context.Context) error {
	id, err := h.seedTenancy(ctx, "ten-005", "3 Station Road", "Musa Traore", factory.ScheduleJSON{
		StartDate:     monthsAgo(5).String(),
		Periods:       8,
		BaseAmount:    1000,
		OccupantCount: 1,
	})
	if err != nil {
		return err
	}

	s, err := ledger.Open(ctx, h.Store, id)
	if err != nil {
		return err
	}
	// Four months paid, then one payment bounces
	if _, err := s.ApplyPayment(decimal.NewFromInt(4000), nil, ledger.PaymentRent); err != nil {
		return err
	}
	if _, err := s.ApplyPayment(decimal.NewFromInt(-1000), nil, ledger.PaymentRent); err != nil {
		return err
	}
	_, err = s.Commit(ctx)
	return err
}
