/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's decimal-based domain model from the external API contract;
  amounts cross the wire as floats, but all arithmetic stays in decimal on
  the inside.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: ScheduleJSON type embedded in tenancy creation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// TenancyDTO represents a tenancy record in API responses.
type TenancyDTO struct {
	ID             string  `json:"id"`
	PropertyName   string  `json:"property_name"`
	TenantName     string  `json:"tenant_name"`
	OccupantCount  int     `json:"occupant_count"`
	StartDate      string  `json:"start_date"`
	Overflow       float64 `json:"overflow"`
	DepositBalance float64 `json:"deposit_balance"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// CreateTenancyRequest creates a tenancy together with its generated
// charge schedule.
type CreateTenancyRequest struct {
	PropertyName string               `json:"property_name"`
	TenantName   string               `json:"tenant_name"`
	Schedule     factory.ScheduleJSON `json:"schedule"`
}

// ChargeDTO represents one charge in API responses.
type ChargeDTO struct {
	ID               string             `json:"id"`
	DueDate          string             `json:"due_date"`
	BaseAmount       float64            `json:"base_amount"`
	ExtraAmount      float64            `json:"extra_amount"`
	GrossAmount      float64            `json:"gross_amount"`
	PaidAmount       float64            `json:"paid_amount"`
	Status           string             `json:"status"`
	SequenceIndex    int                `json:"sequence_index,omitempty"`
	Extras           []ExtraDTO         `json:"extras,omitempty"`
	OccupantPayments map[int]float64    `json:"occupant_payments,omitempty"`
}

// ExtraDTO is one itemized supplemental charge.
type ExtraDTO struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// SessionStateDTO is the full working state of an open edit session.
type SessionStateDTO struct {
	TenancyID         string            `json:"tenancy_id"`
	OccupantCount     int               `json:"occupant_count"`
	Charges           []ChargeDTO       `json:"charges"`
	CommittedOverflow float64           `json:"committed_overflow"`
	PendingOverflow   float64           `json:"pending_overflow"`
	PendingRefunds    map[string]float64 `json:"pending_refunds,omitempty"`
	DepositDelta      float64           `json:"deposit_delta"`
	CanUndo           bool              `json:"can_undo"`
	CanRedo           bool              `json:"can_redo"`
}

// ApplyPaymentRequest applies a signed payment within a session.
type ApplyPaymentRequest struct {
	Amount   float64 `json:"amount"`
	Occupant *int    `json:"occupant,omitempty"` // nil = all occupants
	Kind     string  `json:"kind,omitempty"`     // "rent" (default) or "deposit"
}

// PaymentResultDTO reports what a payment did. A nonzero unresolved amount
// is a partial-success warning, not an error.
type PaymentResultDTO struct {
	Requested  float64          `json:"requested"`
	Applied    float64          `json:"applied"`
	Unresolved float64          `json:"unresolved,omitempty"`
	Warning    string           `json:"warning,omitempty"`
	State      *SessionStateDTO `json:"state"`
}

// EditAmountRequest changes a charge's base amount.
type EditAmountRequest struct {
	BaseAmount float64 `json:"base_amount"`
}

// EditDueDateRequest moves a charge's due date.
type EditDueDateRequest struct {
	DueDate string `json:"due_date"` // YYYY-MM-DD
}

// InsertChargeRequest inserts a charge after an anchor.
type InsertChargeRequest struct {
	AfterID      string `json:"after_id"`
	Supplemental bool   `json:"supplemental"`
}

// AddExtraRequest appends an itemized extra to a charge.
type AddExtraRequest struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// CommitResultDTO summarizes a successful commit.
type CommitResultDTO struct {
	Upserted    int     `json:"upserted"`
	Deleted     int     `json:"deleted"`
	Swept       float64 `json:"swept"`
	NewOverflow float64 `json:"new_overflow"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ID string `json:"id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTenancyDTO(t sqlite.Tenancy) TenancyDTO {
	return TenancyDTO{
		ID:             string(t.ID),
		PropertyName:   t.PropertyName,
		TenantName:     t.TenantName,
		OccupantCount:  t.OccupantCount,
		StartDate:      t.StartDate.String(),
		Overflow:       toFloat(t.Overflow),
		DepositBalance: toFloat(t.DepositBalance),
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
	}
}

func toChargeDTO(c *ledger.Charge) ChargeDTO {
	dto := ChargeDTO{
		ID:            string(c.ID),
		DueDate:       c.DueDate.String(),
		BaseAmount:    toFloat(c.BaseAmount),
		ExtraAmount:   toFloat(c.ExtraAmount()),
		GrossAmount:   toFloat(c.Gross()),
		PaidAmount:    toFloat(c.PaidAmount),
		Status:        string(c.Status),
		SequenceIndex: c.SequenceIndex,
	}
	for _, e := range c.Extras {
		dto.Extras = append(dto.Extras, ExtraDTO{Label: e.Label, Amount: toFloat(e.Amount)})
	}
	if len(c.OccupantPayments) > 0 {
		dto.OccupantPayments = make(map[int]float64, len(c.OccupantPayments))
		for slot, v := range c.OccupantPayments {
			dto.OccupantPayments[slot] = toFloat(v)
		}
	}
	return dto
}

func toSessionStateDTO(s *ledger.Session) *SessionStateDTO {
	ov := s.OverflowState()
	state := &SessionStateDTO{
		TenancyID:         string(s.TenancyID()),
		OccupantCount:     s.OccupantCount(),
		Charges:           make([]ChargeDTO, 0, len(s.Charges())),
		CommittedOverflow: toFloat(ov.Committed),
		PendingOverflow:   toFloat(ov.PendingDelta),
		DepositDelta:      toFloat(s.DepositDelta()),
		CanUndo:           s.CanUndo(),
		CanRedo:           s.CanRedo(),
	}
	for _, c := range s.Charges() {
		state.Charges = append(state.Charges, toChargeDTO(c))
	}
	if refunds := s.PendingRefunds(); len(refunds) > 0 {
		state.PendingRefunds = make(map[string]float64, len(refunds))
		for id, v := range refunds {
			state.PendingRefunds[string(id)] = toFloat(v)
		}
	}
	return state
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
