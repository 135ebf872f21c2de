/*
Package factory provides JSON to Go schedule conversion.

PURPOSE:
  Converts JSON tenancy setup definitions into a generated charge schedule.
  This lets the admin UI (or seed data) describe a contract without code
  changes: start date, number of periods, base rent, occupant count, and
  any recurring itemized extras.

JSON SCHEMA:
  {
    "start_date": "2026-01-01",
    "periods": 12,
    "base_amount": 1000,
    "occupant_count": 2,
    "recurring_extras": [
      {"label": "water", "amount": 35.50},
      {"label": "parking", "amount": 80}
    ]
  }

USAGE:
  f := factory.NewScheduleFactory()
  charges, occupants, err := f.ParseSchedule(jsonString)

SEE ALSO:
  - ledger/schedule.go: The underlying generator and its validation rules
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a tenancy's charge schedule setup.
type ScheduleJSON struct {
	StartDate       string      `json:"start_date"`
	Periods         int         `json:"periods"`
	BaseAmount      float64     `json:"base_amount"`
	OccupantCount   int         `json:"occupant_count,omitempty"`
	RecurringExtras []ExtraJSON `json:"recurring_extras,omitempty"`
}

// ExtraJSON is one recurring itemized supplemental charge.
type ExtraJSON struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedule definitions into charge schedules.
type ScheduleFactory struct{}

// NewScheduleFactory creates a new schedule factory.
func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule parses a JSON schedule definition and generates its charges.
// Returns the generated charges and the occupant count (minimum 1).
func (f *ScheduleFactory) ParseSchedule(raw string) ([]*ledger.Charge, int, error) {
	var def ScheduleJSON
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return nil, 0, fmt.Errorf("invalid schedule JSON: %w", err)
	}
	return f.Build(def)
}

// Build generates the charge schedule from an already-decoded definition.
func (f *ScheduleFactory) Build(def ScheduleJSON) ([]*ledger.Charge, int, error) {
	var start ledger.Date
	if def.StartDate != "" {
		parsed, err := ledger.ParseDate(def.StartDate)
		if err != nil {
			return nil, 0, &ledger.ValidationError{Field: "start_date", Message: "use YYYY-MM-DD"}
		}
		start = parsed
	}

	extras := make([]ledger.ExtraItem, 0, len(def.RecurringExtras))
	for _, e := range def.RecurringExtras {
		extras = append(extras, ledger.ExtraItem{
			Label:  e.Label,
			Amount: decimal.NewFromFloat(e.Amount),
		})
	}

	charges, err := ledger.GenerateSchedule(start, def.Periods, decimal.NewFromFloat(def.BaseAmount), extras)
	if err != nil {
		return nil, 0, err
	}

	occupants := def.OccupantCount
	if occupants < 1 {
		occupants = 1
	}
	for _, c := range charges {
		ledger.EnsureOccupantMap(c, occupants)
	}
	return charges, occupants, nil
}
