/*
schedule.go - Bulk charge schedule generation

PURPOSE:
  Generates the initial charge schedule at tenancy setup: N monthly charges
  starting from the contract start date, each carrying the base rent and an
  optional set of recurring itemized extras.
*/
package ledger

import "github.com/shopspring/decimal"

// GenerateSchedule creates periods monthly charges starting at start. Each
// charge carries base rent plus a copy of the recurring extras. Charges are
// created with placeholder IDs; they become permanent at commit.
func GenerateSchedule(start Date, periods int, base decimal.Decimal, recurring []ExtraItem) ([]*Charge, error) {
	if start.IsZero() {
		return nil, &ValidationError{Field: "start_date", Message: "schedule requires a start date"}
	}
	if periods <= 0 {
		return nil, &ValidationError{Field: "periods", Message: "schedule requires at least one period"}
	}
	if !base.IsPositive() {
		return nil, &ValidationError{Field: "base_amount", Message: "base amount must be positive"}
	}
	for _, e := range recurring {
		if e.Amount.IsNegative() {
			return nil, &ValidationError{Field: "extras", Message: "extra amounts must not be negative"}
		}
	}

	charges := make([]*Charge, 0, periods)
	for i := 0; i < periods; i++ {
		c := &Charge{
			ID:            NewPlaceholderChargeID(),
			DueDate:       start.AddMonths(i),
			BaseAmount:    base,
			PaidAmount:    decimal.Zero,
			SequenceIndex: i + 1,
		}
		if len(recurring) > 0 {
			c.Extras = make([]ExtraItem, len(recurring))
			copy(c.Extras, recurring)
		}
		charges = append(charges, c)
	}
	return charges, nil
}
