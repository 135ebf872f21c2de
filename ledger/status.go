/*
status.go - Derived charge status

PURPOSE:
  Maps a charge's monetary state and calendar state to a display status.
  Status is always derived, never set directly: every mutation path ends by
  recomputing it, so it can never drift from the money it describes.

THE FOUR STATES:
  Paid      paid >= gross - epsilon
  Partial   epsilon < paid < gross - epsilon
  Overdue   paid <= epsilon and due date before today
  NotYetDue paid <= epsilon and due date today or later

Exactly one state applies to every (gross, paid, due, today) combination,
including the boundaries at exactly epsilon and exactly gross.

SHARED TENANCIES:
  A charge can also read Paid when every occupant's individual share is
  settled, even if decimal division makes the aggregate sum land a hair
  under gross. Occupants who pay their exact shares in separate transactions
  must see the charge fully settled.
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPaid      Status = "paid"
	StatusPartial   Status = "partial"
	StatusOverdue   Status = "overdue"
	StatusNotYetDue Status = "not_yet_due"
)

// DeriveStatus maps monetary and calendar state to a status. Pure and total.
func DeriveStatus(gross, paid decimal.Decimal, dueDate, today Date) Status {
	switch {
	case gteApprox(paid, gross):
		return StatusPaid
	case aboveEpsilon(paid):
		return StatusPartial
	case dueDate.Before(today):
		return StatusOverdue
	default:
		return StatusNotYetDue
	}
}

// DeriveChargeStatus derives a charge's status, applying the shared-tenancy
// upgrade: if every occupant's share is individually settled the charge is
// Paid regardless of what the aggregate comparison says.
func DeriveChargeStatus(c *Charge, occupantCount int, today Date) Status {
	s := DeriveStatus(c.Gross(), c.PaidAmount, c.DueDate, today)
	if s != StatusPaid && occupantCount > 1 && len(c.OccupantPayments) > 0 {
		if allSharesSettled(c, occupantCount) {
			return StatusPaid
		}
	}
	return s
}

// RefreshStatuses recomputes the status of every charge in the schedule.
func RefreshStatuses(charges []*Charge, occupantCount int, today Date) {
	for _, c := range charges {
		c.Status = DeriveChargeStatus(c, occupantCount, today)
	}
}

// allSharesSettled reports whether every occupant slot has paid its share
// of the charge within epsilon.
//
// The share is always gross / current occupant count, even for charges
// created under a different count. See DESIGN.md.
func allSharesSettled(c *Charge, occupantCount int) bool {
	share := OccupantShare(c.Gross(), occupantCount)
	for slot := 0; slot < occupantCount; slot++ {
		if !gteApprox(c.OccupantPayments[slot], share) {
			return false
		}
	}
	return true
}

// OccupantShare returns one occupant's portion of a gross amount.
func OccupantShare(gross decimal.Decimal, occupantCount int) decimal.Decimal {
	if occupantCount <= 1 {
		return gross
	}
	return gross.Div(decimal.NewFromInt(int64(occupantCount)))
}
