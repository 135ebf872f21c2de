/*
split.go - Per-occupant payment tracking for shared tenancies

PURPOSE:
  Extends the allocator for tenancies with more than one occupant. Each
  charge carries a per-slot payment map alongside its aggregate PaidAmount,
  and the two must agree within epsilon at all times.

TWO TARGETING MODES:
  All occupants (default):
    The aggregate allocator runs; every amount applied to a charge is
    spread evenly across the occupant slots, so a partial aggregate payment
    advances every occupant's share proportionally.

  One occupant slot:
    Allocation runs against that occupant's share of each charge
    (gross / occupantCount) and that slot's map entry, oldest-due-first for
    payments and newest-first for refunds, with the same overflow-first rule
    for refunds as the aggregate branch.

DEDUCTION DISTRIBUTION:
  Aggregate deductions are removed from slots in proportion to what each
  slot has paid. Even removal could drive a lightly-paid slot negative;
  proportional removal cannot, and it keeps the map summing to PaidAmount.
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// AGGREGATE <-> SLOT BOOKKEEPING
// =============================================================================

// EnsureOccupantMap initializes zero entries for every slot. No-op for
// single-occupant tenancies.
func EnsureOccupantMap(c *Charge, occupantCount int) {
	if occupantCount <= 1 {
		return
	}
	if c.OccupantPayments == nil {
		c.OccupantPayments = make(map[int]decimal.Decimal, occupantCount)
	}
	for slot := 0; slot < occupantCount; slot++ {
		if _, ok := c.OccupantPayments[slot]; !ok {
			c.OccupantPayments[slot] = decimal.Zero
		}
	}
}

// creditCharge adds amount to the charge's aggregate paid amount, spreading
// it evenly across occupant slots when the tenancy is shared.
func creditCharge(c *Charge, amount decimal.Decimal, occupantCount int) {
	c.PaidAmount = c.PaidAmount.Add(amount)
	if occupantCount <= 1 {
		return
	}
	EnsureOccupantMap(c, occupantCount)
	perSlot := amount.Div(decimal.NewFromInt(int64(occupantCount)))
	for slot := 0; slot < occupantCount; slot++ {
		c.OccupantPayments[slot] = c.OccupantPayments[slot].Add(perSlot)
	}
}

// debitCharge removes amount from the charge's aggregate paid amount,
// taking it from occupant slots in proportion to their balances.
func debitCharge(c *Charge, amount decimal.Decimal, occupantCount int) {
	before := c.PaidAmount
	c.PaidAmount = c.PaidAmount.Sub(amount)
	if c.PaidAmount.IsNegative() {
		c.PaidAmount = decimal.Zero
	}
	if occupantCount <= 1 || len(c.OccupantPayments) == 0 {
		return
	}
	if !before.IsPositive() {
		return
	}
	ratio := c.PaidAmount.Div(before)
	for slot, v := range c.OccupantPayments {
		c.OccupantPayments[slot] = v.Mul(ratio)
	}
}

// =============================================================================
// TARGETED ALLOCATION
// =============================================================================

// AllocateToOccupant applies a signed payment against one occupant slot's
// share of the schedule. The slot's map entries and the aggregate paid
// amounts move together. Returns the unresolved remainder, as Allocate does.
func AllocateToOccupant(amount decimal.Decimal, slot, occupantCount int, charges []*Charge, ov *Overflow) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	if amount.IsPositive() {
		leftover := fillOccupantAscending(amount, slot, occupantCount, charges)
		ov.Bank(leftover)
		return decimal.Zero
	}
	return deductFromOccupant(amount.Neg(), slot, occupantCount, charges, ov)
}

func fillOccupantAscending(amount decimal.Decimal, slot, occupantCount int, charges []*Charge) decimal.Decimal {
	remaining := amount
	for _, c := range sortedAscending(charges) {
		if !aboveEpsilon(remaining) {
			break
		}
		EnsureOccupantMap(c, occupantCount)
		share := OccupantShare(c.Gross(), occupantCount)
		due := share.Sub(c.OccupantPayments[slot])
		if !due.IsPositive() {
			continue
		}
		applied := decimal.Min(remaining, due)
		c.OccupantPayments[slot] = c.OccupantPayments[slot].Add(applied)
		c.PaidAmount = c.PaidAmount.Add(applied)
		remaining = remaining.Sub(applied)
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func deductFromOccupant(magnitude decimal.Decimal, slot, occupantCount int, charges []*Charge, ov *Overflow) decimal.Decimal {
	remaining := magnitude.Sub(ov.Withdraw(magnitude))
	for _, c := range sortedDescending(charges) {
		if !remaining.IsPositive() {
			break
		}
		EnsureOccupantMap(c, occupantCount)
		take := decimal.Min(remaining, c.OccupantPayments[slot])
		if !take.IsPositive() {
			continue
		}
		c.OccupantPayments[slot] = c.OccupantPayments[slot].Sub(take)
		c.PaidAmount = c.PaidAmount.Sub(take)
		if c.PaidAmount.IsNegative() {
			c.PaidAmount = decimal.Zero
		}
		remaining = remaining.Sub(take)
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
