/*
normalize.go - Post-edit redistribution of money already in the schedule

PURPOSE:
  Re-derives the canonical distribution of all money present in a schedule
  after any structural edit (amount change, date change, insertion,
  deletion). The chronological-priority invariant - money always settles the
  earliest unpaid charge first - breaks the moment a due date is reordered
  or an amount shrinks below what was already marked paid; normalization
  restores it.

ALGORITHM:
  1. Pool every charge's paid amount (and, for shared tenancies, every
     occupant slot's contributions).
  2. Reset all paid amounts to zero.
  3. Refill charges ascending by due date, each up to its gross amount.
  4. Bank whatever no longer fits as pending overflow. The pool only
     exceeds capacity when an amount edit shrank a charge below its paid
     amount; that excess is real money and must not vanish.
  5. Recompute every status.

Normalizing an already-normalized schedule is a no-op, including the
occupant payment maps.
*/
package ledger

import "github.com/shopspring/decimal"

// Normalize re-files the money already inside the schedule so chronological
// priority holds, then recomputes statuses. Total money in the ledger
// (paid amounts + overflow) is conserved exactly.
func Normalize(charges []*Charge, ov *Overflow, occupantCount int, today Date) {
	SortCharges(charges)

	pool := decimal.Zero
	occPools := make(map[int]decimal.Decimal)
	for _, c := range charges {
		pool = pool.Add(c.PaidAmount)
		for slot, v := range c.OccupantPayments {
			occPools[slot] = occPools[slot].Add(v)
		}
		c.PaidAmount = decimal.Zero
		if c.OccupantPayments != nil {
			c.OccupantPayments = make(map[int]decimal.Decimal, occupantCount)
		}
	}

	for _, c := range charges {
		if !pool.IsPositive() {
			break
		}
		fill := decimal.Min(pool, c.Gross())
		if !fill.IsPositive() {
			continue
		}
		c.PaidAmount = fill
		pool = pool.Sub(fill)
		if occupantCount > 1 {
			attributeToOccupants(c, fill, occPools, occupantCount)
		}
	}

	// Whatever no longer fits goes back to the bank, never into thin air.
	if pool.IsPositive() {
		ov.Bank(pool)
	}

	RefreshStatuses(charges, occupantCount, today)
}

// attributeToOccupants rebuilds a charge's occupant map from the per-slot
// pools. Two passes, both in slot order for determinism: first each slot
// draws up to its share, then any unmet remainder is drawn from whichever
// pools still have money. Re-running the procedure on its own output
// reproduces it, which is what keeps Normalize idempotent for shared
// tenancies.
func attributeToOccupants(c *Charge, fill decimal.Decimal, occPools map[int]decimal.Decimal, occupantCount int) {
	EnsureOccupantMap(c, occupantCount)
	share := OccupantShare(c.Gross(), occupantCount)
	need := fill

	for slot := 0; slot < occupantCount && need.IsPositive(); slot++ {
		draw := decimal.Min(decimal.Min(occPools[slot], share), need)
		if !draw.IsPositive() {
			continue
		}
		c.OccupantPayments[slot] = c.OccupantPayments[slot].Add(draw)
		occPools[slot] = occPools[slot].Sub(draw)
		need = need.Sub(draw)
	}
	for slot := 0; slot < occupantCount && need.IsPositive(); slot++ {
		draw := decimal.Min(occPools[slot], need)
		if !draw.IsPositive() {
			continue
		}
		c.OccupantPayments[slot] = c.OccupantPayments[slot].Add(draw)
		occPools[slot] = occPools[slot].Sub(draw)
		need = need.Sub(draw)
	}
}
