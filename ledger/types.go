/*
Package ledger provides the billing ledger reconciliation engine.

PURPOSE:
  This package contains the types and algorithms for reconciling a tenancy's
  periodic rent charges against signed payments. It owns the one hard part of
  the rental-billing system: chronological payment allocation, banked excess
  ("overflow"), per-occupant payment splitting for shared tenancies, derived
  charge statuses, and reversible editing of a charge schedule during an
  interactive session.

KEY CONCEPTS IN THIS FILE (types.go):
  - Charge: One periodic billing obligation (rent plus itemized extras)
  - ExtraItem: One itemized supplemental charge on a Charge
  - Overflow: Banked payment not yet attributed to a specific charge
  - Charge/Tenancy IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all money, with an explicit
     epsilon tolerance for paid/due comparisons
  2. Conservation: Money applied to the ledger is never created or
     destroyed - excess is always banked as overflow
  3. Determinism: Every operation is a pure function of its inputs and the
     charge ordering, so undo/redo replay is exact

USAGE:
  charges, _ := ledger.GenerateSchedule(start, 12, decimal.NewFromInt(1000))
  ov := &ledger.Overflow{}
  ledger.Allocate(decimal.NewFromInt(2500), charges, ov)

SEE ALSO:
  - status.go: Charge status derivation
  - allocator.go: Signed payment allocation
  - normalize.go: Post-edit redistribution
  - session.go: Interactive edit session orchestration
*/
package ledger

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenancyID string
type ChargeID string

// placeholderPrefix marks charges created during an edit session that have
// not been persisted yet. They receive a permanent ID at commit.
const placeholderPrefix = "new-"

// NewChargeID returns a permanent charge identifier.
func NewChargeID() ChargeID {
	return ChargeID(uuid.NewString())
}

// NewPlaceholderChargeID returns a session-local identifier for a charge
// that has not been persisted.
func NewPlaceholderChargeID() ChargeID {
	return ChargeID(placeholderPrefix + uuid.NewString())
}

// IsPlaceholder reports whether the ID is session-local (never persisted).
func (id ChargeID) IsPlaceholder() bool {
	return strings.HasPrefix(string(id), placeholderPrefix)
}

// =============================================================================
// EXTRA ITEM - Itemized supplemental charge
// =============================================================================

// ExtraItem is one itemized supplemental charge on a Charge
// (e.g., "water", "parking"). A Charge's extra amount is the sum of its items.
type ExtraItem struct {
	Label  string
	Amount decimal.Decimal
}

// =============================================================================
// CHARGE - One periodic billing obligation
// =============================================================================

// Charge is a single billing obligation in a tenancy's schedule.
//
// INVARIANTS (hold after every session operation):
//   - Gross() == BaseAmount + ExtraAmount() by construction
//   - 0 <= PaidAmount, and PaidAmount <= Gross() + epsilon after normalization
//   - OccupantPayments, when present, sums to PaidAmount within epsilon
type Charge struct {
	ID         ChargeID
	DueDate    Date
	BaseAmount decimal.Decimal // recurring portion (rent); zero for supplemental-only charges
	Extras     []ExtraItem
	PaidAmount decimal.Decimal
	Status     Status

	// OccupantPayments maps occupant slot index to the amount paid by that
	// slot. Nil unless the tenancy is shared (occupant count > 1).
	OccupantPayments map[int]decimal.Decimal

	// SequenceIndex is the 1-based ordinal among base-amount charges, used
	// for display ("Period 3 of 12"). Zero for supplemental-only charges.
	SequenceIndex int
}

// ExtraAmount returns the sum of itemized supplemental charges.
func (c *Charge) ExtraAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.Extras {
		total = total.Add(e.Amount)
	}
	return total
}

// Gross returns the full amount owed on this charge.
func (c *Charge) Gross() decimal.Decimal {
	return c.BaseAmount.Add(c.ExtraAmount())
}

// Outstanding returns how much is still owed, never negative.
func (c *Charge) Outstanding() decimal.Decimal {
	due := c.Gross().Sub(c.PaidAmount)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// IsSupplemental reports whether this charge carries no recurring portion.
func (c *Charge) IsSupplemental() bool {
	return c.BaseAmount.IsZero()
}

// Clone returns a deep copy. Mutating the copy never affects the original;
// this is what makes history snapshots safe.
func (c *Charge) Clone() *Charge {
	cp := *c
	if c.Extras != nil {
		cp.Extras = make([]ExtraItem, len(c.Extras))
		copy(cp.Extras, c.Extras)
	}
	if c.OccupantPayments != nil {
		cp.OccupantPayments = make(map[int]decimal.Decimal, len(c.OccupantPayments))
		for k, v := range c.OccupantPayments {
			cp.OccupantPayments[k] = v
		}
	}
	return &cp
}

// CloneCharges deep-copies a whole schedule.
func CloneCharges(charges []*Charge) []*Charge {
	out := make([]*Charge, len(charges))
	for i, c := range charges {
		out[i] = c.Clone()
	}
	return out
}

// =============================================================================
// SCHEDULE ORDERING
// =============================================================================

// SortCharges orders a schedule ascending by due date, in place.
func SortCharges(charges []*Charge) {
	sort.SliceStable(charges, func(i, j int) bool {
		return charges[i].DueDate.Before(charges[j].DueDate)
	})
}

// sortedAscending returns a new slice sorted ascending by due date.
// The caller's slice order is untouched.
func sortedAscending(charges []*Charge) []*Charge {
	out := make([]*Charge, len(charges))
	copy(out, charges)
	SortCharges(out)
	return out
}

// sortedDescending returns a new slice sorted descending by due date.
func sortedDescending(charges []*Charge) []*Charge {
	out := make([]*Charge, len(charges))
	copy(out, charges)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].DueDate.Before(out[i].DueDate)
	})
	return out
}

// Resequence renumbers the display ordinals of base-amount charges, in
// ascending due-date order. Supplemental-only charges carry no ordinal.
func Resequence(charges []*Charge) {
	n := 0
	for _, c := range sortedAscending(charges) {
		if c.IsSupplemental() {
			c.SequenceIndex = 0
			continue
		}
		n++
		c.SequenceIndex = n
	}
}

// =============================================================================
// OVERFLOW - Banked payment not yet attributed to a charge
// =============================================================================

// Overflow is the per-tenancy bank of payment received but not attributed to
// any specific charge. Committed is what past saves persisted; PendingDelta
// accumulates during the current edit session and is folded in at commit.
type Overflow struct {
	Committed    decimal.Decimal
	PendingDelta decimal.Decimal
}

// Total returns the combined pool (committed plus pending).
func (o *Overflow) Total() decimal.Decimal {
	return o.Committed.Add(o.PendingDelta)
}

// Bank adds an amount to the pending delta.
func (o *Overflow) Bank(amount decimal.Decimal) {
	o.PendingDelta = o.PendingDelta.Add(amount)
}

// Withdraw takes up to amount from the combined pool and returns what was
// actually taken. The committed balance only changes at commit, so the
// withdrawal is recorded against the pending delta.
func (o *Overflow) Withdraw(amount decimal.Decimal) decimal.Decimal {
	avail := o.Total()
	if !avail.IsPositive() || !amount.IsPositive() {
		return decimal.Zero
	}
	take := decimal.Min(amount, avail)
	o.PendingDelta = o.PendingDelta.Sub(take)
	return take
}
