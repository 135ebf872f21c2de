/*
allocator.go - Signed payment allocation

PURPOSE:
  Applies one signed payment to the aggregate paid amounts of a charge
  schedule plus the overflow account.

ORDERING RULES (asymmetric on purpose):
  Positive (payment received):
    Fill charges oldest-due-first. New money settles the oldest obligation
    first, matching rent-arrears practice. Whatever is left over is banked
    as pending overflow - never discarded.

  Negative (refund / correction):
    Deduct from the overflow pool first (committed and pending treated as
    one pool), then claw back from charges newest-due-first. Money taken
    back should undo the most recently recorded excess before disturbing
    older, presumably settled history. Anything that cannot be deducted is
    returned as an unresolved remainder for the caller to warn about.

Allocation mutates PaidAmount and, for shared tenancies, keeps the occupant
payment maps in step (see split.go). It does not touch statuses; callers
refresh statuses once per operation.
*/
package ledger

import "github.com/shopspring/decimal"

// Allocate applies a signed payment to the schedule and overflow account.
// Returns the unresolved remainder: zero for payments (excess is banked),
// possibly positive for refunds whose magnitude exceeded everything
// available to deduct.
func Allocate(amount decimal.Decimal, charges []*Charge, ov *Overflow, occupantCount int) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	if amount.IsPositive() {
		leftover := fillAscending(amount, charges, occupantCount)
		ov.Bank(leftover)
		return decimal.Zero
	}
	return deduct(amount.Neg(), charges, ov, occupantCount)
}

// fillAscending pours amount into charges oldest-due-first and returns
// whatever does not fit. Each charge absorbs at most its outstanding due.
func fillAscending(amount decimal.Decimal, charges []*Charge, occupantCount int) decimal.Decimal {
	remaining := amount
	for _, c := range sortedAscending(charges) {
		if !aboveEpsilon(remaining) {
			break
		}
		due := c.Outstanding()
		if !due.IsPositive() {
			continue
		}
		applied := decimal.Min(remaining, due)
		creditCharge(c, applied, occupantCount)
		remaining = remaining.Sub(applied)
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// deduct removes magnitude from the overflow pool first, then from charges
// newest-due-first. Returns the unmet remainder.
func deduct(magnitude decimal.Decimal, charges []*Charge, ov *Overflow, occupantCount int) decimal.Decimal {
	remaining := magnitude.Sub(ov.Withdraw(magnitude))
	for _, c := range sortedDescending(charges) {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, c.PaidAmount)
		if !take.IsPositive() {
			continue
		}
		debitCharge(c, take, occupantCount)
		remaining = remaining.Sub(take)
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
