package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// monthlyCharges builds n charges of the given base, due on the first of
// consecutive months starting February 2026.
func monthlyCharges(n int, base float64) []*ledger.Charge {
	charges := make([]*ledger.Charge, 0, n)
	for i := 0; i < n; i++ {
		charges = append(charges, &ledger.Charge{
			ID:            ledger.ChargeID("c-" + string(rune('1'+i))),
			DueDate:       day(2026, time.February, 1).AddMonths(i),
			BaseAmount:    d(base),
			PaidAmount:    decimal.Zero,
			SequenceIndex: i + 1,
		})
	}
	return charges
}

// ledgerTotal sums everything the ledger holds: paid amounts plus the
// overflow pool. Allocation must conserve it exactly (up to the applied
// payment itself).
func ledgerTotal(charges []*ledger.Charge, ov *ledger.Overflow) decimal.Decimal {
	total := ov.Total()
	for _, c := range charges {
		total = total.Add(c.PaidAmount)
	}
	return total
}

// =============================================================================
// POSITIVE ALLOCATION
// =============================================================================

func TestAllocate_FillsOldestDueFirst(t *testing.T) {
	// GIVEN: Three monthly charges of 1000
	// WHEN: A payment of 1500 arrives
	// THEN: The oldest charge fills completely, the next takes the rest,
	//       the newest stays untouched

	charges := monthlyCharges(3, 1000)
	ov := &ledger.Overflow{}

	unresolved := ledger.Allocate(d(1500), charges, ov, 1)

	if !unresolved.IsZero() {
		t.Errorf("unresolved = %s, want 0 (payments never leave a remainder)", unresolved)
	}
	if !charges[0].PaidAmount.Equal(d(1000)) {
		t.Errorf("oldest charge paid = %s, want 1000", charges[0].PaidAmount)
	}
	if !charges[1].PaidAmount.Equal(d(500)) {
		t.Errorf("middle charge paid = %s, want 500", charges[1].PaidAmount)
	}
	if !charges[2].PaidAmount.IsZero() {
		t.Errorf("newest charge paid = %s, want 0", charges[2].PaidAmount)
	}
	if !ov.Total().IsZero() {
		t.Errorf("overflow = %s, want 0", ov.Total())
	}
}

func TestAllocate_ExcessBankedAsOverflow(t *testing.T) {
	// A payment larger than everything due banks the rest; nothing vanishes.
	charges := monthlyCharges(3, 1000)
	ov := &ledger.Overflow{}

	ledger.Allocate(d(3500), charges, ov, 1)

	for _, c := range charges {
		if !c.PaidAmount.Equal(d(1000)) {
			t.Errorf("charge %s paid = %s, want 1000", c.ID, c.PaidAmount)
		}
	}
	if !ov.PendingDelta.Equal(d(500)) {
		t.Errorf("pending overflow = %s, want 500", ov.PendingDelta)
	}
}

func TestAllocate_RespectsPartialFill(t *testing.T) {
	// A second payment tops up the partially filled charge before moving on.
	charges := monthlyCharges(2, 1000)
	ov := &ledger.Overflow{}

	ledger.Allocate(d(600), charges, ov, 1)
	ledger.Allocate(d(700), charges, ov, 1)

	if !charges[0].PaidAmount.Equal(d(1000)) {
		t.Errorf("first charge paid = %s, want 1000", charges[0].PaidAmount)
	}
	if !charges[1].PaidAmount.Equal(d(300)) {
		t.Errorf("second charge paid = %s, want 300", charges[1].PaidAmount)
	}
}

// =============================================================================
// NEGATIVE ALLOCATION
// =============================================================================

func TestAllocate_NegativeDrainsOverflowFirst(t *testing.T) {
	// GIVEN: 200 banked overflow and two paid charges
	// WHEN: A 400 refund arrives
	// THEN: The overflow pool empties before any charge is disturbed, and
	//       the rest comes off the newest charge

	charges := monthlyCharges(2, 1000)
	charges[0].PaidAmount = d(1000)
	charges[1].PaidAmount = d(300)
	ov := &ledger.Overflow{PendingDelta: d(200)}

	unresolved := ledger.Allocate(d(-400), charges, ov, 1)

	if !unresolved.IsZero() {
		t.Errorf("unresolved = %s, want 0", unresolved)
	}
	if !ov.Total().IsZero() {
		t.Errorf("overflow = %s, want 0 (drained first)", ov.Total())
	}
	if !charges[1].PaidAmount.Equal(d(100)) {
		t.Errorf("newest charge paid = %s, want 100", charges[1].PaidAmount)
	}
	if !charges[0].PaidAmount.Equal(d(1000)) {
		t.Errorf("oldest charge paid = %s, want 1000 (untouched)", charges[0].PaidAmount)
	}
}

func TestAllocate_NegativeClawsBackNewestFirst(t *testing.T) {
	charges := monthlyCharges(3, 1000)
	for _, c := range charges {
		c.PaidAmount = d(1000)
	}
	ov := &ledger.Overflow{}

	ledger.Allocate(d(-1500), charges, ov, 1)

	if !charges[2].PaidAmount.IsZero() {
		t.Errorf("newest charge paid = %s, want 0", charges[2].PaidAmount)
	}
	if !charges[1].PaidAmount.Equal(d(500)) {
		t.Errorf("middle charge paid = %s, want 500", charges[1].PaidAmount)
	}
	if !charges[0].PaidAmount.Equal(d(1000)) {
		t.Errorf("oldest charge paid = %s, want 1000", charges[0].PaidAmount)
	}
}

func TestAllocate_UnresolvedRemainderReported(t *testing.T) {
	// GIVEN: Only 100 deductible in the whole ledger
	// WHEN: A 500 refund arrives
	// THEN: 100 is deducted, 400 comes back as an unresolved remainder,
	//       never an error and never a negative paid amount

	charges := monthlyCharges(1, 1000)
	charges[0].PaidAmount = d(100)
	ov := &ledger.Overflow{}

	unresolved := ledger.Allocate(d(-500), charges, ov, 1)

	if !unresolved.Equal(d(400)) {
		t.Errorf("unresolved = %s, want 400", unresolved)
	}
	if !charges[0].PaidAmount.IsZero() {
		t.Errorf("charge paid = %s, want 0", charges[0].PaidAmount)
	}
	if charges[0].PaidAmount.IsNegative() {
		t.Errorf("paid amount went negative: %s", charges[0].PaidAmount)
	}
}

// =============================================================================
// CONSERVATION
// =============================================================================

func TestAllocate_ConservesMoneyAcrossOperations(t *testing.T) {
	// Every positive allocation adds exactly its amount to the ledger total;
	// every fully-resolved negative allocation removes exactly its magnitude.
	charges := monthlyCharges(4, 1000)
	ov := &ledger.Overflow{}

	steps := []float64{2500, 1800, -700, 900, -300}
	expected := decimal.Zero

	for _, amt := range steps {
		before := ledgerTotal(charges, ov)
		unresolved := ledger.Allocate(d(amt), charges, ov, 1)
		after := ledgerTotal(charges, ov)

		delta := d(amt)
		if delta.IsNegative() {
			delta = delta.Add(unresolved)
		}
		if !after.Sub(before).Equal(delta) {
			t.Fatalf("allocation of %v changed ledger by %s, want %s",
				amt, after.Sub(before), delta)
		}
		expected = expected.Add(delta)
	}

	if !ledgerTotal(charges, ov).Equal(expected) {
		t.Errorf("final ledger total = %s, want %s", ledgerTotal(charges, ov), expected)
	}
}
