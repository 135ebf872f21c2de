package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// openSeeded seeds a memory store with a persisted monthly schedule starting
// February 2026 and opens a session with "today" pinned to March 15.
func openSeeded(t *testing.T, periods int, base float64, occupants int) (*ledger.Session, *store.Memory) {
	t.Helper()

	charges, err := ledger.GenerateSchedule(day(2026, time.February, 1), periods, d(base), nil)
	require.NoError(t, err)
	for _, c := range charges {
		c.ID = ledger.NewChargeID() // seeded charges are persisted, not placeholders
	}

	mem := store.NewMemory()
	mem.Seed("ten-1", charges, decimal.Zero, occupants)

	s, err := ledger.Open(context.Background(), mem, "ten-1")
	require.NoError(t, err)
	s.Now = march15
	return s, mem
}

func mustPay(t *testing.T, s *ledger.Session, amount float64) ledger.AllocationResult {
	t.Helper()
	res, err := s.ApplyPayment(d(amount), nil, ledger.PaymentRent)
	require.NoError(t, err)
	return res
}

func requireInvariants(t *testing.T, s *ledger.Session) {
	t.Helper()
	require.NoError(t, s.CheckInvariants())
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpen_UnknownTenancy(t *testing.T) {
	mem := store.NewMemory()
	_, err := ledger.Open(context.Background(), mem, "nope")
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
}

func TestOpen_SortsAndDerivesStatuses(t *testing.T) {
	// Charges seeded out of order come back sorted with statuses derived.
	charges := []*ledger.Charge{
		{ID: "b", DueDate: day(2026, time.March, 1), BaseAmount: d(1000)},
		{ID: "a", DueDate: day(2026, time.February, 1), BaseAmount: d(1000), PaidAmount: d(1000)},
	}
	mem := store.NewMemory()
	mem.Seed("ten-1", charges, decimal.Zero, 1)

	s, err := ledger.Open(context.Background(), mem, "ten-1")
	require.NoError(t, err)

	got := s.Charges()
	require.Len(t, got, 2)
	assert.Equal(t, ledger.ChargeID("a"), got[0].ID)
	assert.Equal(t, ledger.StatusPaid, got[0].Status)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestApplyPayment_ZeroRejected(t *testing.T) {
	s, _ := openSeeded(t, 3, 1000, 1)
	_, err := s.ApplyPayment(decimal.Zero, nil, ledger.PaymentRent)
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
	assert.False(t, s.CanUndo(), "rejected payment must not enter history")
}

func TestApplyPayment_FillsOldestAndDerivesStatuses(t *testing.T) {
	// GIVEN: Three charges due Feb 1, Mar 1, Apr 1, today March 15
	// WHEN: 1500 arrives
	// THEN: Feb fills (paid), Mar goes partial, Apr stays not-yet-due

	s, _ := openSeeded(t, 3, 1000, 1)

	res := mustPay(t, s, 1500)
	assert.True(t, res.Applied.Equal(d(1500)))
	assert.True(t, res.Unresolved.IsZero())

	charges := s.Charges()
	assert.Equal(t, ledger.StatusPaid, charges[0].Status)
	assert.Equal(t, ledger.StatusPartial, charges[1].Status)
	assert.Equal(t, ledger.StatusNotYetDue, charges[2].Status)
	requireInvariants(t, s)
}

func TestApplyPayment_ShortfallReportedNotErrored(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1)
	mustPay(t, s, 300)

	res, err := s.ApplyPayment(d(-800), nil, ledger.PaymentRent)
	require.NoError(t, err, "a shortfall is a warning, not an error")
	assert.True(t, res.Unresolved.Equal(d(500)), "unresolved = %s", res.Unresolved)
	assert.True(t, res.Applied.Equal(d(-300)), "applied = %s", res.Applied)
	requireInvariants(t, s)
}

func TestApplyPayment_OccupantValidation(t *testing.T) {
	single, _ := openSeeded(t, 2, 1000, 1)
	slot := 0
	_, err := single.ApplyPayment(d(100), &slot, ledger.PaymentRent)
	require.Error(t, err, "targeted payment on a single-occupant tenancy")
	assert.True(t, ledger.IsValidation(err))

	shared, _ := openSeeded(t, 2, 1800, 3)
	bad := 3
	_, err = shared.ApplyPayment(d(100), &bad, ledger.PaymentRent)
	require.Error(t, err, "slot index out of range")
	assert.True(t, ledger.IsValidation(err))
}

func TestApplyPayment_TargetedAdvancesOneSlot(t *testing.T) {
	s, _ := openSeeded(t, 2, 1800, 3)

	slot := 1
	res, err := s.ApplyPayment(d(600), &slot, ledger.PaymentRent)
	require.NoError(t, err)
	assert.True(t, res.Applied.Equal(d(600)))

	first := s.Charges()[0]
	assert.True(t, first.OccupantPayments[1].Equal(d(600)))
	assert.True(t, first.OccupantPayments[0].IsZero())
	assert.Equal(t, ledger.StatusPartial, first.Status)
	requireInvariants(t, s)
}

func TestApplyPayment_DepositBypassesLedgerAndHistory(t *testing.T) {
	// Deposit money never touches charges, overflow, or undo history.
	s, mem := openSeeded(t, 2, 1000, 1)

	res, err := s.ApplyPayment(d(500), nil, ledger.PaymentDeposit)
	require.NoError(t, err)
	assert.True(t, res.Applied.Equal(d(500)))

	assert.True(t, s.DepositDelta().Equal(d(500)))
	assert.True(t, s.Charges()[0].PaidAmount.IsZero())
	assert.False(t, s.CanUndo(), "deposit adjustments are not undoable")

	_, err = s.Commit(context.Background())
	require.NoError(t, err)
	assert.True(t, mem.DepositBalance("ten-1").Equal(d(500)))
	assert.True(t, s.DepositDelta().IsZero(), "delta folds into the balance at commit")
}

func TestApplyPayment_UnknownKindRejected(t *testing.T) {
	s, _ := openSeeded(t, 1, 1000, 1)
	_, err := s.ApplyPayment(d(100), nil, ledger.PaymentKind("lottery"))
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
}

// =============================================================================
// STRUCTURAL EDITS
// =============================================================================

func TestEditChargeAmount_NegativeRejected(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1)
	id := s.Charges()[0].ID

	err := s.EditChargeAmount(id, d(-100))
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
	assert.True(t, s.Charges()[0].BaseAmount.Equal(d(1000)), "rejected edit leaves state unchanged")
}

func TestEditChargeAmount_ShrinkRedistributesForward(t *testing.T) {
	// GIVEN: The first of two charges fully paid
	// WHEN: Its amount is edited down to 400
	// THEN: The freed 600 flows into the next charge, not into thin air

	s, _ := openSeeded(t, 2, 1000, 1)
	mustPay(t, s, 1000)

	require.NoError(t, s.EditChargeAmount(s.Charges()[0].ID, d(400)))

	charges := s.Charges()
	assert.True(t, charges[0].PaidAmount.Equal(d(400)))
	assert.True(t, charges[1].PaidAmount.Equal(d(600)))
	requireInvariants(t, s)
}

func TestEditChargeAmount_ShrinkBeyondScheduleBanksOverflow(t *testing.T) {
	// With nowhere later to flow, the excess banks as pending overflow.
	s, _ := openSeeded(t, 1, 1000, 1)
	mustPay(t, s, 1000)

	require.NoError(t, s.EditChargeAmount(s.Charges()[0].ID, d(400)))

	assert.True(t, s.Charges()[0].PaidAmount.Equal(d(400)))
	assert.True(t, s.OverflowState().PendingDelta.Equal(d(600)))
	requireInvariants(t, s)
}

func TestEditChargeDueDate_BoundsEnforced(t *testing.T) {
	s, _ := openSeeded(t, 3, 1000, 1) // due Feb 1, Mar 1, Apr 1
	middle := s.Charges()[1].ID

	// Equal to a neighbor is already out of bounds; the order is strict.
	err := s.EditChargeDueDate(middle, day(2026, time.February, 1))
	require.Error(t, err)
	var oob *ledger.DateOutOfBoundsError
	require.True(t, errors.As(err, &oob))
	assert.True(t, ledger.IsValidation(err))
	require.NotNil(t, oob.LowerBound)
	require.NotNil(t, oob.UpperBound)

	err = s.EditChargeDueDate(middle, day(2026, time.May, 1))
	require.Error(t, err, "beyond the next charge")

	// Strictly inside the gap is fine.
	require.NoError(t, s.EditChargeDueDate(middle, day(2026, time.March, 20)))
	assert.True(t, s.Charges()[1].DueDate.Equal(day(2026, time.March, 20)))
}

func TestEditChargeDueDate_FirstAndLastUnboundedOnOneSide(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1) // Feb 1, Mar 1

	first := s.Charges()[0].ID
	require.NoError(t, s.EditChargeDueDate(first, day(2025, time.June, 1)),
		"first charge may move arbitrarily far back")

	last := s.Charges()[1].ID
	require.NoError(t, s.EditChargeDueDate(last, day(2027, time.January, 1)),
		"last charge may move arbitrarily far forward")
}

func TestEditChargeDueDate_InBoundsMoveKeepsMoney(t *testing.T) {
	// The strict neighbor bounds mean a date edit can never reorder the
	// schedule, so the charge keeps its money after a legal move.
	s, _ := openSeeded(t, 2, 1000, 1) // Feb 1, Mar 1
	mustPay(t, s, 1000)               // fills the Feb charge

	febID := s.Charges()[0].ID
	require.NoError(t, s.EditChargeDueDate(febID, day(2026, time.February, 15)))

	assert.True(t, s.Charges()[0].PaidAmount.Equal(d(1000)))
	assert.Equal(t, febID, s.Charges()[0].ID)
	requireInvariants(t, s)
}

func TestAddRemoveExtra(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1)
	id := s.Charges()[0].ID

	err := s.AddExtra(id, ledger.ExtraItem{Label: "", Amount: d(10)})
	require.Error(t, err, "label is required")
	err = s.AddExtra(id, ledger.ExtraItem{Label: "water", Amount: decimal.Zero})
	require.Error(t, err, "amount must be positive")

	require.NoError(t, s.AddExtra(id, ledger.ExtraItem{Label: "water", Amount: d(35.50)}))
	assert.True(t, s.Charges()[0].Gross().Equal(d(1035.50)))

	err = s.RemoveExtra(id, 5)
	require.Error(t, err, "index out of range")

	require.NoError(t, s.RemoveExtra(id, 0))
	assert.True(t, s.Charges()[0].Gross().Equal(d(1000)))
}

func TestInsertCharge_AfterLastAddsMonth(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1) // Feb 1, Mar 1
	last := s.Charges()[1].ID

	c, err := s.InsertCharge(last, false)
	require.NoError(t, err)

	assert.True(t, c.DueDate.Equal(day(2026, time.April, 1)))
	assert.True(t, c.BaseAmount.Equal(d(1000)), "copies the prevailing rent")
	assert.True(t, c.ID.IsPlaceholder())
	assert.Equal(t, 3, c.SequenceIndex)
	require.Len(t, s.Charges(), 3)
}

func TestInsertCharge_BetweenUsesNextDay(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1) // Feb 1, Mar 1
	first := s.Charges()[0].ID

	c, err := s.InsertCharge(first, false)
	require.NoError(t, err)
	assert.True(t, c.DueDate.Equal(day(2026, time.February, 2)))
}

func TestInsertCharge_NoRoomRejected(t *testing.T) {
	// Two charges one day apart leave no legal date between them.
	charges := []*ledger.Charge{
		{ID: "a", DueDate: day(2026, time.February, 1), BaseAmount: d(1000), SequenceIndex: 1},
		{ID: "b", DueDate: day(2026, time.February, 2), BaseAmount: d(1000), SequenceIndex: 2},
	}
	mem := store.NewMemory()
	mem.Seed("ten-1", charges, decimal.Zero, 1)
	s, err := ledger.Open(context.Background(), mem, "ten-1")
	require.NoError(t, err)
	s.Now = march15

	_, err = s.InsertCharge("a", false)
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
	require.Len(t, s.Charges(), 2, "rejected insert leaves the schedule unchanged")
}

func TestInsertCharge_SupplementalHasNoOrdinal(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1)
	last := s.Charges()[1].ID

	c, err := s.InsertCharge(last, true)
	require.NoError(t, err)
	assert.True(t, c.BaseAmount.IsZero())
	assert.Equal(t, 0, c.SequenceIndex)
	assert.True(t, c.IsSupplemental())

	// Ordinals of the base charges are untouched.
	assert.Equal(t, 1, s.Charges()[0].SequenceIndex)
	assert.Equal(t, 2, s.Charges()[1].SequenceIndex)
}

func TestDeleteCharge_PersistedPaidBecomesRefund(t *testing.T) {
	// GIVEN: A persisted charge carrying 1000 paid
	// WHEN: It is deleted
	// THEN: The 1000 is captured as a pending refund, folded into overflow
	//       at commit

	s, _ := openSeeded(t, 2, 1000, 1)
	mustPay(t, s, 1000)
	id := s.Charges()[0].ID

	require.NoError(t, s.DeleteCharge(id))

	refunds := s.PendingRefunds()
	require.Len(t, refunds, 1)
	assert.True(t, refunds[id].Equal(d(1000)))
	require.Len(t, s.Charges(), 1)
}

func TestDeleteCharge_PlaceholderPaidBanksDirectly(t *testing.T) {
	// A never-persisted charge has nothing to refund against; its money goes
	// straight back to pending overflow.
	s, _ := openSeeded(t, 2, 1000, 1)
	c, err := s.InsertCharge(s.Charges()[1].ID, false)
	require.NoError(t, err)
	mustPay(t, s, 3000) // fills all three

	require.NoError(t, s.DeleteCharge(c.ID))

	assert.Empty(t, s.PendingRefunds())
	assert.True(t, s.OverflowState().PendingDelta.Equal(d(1000)))
	requireInvariants(t, s)
}

func TestDeleteCharge_Resequences(t *testing.T) {
	s, _ := openSeeded(t, 3, 1000, 1)
	require.NoError(t, s.DeleteCharge(s.Charges()[1].ID))

	charges := s.Charges()
	assert.Equal(t, 1, charges[0].SequenceIndex)
	assert.Equal(t, 2, charges[1].SequenceIndex)
}

// =============================================================================
// UNDO / REDO
// =============================================================================

func TestUndoRedo_RoundTrip(t *testing.T) {
	s, _ := openSeeded(t, 2, 1000, 1)

	mustPay(t, s, 1500)
	require.True(t, s.CanUndo())
	require.False(t, s.CanRedo())

	require.True(t, s.Undo())
	assert.True(t, s.Charges()[0].PaidAmount.IsZero())
	require.True(t, s.CanRedo())

	require.True(t, s.Redo())
	assert.True(t, s.Charges()[0].PaidAmount.Equal(d(1000)))
	assert.True(t, s.Charges()[1].PaidAmount.Equal(d(500)))
}

func TestUndo_RestoresOverflowDelta(t *testing.T) {
	s, _ := openSeeded(t, 1, 1000, 1)
	mustPay(t, s, 1500) // 500 banks as overflow

	require.True(t, s.OverflowState().PendingDelta.Equal(d(500)))
	require.True(t, s.Undo())
	assert.True(t, s.OverflowState().PendingDelta.IsZero())
}

func TestUndo_NothingToUndo(t *testing.T) {
	s, _ := openSeeded(t, 1, 1000, 1)
	assert.False(t, s.Undo())
	assert.False(t, s.Redo())
}

func TestRedo_InvalidatedByNewMutation(t *testing.T) {
	// Branching history: undo then a fresh edit makes the undone future
	// unreachable.
	s, _ := openSeeded(t, 2, 1000, 1)

	mustPay(t, s, 1000)
	require.True(t, s.Undo())
	require.True(t, s.CanRedo())

	mustPay(t, s, 250)
	assert.False(t, s.CanRedo())
	assert.True(t, s.Charges()[0].PaidAmount.Equal(d(250)))
}

func TestUndo_SnapshotsAreIsolated(t *testing.T) {
	// Mutating after a snapshot must not corrupt the snapshot.
	s, _ := openSeeded(t, 2, 1000, 1)

	mustPay(t, s, 400)
	mustPay(t, s, 300) // snapshot here holds paid=400

	require.True(t, s.Undo())
	assert.True(t, s.Charges()[0].PaidAmount.Equal(d(400)))
	require.True(t, s.Undo())
	assert.True(t, s.Charges()[0].PaidAmount.IsZero())
}

func TestHistory_BoundedAtFifty(t *testing.T) {
	s, _ := openSeeded(t, 1, 1000, 1)

	for i := 0; i < 60; i++ {
		mustPay(t, s, 1)
	}
	require.True(t, s.Charges()[0].PaidAmount.Equal(d(60)))

	undone := 0
	for s.Undo() {
		undone++
	}
	assert.Equal(t, 50, undone, "oldest entries fall off silently")
	assert.True(t, s.Charges()[0].PaidAmount.Equal(d(10)))
}

// =============================================================================
// COMMIT
// =============================================================================

func TestCommit_PersistsDiffAndRebaselines(t *testing.T) {
	s, mem := openSeeded(t, 3, 1000, 1)
	mustPay(t, s, 1500)

	res, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted, "only the two touched charges are written")
	assert.Equal(t, 0, res.Deleted)
	assert.False(t, s.CanUndo(), "history resets at commit")

	state, err := mem.LoadTenancy(context.Background(), "ten-1")
	require.NoError(t, err)
	assert.True(t, state.Charges[0].PaidAmount.Equal(d(1000)))
	assert.True(t, state.Charges[1].PaidAmount.Equal(d(500)))

	// A second commit with no changes writes nothing.
	res, err = s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Upserted)
}

func TestCommit_SweepsRefundIntoUnpaidCharges(t *testing.T) {
	// GIVEN: A paid charge deleted during the session
	// WHEN: Committing
	// THEN: The refund folds into overflow and the final sweep reallocates
	//       it into the remaining unpaid charge

	s, mem := openSeeded(t, 2, 1000, 1)
	mustPay(t, s, 1000)
	require.NoError(t, s.DeleteCharge(s.Charges()[0].ID))

	res, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Swept.Equal(d(1000)))
	assert.True(t, res.NewOverflow.IsZero())
	assert.Equal(t, 1, res.Deleted)

	state, err := mem.LoadTenancy(context.Background(), "ten-1")
	require.NoError(t, err)
	require.Len(t, state.Charges, 1)
	assert.True(t, state.Charges[0].PaidAmount.Equal(d(1000)))
	assert.True(t, state.CommittedOverflow.IsZero())
}

func TestCommit_OverflowPersistsWhenNothingToSweep(t *testing.T) {
	s, mem := openSeeded(t, 1, 1000, 1)
	mustPay(t, s, 1600) // 600 overflow, charge already full

	res, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Swept.IsZero())
	assert.True(t, res.NewOverflow.Equal(d(600)))

	state, err := mem.LoadTenancy(context.Background(), "ten-1")
	require.NoError(t, err)
	assert.True(t, state.CommittedOverflow.Equal(d(600)))
	assert.True(t, s.OverflowState().Committed.Equal(d(600)))
	assert.True(t, s.OverflowState().PendingDelta.IsZero())
}

func TestCommit_AssignsPermanentIDs(t *testing.T) {
	s, mem := openSeeded(t, 1, 1000, 1)
	inserted, err := s.InsertCharge(s.Charges()[0].ID, false)
	require.NoError(t, err)
	require.True(t, inserted.ID.IsPlaceholder())

	_, err = s.Commit(context.Background())
	require.NoError(t, err)

	for _, c := range s.Charges() {
		assert.False(t, c.ID.IsPlaceholder(), "charge %s kept a placeholder ID past commit", c.ID)
	}
	state, err := mem.LoadTenancy(context.Background(), "ten-1")
	require.NoError(t, err)
	require.Len(t, state.Charges, 2)
	for _, c := range state.Charges {
		assert.False(t, c.ID.IsPlaceholder())
	}
}

func TestCommit_FailureKeepsSessionForRetry(t *testing.T) {
	// GIVEN: A session with pending edits and a store that fails once
	// WHEN: Committing
	// THEN: The error is retryable, every edit survives, and the retry
	//       succeeds with the identical state

	s, mem := openSeeded(t, 2, 1000, 1)
	mustPay(t, s, 1200)

	mem.FailNextCommit = errors.New("disk full")
	_, err := s.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, ledger.IsRetryable(err))

	// Nothing was lost.
	assert.True(t, s.Charges()[0].PaidAmount.Equal(d(1000)))
	assert.True(t, s.Charges()[1].PaidAmount.Equal(d(200)))
	assert.True(t, s.CanUndo(), "history survives a failed commit")

	// Nothing reached the store.
	state, err := mem.LoadTenancy(context.Background(), "ten-1")
	require.NoError(t, err)
	assert.True(t, state.Charges[0].PaidAmount.IsZero())

	// Retry with no further action.
	_, err = s.Commit(context.Background())
	require.NoError(t, err)
	state, err = mem.LoadTenancy(context.Background(), "ten-1")
	require.NoError(t, err)
	assert.True(t, state.Charges[0].PaidAmount.Equal(d(1000)))
	assert.True(t, state.Charges[1].PaidAmount.Equal(d(200)))
}

// =============================================================================
// SCHEDULE GENERATION THROUGH THE SESSION
// =============================================================================

func TestGenerateScheduleOp_RejectedWhenScheduleExists(t *testing.T) {
	s, _ := openSeeded(t, 1, 1000, 1)
	err := s.GenerateSchedule(day(2027, time.January, 1), 12, d(1000), nil)
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
}

func TestGenerateScheduleOp_OnEmptyTenancy(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("ten-empty", nil, decimal.Zero, 1)
	s, err := ledger.Open(context.Background(), mem, "ten-empty")
	require.NoError(t, err)
	s.Now = march15

	require.NoError(t, s.GenerateSchedule(day(2026, time.April, 1), 6, d(950), nil))
	require.Len(t, s.Charges(), 6)
	assert.True(t, s.CanUndo(), "schedule generation is undoable")

	res, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Upserted)
}

// =============================================================================
// EDITS BEFORE ANY SCHEDULE
// =============================================================================

func TestEdits_RejectedWithoutSchedule(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("ten-empty", nil, decimal.Zero, 1)
	s, err := ledger.Open(context.Background(), mem, "ten-empty")
	require.NoError(t, err)

	err = s.EditChargeAmount("whatever", d(100))
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
}

// =============================================================================
// END-TO-END INVARIANTS
// =============================================================================

func TestSession_InvariantsHoldAcrossMixedEdits(t *testing.T) {
	s, _ := openSeeded(t, 4, 1000, 2)

	mustPay(t, s, 2500)
	slot := 1
	_, err := s.ApplyPayment(d(300), &slot, ledger.PaymentRent)
	require.NoError(t, err)
	requireInvariants(t, s)

	require.NoError(t, s.EditChargeAmount(s.Charges()[0].ID, d(800)))
	requireInvariants(t, s)

	require.NoError(t, s.AddExtra(s.Charges()[2].ID, ledger.ExtraItem{Label: "repair", Amount: d(120)}))
	requireInvariants(t, s)

	require.NoError(t, s.DeleteCharge(s.Charges()[3].ID))
	requireInvariants(t, s)

	require.True(t, s.Undo())
	requireInvariants(t, s)
	require.True(t, s.Redo())
	requireInvariants(t, s)

	_, err = s.Commit(context.Background())
	require.NoError(t, err)
	requireInvariants(t, s)
}
