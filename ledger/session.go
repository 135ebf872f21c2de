/*
session.go - Interactive ledger edit session

PURPOSE:
  Owns one tenancy's working charge schedule for the duration of an edit.
  Every mutation (payments, amount/date edits, insertions, deletions) goes
  through the session, which records a pre-mutation snapshot for undo,
  delegates to the allocator/normalizer/splitter, and re-derives statuses.
  Nothing touches the store until Commit.

SESSION MODEL:
  Single editor, single tenancy, all mutation on an in-memory copy.
  Discarding the session without committing is always safe. There is no
  cross-session locking; concurrent editors are last-write-wins at the
  persistence layer.

COMMIT:
  Commit diffs the working state against what was loaded, folds the pending
  overflow delta and the refunds captured from deleted charges into one new
  overflow balance, sweeps any positive overflow forward against still-unpaid
  charges (oldest first), and hands the store a minimal atomic write. On
  failure the working state is untouched and the same commit can be retried.

SEE ALSO:
  - allocator.go, normalize.go, split.go: The algorithms this orchestrates
  - history.go: Undo/redo snapshots
  - store.go: The persistence boundary
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT KINDS AND RESULTS
// =============================================================================

// PaymentKind distinguishes rent/charge payments, which run through
// chronological allocation and are undoable, from deposit adjustments, which
// go straight to the tenancy's deposit balance and bypass the ledger.
type PaymentKind string

const (
	PaymentRent    PaymentKind = "rent"
	PaymentDeposit PaymentKind = "deposit"
)

// AllocationResult reports what a payment actually did. A nonzero Unresolved
// means a refund's magnitude exceeded everything available to deduct; the
// part that could be deducted was still applied, and the caller should warn.
type AllocationResult struct {
	Requested  decimal.Decimal
	Applied    decimal.Decimal
	Unresolved decimal.Decimal
}

// CommitResult summarizes a successful commit.
type CommitResult struct {
	Upserted    int
	Deleted     int
	Swept       decimal.Decimal // overflow auto-reallocated into unpaid charges
	NewOverflow decimal.Decimal
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the sole mutator of one tenancy's working ledger state.
// Not safe for concurrent use.
type Session struct {
	// Now supplies "today" for status derivation. Overridable in tests.
	Now func() Date

	store         Store
	tenancyID     TenancyID
	occupantCount int

	charges        []*Charge
	overflow       Overflow
	pendingRefunds map[ChargeID]decimal.Decimal
	depositDelta   decimal.Decimal
	hist           *history

	// original holds clones of the loaded charges, keyed by ID, for
	// commit-time diffing.
	original map[ChargeID]*Charge
}

// Open loads a tenancy's ledger from the store and starts an edit session.
func Open(ctx context.Context, store Store, id TenancyID) (*Session, error) {
	state, err := store.LoadTenancy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open session for tenancy %s: %w", id, err)
	}

	s := &Session{
		Now:            Today,
		store:          store,
		tenancyID:      id,
		occupantCount:  state.OccupantCount,
		charges:        state.Charges,
		overflow:       Overflow{Committed: state.CommittedOverflow},
		pendingRefunds: make(map[ChargeID]decimal.Decimal),
		hist:           newHistory(),
	}
	if s.occupantCount < 1 {
		s.occupantCount = 1
	}

	SortCharges(s.charges)
	for _, c := range s.charges {
		EnsureOccupantMap(c, s.occupantCount)
	}
	RefreshStatuses(s.charges, s.occupantCount, s.Now())
	s.rebaseline()
	return s, nil
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

func (s *Session) TenancyID() TenancyID { return s.tenancyID }
func (s *Session) OccupantCount() int   { return s.occupantCount }

// Charges returns the working schedule, ascending by due date. Callers must
// treat the result as read-only; all mutation goes through session methods.
func (s *Session) Charges() []*Charge { return s.charges }

// OverflowState returns the committed balance and the session's pending delta.
func (s *Session) OverflowState() Overflow { return s.overflow }

// DepositDelta returns the deposit adjustment accumulated this session.
func (s *Session) DepositDelta() decimal.Decimal { return s.depositDelta }

// PendingRefunds returns a copy of the refunds captured from deleted charges.
func (s *Session) PendingRefunds() map[ChargeID]decimal.Decimal {
	out := make(map[ChargeID]decimal.Decimal, len(s.pendingRefunds))
	for k, v := range s.pendingRefunds {
		out[k] = v
	}
	return out
}

func (s *Session) CanUndo() bool { return s.hist.canUndo() }
func (s *Session) CanRedo() bool { return s.hist.canRedo() }

// =============================================================================
// PAYMENTS
// =============================================================================

// ApplyPayment applies a signed payment. A nil occupant targets all
// occupants; a non-nil occupant targets one slot of a shared tenancy.
// Deposit-kind payments adjust the deposit balance directly: no allocation,
// no history, no overflow involvement.
func (s *Session) ApplyPayment(amount decimal.Decimal, occupant *int, kind PaymentKind) (AllocationResult, error) {
	if amount.IsZero() {
		return AllocationResult{}, &ValidationError{Field: "amount", Message: "payment amount must be nonzero"}
	}

	switch kind {
	case PaymentDeposit:
		s.depositDelta = s.depositDelta.Add(amount)
		return AllocationResult{Requested: amount, Applied: amount}, nil
	case PaymentRent:
		// handled below
	default:
		return AllocationResult{}, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown payment kind %q", kind)}
	}

	if occupant != nil {
		if s.occupantCount < 2 {
			return AllocationResult{}, &ValidationError{Field: "occupant", Message: "tenancy is not shared"}
		}
		if *occupant < 0 || *occupant >= s.occupantCount {
			return AllocationResult{}, &ValidationError{
				Field:   "occupant",
				Message: fmt.Sprintf("slot %d out of range [0, %d)", *occupant, s.occupantCount),
			}
		}
	}

	s.recordHistory()

	var unresolved decimal.Decimal
	if occupant != nil {
		unresolved = AllocateToOccupant(amount, *occupant, s.occupantCount, s.charges, &s.overflow)
	} else {
		unresolved = Allocate(amount, s.charges, &s.overflow, s.occupantCount)
	}
	RefreshStatuses(s.charges, s.occupantCount, s.Now())

	return AllocationResult{
		Requested:  amount,
		Applied:    amount.Abs().Sub(unresolved).Mul(sign(amount)),
		Unresolved: unresolved,
	}, nil
}

// =============================================================================
// STRUCTURAL EDITS
// =============================================================================

// GenerateSchedule creates the initial charge schedule for an empty tenancy.
func (s *Session) GenerateSchedule(start Date, periods int, base decimal.Decimal, recurring []ExtraItem) error {
	if len(s.charges) > 0 {
		return &ValidationError{Field: "schedule", Message: "schedule already exists"}
	}
	charges, err := GenerateSchedule(start, periods, base, recurring)
	if err != nil {
		return err
	}
	s.recordHistory()
	for _, c := range charges {
		EnsureOccupantMap(c, s.occupantCount)
	}
	s.charges = charges
	RefreshStatuses(s.charges, s.occupantCount, s.Now())
	return nil
}

// EditChargeAmount changes a charge's base amount and re-normalizes.
func (s *Session) EditChargeAmount(id ChargeID, newBase decimal.Decimal) error {
	c, _, err := s.find(id)
	if err != nil {
		return err
	}
	if newBase.IsNegative() {
		return &ValidationError{Field: "base_amount", Message: "base amount must not be negative"}
	}
	s.recordHistory()
	c.BaseAmount = newBase
	s.normalize()
	return nil
}

// EditChargeDueDate moves a charge's due date. The new date must stay
// strictly between the neighboring charges' dates - the schedule stays in
// strict date order, and violations are rejected, never auto-corrected.
func (s *Session) EditChargeDueDate(id ChargeID, newDate Date) error {
	if newDate.IsZero() {
		return &ValidationError{Field: "due_date", Message: "due date is required"}
	}
	c, idx, err := s.find(id)
	if err != nil {
		return err
	}

	var lower, upper *Date
	if idx > 0 {
		d := s.charges[idx-1].DueDate
		lower = &d
	}
	if idx < len(s.charges)-1 {
		d := s.charges[idx+1].DueDate
		upper = &d
	}
	if (lower != nil && !newDate.After(*lower)) || (upper != nil && !newDate.Before(*upper)) {
		return &DateOutOfBoundsError{ChargeID: id, Requested: newDate, LowerBound: lower, UpperBound: upper}
	}

	s.recordHistory()
	c.DueDate = newDate
	s.normalize()
	return nil
}

// AddExtra appends an itemized supplemental charge to a charge.
func (s *Session) AddExtra(id ChargeID, item ExtraItem) error {
	c, _, err := s.find(id)
	if err != nil {
		return err
	}
	if item.Label == "" {
		return &ValidationError{Field: "extras", Message: "extra item requires a label"}
	}
	if !item.Amount.IsPositive() {
		return &ValidationError{Field: "extras", Message: "extra amount must be positive"}
	}
	s.recordHistory()
	c.Extras = append(c.Extras, item)
	s.normalize()
	return nil
}

// RemoveExtra removes the itemized extra at the given position.
func (s *Session) RemoveExtra(id ChargeID, index int) error {
	c, _, err := s.find(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(c.Extras) {
		return &ValidationError{Field: "extras", Message: fmt.Sprintf("no extra at index %d", index)}
	}
	s.recordHistory()
	c.Extras = append(c.Extras[:index], c.Extras[index+1:]...)
	s.normalize()
	return nil
}

// InsertCharge adds a charge immediately after the anchor charge. A period
// charge copies the schedule's prevailing base rent; a supplemental charge
// starts with zero base and no ordinal. After the last charge the new due
// date is one month out; between charges it is the day after the anchor,
// rejected if the gap has no room.
func (s *Session) InsertCharge(afterID ChargeID, supplemental bool) (*Charge, error) {
	anchor, idx, err := s.find(afterID)
	if err != nil {
		return nil, err
	}

	var due Date
	if idx == len(s.charges)-1 {
		due = anchor.DueDate.AddMonths(1)
	} else {
		due = anchor.DueDate.AddDays(1)
		if !due.Before(s.charges[idx+1].DueDate) {
			return nil, &ValidationError{Field: "due_date", Message: "no room between the anchor charge and the next charge"}
		}
	}

	base := decimal.Zero
	if !supplemental {
		base = s.prevailingBase(idx)
		if !base.IsPositive() {
			return nil, &ValidationError{Field: "base_amount", Message: "no base-amount charge to copy the rent from"}
		}
	}

	s.recordHistory()
	c := &Charge{
		ID:         NewPlaceholderChargeID(),
		DueDate:    due,
		BaseAmount: base,
		PaidAmount: decimal.Zero,
	}
	EnsureOccupantMap(c, s.occupantCount)
	s.charges = append(s.charges, c)
	Resequence(s.charges)
	s.normalize()
	return c, nil
}

// DeleteCharge removes a charge. If it was persisted and carried paid money,
// that money is captured as a pending refund and folded into overflow at
// commit; paid money on a never-persisted charge goes straight back to the
// pending overflow delta. Either way it is conserved.
func (s *Session) DeleteCharge(id ChargeID) error {
	c, idx, err := s.find(id)
	if err != nil {
		return err
	}
	s.recordHistory()

	if c.PaidAmount.IsPositive() {
		if id.IsPlaceholder() {
			s.overflow.Bank(c.PaidAmount)
		} else {
			s.pendingRefunds[id] = c.PaidAmount
		}
	}

	s.charges = append(s.charges[:idx], s.charges[idx+1:]...)
	Resequence(s.charges)
	s.normalize()
	return nil
}

// =============================================================================
// UNDO / REDO
// =============================================================================

// Undo restores the state before the most recent mutation. No-op when there
// is nothing to undo.
func (s *Session) Undo() bool {
	snap, ok := s.hist.popUndo(s.snapshot())
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

// Redo reapplies the most recently undone mutation.
func (s *Session) Redo() bool {
	snap, ok := s.hist.popRedo(s.snapshot())
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

// =============================================================================
// COMMIT
// =============================================================================

// Commit diffs the working state against the loaded state, folds pending
// refunds and the pending overflow delta into one overflow balance, sweeps
// positive overflow into still-unpaid charges (oldest first), and writes
// everything through the store in one atomic operation.
//
// On failure the session is unchanged and Commit can be called again.
func (s *Session) Commit(ctx context.Context) (*CommitResult, error) {
	refundTotal := decimal.Zero
	for _, v := range s.pendingRefunds {
		refundTotal = refundTotal.Add(v)
	}

	// The sweep runs on clones so a failed write leaves the session intact.
	working := CloneCharges(s.charges)
	newOverflow := s.overflow.Total().Add(refundTotal)

	swept := decimal.Zero
	if newOverflow.IsPositive() {
		leftover := fillAscending(newOverflow, working, s.occupantCount)
		swept = newOverflow.Sub(leftover)
		newOverflow = leftover
	}
	RefreshStatuses(working, s.occupantCount, s.Now())

	// Placeholder charges receive permanent IDs as part of the commit.
	var upserts []*Charge
	workingIDs := make(map[ChargeID]bool, len(working))
	for _, c := range working {
		wasPlaceholder := c.ID.IsPlaceholder()
		if wasPlaceholder {
			c.ID = NewChargeID()
		}
		workingIDs[c.ID] = true
		if wasPlaceholder || s.changedSinceLoad(c) {
			upserts = append(upserts, c)
		}
	}

	var deletes []ChargeID
	for id := range s.original {
		if !workingIDs[id] {
			deletes = append(deletes, id)
		}
	}

	set := CommitSet{
		Upserts:      upserts,
		DeleteIDs:    deletes,
		NewOverflow:  newOverflow,
		DepositDelta: s.depositDelta,
	}
	if err := s.store.CommitTenancy(ctx, s.tenancyID, set); err != nil {
		return nil, &PersistenceError{TenancyID: s.tenancyID, Err: err}
	}

	// Adopt the committed state as the new baseline.
	s.charges = working
	s.overflow = Overflow{Committed: newOverflow}
	s.pendingRefunds = make(map[ChargeID]decimal.Decimal)
	s.depositDelta = decimal.Zero
	s.rebaseline()
	s.hist.reset()

	return &CommitResult{
		Upserted:    len(upserts),
		Deleted:     len(deletes),
		Swept:       swept,
		NewOverflow: newOverflow,
	}, nil
}

// =============================================================================
// INVARIANT CHECKS (defensive; loud in tests)
// =============================================================================

// CheckInvariants verifies the engine's post-operation invariants on the
// working state. A non-nil result indicates an engine bug, never user error.
func (s *Session) CheckInvariants() error {
	for i, c := range s.charges {
		if c.PaidAmount.IsNegative() {
			return &InvariantError{ChargeID: c.ID, Name: "non_negative_paid",
				Detail: "paid amount is negative", Got: c.PaidAmount, Want: decimal.Zero}
		}
		if c.PaidAmount.GreaterThan(c.Gross().Add(Epsilon)) {
			return &InvariantError{ChargeID: c.ID, Name: "paid_within_gross",
				Detail: "paid amount exceeds gross", Got: c.PaidAmount, Want: c.Gross()}
		}
		if len(c.OccupantPayments) > 0 {
			sum := decimal.Zero
			for _, v := range c.OccupantPayments {
				sum = sum.Add(v)
			}
			if !withinEpsilon(sum, c.PaidAmount) {
				return &InvariantError{ChargeID: c.ID, Name: "occupant_sum",
					Detail: "occupant payments diverge from paid amount", Got: sum, Want: c.PaidAmount}
			}
		}
		// Chronological priority. Aggregate for single occupancy; per slot
		// for shared tenancies, where one occupant legitimately runs ahead
		// of another.
		if i > 0 {
			prev := s.charges[i-1]
			if s.occupantCount > 1 {
				for slot := 0; slot < s.occupantCount; slot++ {
					prevShare := OccupantShare(prev.Gross(), s.occupantCount)
					if !gteApprox(prev.OccupantPayments[slot], prevShare) && aboveEpsilon(c.OccupantPayments[slot]) {
						return &InvariantError{ChargeID: c.ID, Name: "chronological_priority",
							Detail: fmt.Sprintf("slot %d paid while earlier charge %s is unfilled", slot, prev.ID),
							Got:    c.OccupantPayments[slot], Want: decimal.Zero}
					}
				}
			} else if !gteApprox(prev.PaidAmount, prev.Gross()) && aboveEpsilon(c.PaidAmount) {
				return &InvariantError{ChargeID: c.ID, Name: "chronological_priority",
					Detail: fmt.Sprintf("charge paid while earlier charge %s is unfilled", prev.ID),
					Got:    c.PaidAmount, Want: decimal.Zero}
			}
		}
	}
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Session) find(id ChargeID) (*Charge, int, error) {
	if len(s.charges) == 0 {
		return nil, 0, &ValidationError{Field: "schedule", Message: ErrNoScheduleLoaded.Error()}
	}
	for i, c := range s.charges {
		if c.ID == id {
			return c, i, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrChargeNotFound, id)
}

// prevailingBase finds the base rent nearest the anchor: backwards first,
// then forwards.
func (s *Session) prevailingBase(idx int) decimal.Decimal {
	for i := idx; i >= 0; i-- {
		if !s.charges[i].IsSupplemental() {
			return s.charges[i].BaseAmount
		}
	}
	for i := idx + 1; i < len(s.charges); i++ {
		if !s.charges[i].IsSupplemental() {
			return s.charges[i].BaseAmount
		}
	}
	return decimal.Zero
}

func (s *Session) normalize() {
	Normalize(s.charges, &s.overflow, s.occupantCount, s.Now())
}

func (s *Session) recordHistory() {
	s.hist.record(s.snapshot())
}

func (s *Session) snapshot() ledgerSnapshot {
	return ledgerSnapshot{
		charges:        s.charges,
		pendingDelta:   s.overflow.PendingDelta,
		pendingRefunds: s.pendingRefunds,
	}
}

func (s *Session) restore(snap ledgerSnapshot) {
	s.charges = snap.charges
	s.overflow.PendingDelta = snap.pendingDelta
	s.pendingRefunds = snap.pendingRefunds
	if s.pendingRefunds == nil {
		s.pendingRefunds = make(map[ChargeID]decimal.Decimal)
	}
}

func (s *Session) rebaseline() {
	s.original = make(map[ChargeID]*Charge, len(s.charges))
	for _, c := range s.charges {
		if c.ID.IsPlaceholder() {
			continue
		}
		s.original[c.ID] = c.Clone()
	}
}

func (s *Session) changedSinceLoad(c *Charge) bool {
	orig, ok := s.original[c.ID]
	if !ok {
		return true
	}
	return !chargesEqual(orig, c)
}

// chargesEqual compares the persisted fields of two charges. Status is
// excluded: it is derived from money and calendar, so a status that drifted
// only because the clock moved is not a change worth writing.
func chargesEqual(a, b *Charge) bool {
	if !a.DueDate.Equal(b.DueDate) ||
		!a.BaseAmount.Equal(b.BaseAmount) ||
		!a.PaidAmount.Equal(b.PaidAmount) ||
		a.SequenceIndex != b.SequenceIndex ||
		len(a.Extras) != len(b.Extras) ||
		len(a.OccupantPayments) != len(b.OccupantPayments) {
		return false
	}
	for i := range a.Extras {
		if a.Extras[i].Label != b.Extras[i].Label || !a.Extras[i].Amount.Equal(b.Extras[i].Amount) {
			return false
		}
	}
	for k, v := range a.OccupantPayments {
		if !v.Equal(b.OccupantPayments[k]) {
			return false
		}
	}
	return true
}

func sign(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}
