/*
history.go - Bounded undo/redo for one edit session

PURPOSE:
  Stack-of-snapshots undo/redo. Snapshots are deep copies of the working
  ledger; later mutation of the live state never reaches back into a stored
  snapshot. Scoped to one editing session and never persisted.

SEMANTICS:
  - Record() pushes the pre-mutation state and clears the redo stack
    (branching history: any new action invalidates redo, not just undo)
  - Undo() pushes the current state to redo and restores the last snapshot
  - Redo() is the mirror
  - Capacity is bounded at 50 entries; the oldest entry is discarded
    silently on overflow. This is a convenience feature, not an audit log.
*/
package ledger

import "github.com/shopspring/decimal"

// historyLimit bounds the undo stack. Oldest entries fall off silently.
const historyLimit = 50

// ledgerSnapshot is a by-value capture of the session's working ledger:
// charges (with occupant maps and extras), pending refunds, and the pending
// overflow delta. Deposit adjustments are deliberately excluded - they
// bypass the ledger and its history.
type ledgerSnapshot struct {
	charges        []*Charge
	pendingDelta   decimal.Decimal
	pendingRefunds map[ChargeID]decimal.Decimal
}

func (s ledgerSnapshot) clone() ledgerSnapshot {
	refunds := make(map[ChargeID]decimal.Decimal, len(s.pendingRefunds))
	for k, v := range s.pendingRefunds {
		refunds[k] = v
	}
	return ledgerSnapshot{
		charges:        CloneCharges(s.charges),
		pendingDelta:   s.pendingDelta,
		pendingRefunds: refunds,
	}
}

// history is the bounded undo/redo stack pair.
type history struct {
	undo []ledgerSnapshot
	redo []ledgerSnapshot
}

func newHistory() *history {
	return &history{}
}

// record pushes the given pre-mutation snapshot onto the undo stack and
// clears the redo stack.
func (h *history) record(s ledgerSnapshot) {
	h.undo = append(h.undo, s.clone())
	if len(h.undo) > historyLimit {
		h.undo = h.undo[len(h.undo)-historyLimit:]
	}
	h.redo = nil
}

// popUndo exchanges the current state for the most recent snapshot.
// Returns false (and leaves current untouched) when there is nothing to undo.
func (h *history) popUndo(current ledgerSnapshot) (ledgerSnapshot, bool) {
	if len(h.undo) == 0 {
		return ledgerSnapshot{}, false
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current.clone())
	return top, true
}

// popRedo is the mirror of popUndo.
func (h *history) popRedo(current ledgerSnapshot) (ledgerSnapshot, bool) {
	if len(h.redo) == 0 {
		return ledgerSnapshot{}, false
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current.clone())
	return top, true
}

func (h *history) canUndo() bool { return len(h.undo) > 0 }
func (h *history) canRedo() bool { return len(h.redo) > 0 }

func (h *history) reset() {
	h.undo = nil
	h.redo = nil
}
