/*
store.go - Persistence collaborator boundary

PURPOSE:
  Defines the interface between the edit session and whatever persists
  tenancy ledgers. The engine loads a tenancy's charges and committed
  overflow at session open, and hands back a minimal diff at commit.

ATOMICITY CONTRACT:
  CommitTenancy is all-or-nothing from the engine's perspective. A partial
  failure must surface as an error, never as success - the session keeps
  its working state so the exact same commit can be retried.

OPAQUE BLOBS:
  Itemized extras and per-occupant payment maps are native structures in
  memory. How a store serializes them (JSON columns, separate tables) is
  its own concern; it only has to round-trip them losslessly.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: Production SQLite
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// TenancyState is what a store returns when a session opens.
type TenancyState struct {
	Charges           []*Charge
	CommittedOverflow decimal.Decimal
	OccupantCount     int
}

// CommitSet is the minimal write a session produces at commit.
type CommitSet struct {
	Upserts      []*Charge
	DeleteIDs    []ChargeID
	NewOverflow  decimal.Decimal
	DepositDelta decimal.Decimal
}

// Store persists tenancy ledgers.
type Store interface {
	// LoadTenancy returns the tenancy's charges, committed overflow, and
	// occupant count. Returns ErrTenancyNotFound for unknown IDs.
	LoadTenancy(ctx context.Context, id TenancyID) (*TenancyState, error)

	// CommitTenancy applies the diff atomically: upserts, deletes, the new
	// overflow balance, and any deposit adjustment accumulated during the
	// session.
	CommitTenancy(ctx context.Context, id TenancyID, set CommitSet) error
}
