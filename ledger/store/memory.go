// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds tenancy ledgers in process memory. Loads return deep copies
// so sessions never alias the stored state; commits are applied atomically
// under one lock.
type Memory struct {
	mu        sync.RWMutex
	tenancies map[ledger.TenancyID]*record

	// FailNextCommit, when non-nil, is returned by the next CommitTenancy
	// call and then cleared. Lets tests exercise the persistence-failure
	// path without a real database.
	FailNextCommit error
}

type record struct {
	charges        []*ledger.Charge
	overflow       decimal.Decimal
	depositBalance decimal.Decimal
	occupantCount  int
}

func NewMemory() *Memory {
	return &Memory{tenancies: make(map[ledger.TenancyID]*record)}
}

// Seed creates or replaces a tenancy with the given state. The charges are
// cloned on the way in.
func (m *Memory) Seed(id ledger.TenancyID, charges []*ledger.Charge, overflow decimal.Decimal, occupantCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if occupantCount < 1 {
		occupantCount = 1
	}
	m.tenancies[id] = &record{
		charges:       ledger.CloneCharges(charges),
		overflow:      overflow,
		occupantCount: occupantCount,
	}
}

// DepositBalance returns a tenancy's deposit balance.
func (m *Memory) DepositBalance(id ledger.TenancyID) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.tenancies[id]; ok {
		return r.depositBalance
	}
	return decimal.Zero
}

// LoadTenancy implements ledger.Store.
func (m *Memory) LoadTenancy(_ context.Context, id ledger.TenancyID) (*ledger.TenancyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.tenancies[id]
	if !ok {
		return nil, ledger.ErrTenancyNotFound
	}
	return &ledger.TenancyState{
		Charges:           ledger.CloneCharges(r.charges),
		CommittedOverflow: r.overflow,
		OccupantCount:     r.occupantCount,
	}, nil
}

// CommitTenancy implements ledger.Store. All-or-nothing: the record is only
// touched once the whole set has been validated.
func (m *Memory) CommitTenancy(_ context.Context, id ledger.TenancyID, set ledger.CommitSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextCommit != nil {
		err := m.FailNextCommit
		m.FailNextCommit = nil
		return err
	}

	r, ok := m.tenancies[id]
	if !ok {
		return ledger.ErrTenancyNotFound
	}

	byID := make(map[ledger.ChargeID]*ledger.Charge, len(r.charges))
	for _, c := range r.charges {
		byID[c.ID] = c
	}
	for _, id := range set.DeleteIDs {
		delete(byID, id)
	}
	for _, c := range set.Upserts {
		byID[c.ID] = c.Clone()
	}

	charges := make([]*ledger.Charge, 0, len(byID))
	for _, c := range byID {
		charges = append(charges, c)
	}
	ledger.SortCharges(charges)

	r.charges = charges
	r.overflow = set.NewOverflow
	r.depositBalance = r.depositBalance.Add(set.DepositDelta)
	return nil
}
