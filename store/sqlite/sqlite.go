/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements the ledger.Store persistence collaborator plus the tenancy
  record CRUD the API layer needs. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  tenancies: One row per active occupancy - property/tenant labels,
             occupant count, committed overflow, deposit balance
  charges:   One row per billing obligation, keyed to its tenancy

OPAQUE BLOBS:
  Itemized extras and per-occupant payment maps are stored as JSON columns
  and round-tripped losslessly. The engine never sees the encoding.

ATOMIC COMMITS:
  CommitTenancy runs inside a single SQL transaction: charge upserts,
  charge deletes, and the tenancy's overflow/deposit update either all land
  or none do. A partial failure rolls back and surfaces as an error.

MONEY COLUMNS:
  Decimal amounts are stored as their canonical string form, never as REAL.
  SQLite would happily store floats; the whole point of decimal arithmetic
  is lost the moment a column does.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  session, err := ledger.Open(ctx, store, tenancyID)

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// Store implements ledger.Store and tenancy record persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset clears all data. Used when loading demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"charges", "tenancies"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenancies (
		id TEXT PRIMARY KEY,
		property_name TEXT NOT NULL,
		tenant_name TEXT NOT NULL,
		occupant_count INTEGER NOT NULL DEFAULT 1,
		start_date TEXT NOT NULL,
		overflow TEXT NOT NULL DEFAULT '0',
		deposit_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS charges (
		id TEXT PRIMARY KEY,
		tenancy_id TEXT NOT NULL REFERENCES tenancies(id) ON DELETE CASCADE,
		due_date TEXT NOT NULL,
		base_amount TEXT NOT NULL,
		extras_json TEXT,
		paid_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		occupant_payments_json TEXT,
		sequence_index INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Session open loads a whole tenancy ordered by due date (hot path)
	CREATE INDEX IF NOT EXISTS idx_charges_tenancy_due
		ON charges(tenancy_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_charges_status
		ON charges(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TENANCY RECORDS
// =============================================================================

// Tenancy is the occupancy record owning a charge schedule. The engine only
// reads OccupantCount, and only mutates Overflow and DepositBalance through
// commits.
type Tenancy struct {
	ID             ledger.TenancyID
	PropertyName   string
	TenantName     string
	OccupantCount  int
	StartDate      ledger.Date
	Overflow       decimal.Decimal
	DepositBalance decimal.Decimal
	CreatedAt      time.Time
}

// CreateTenancy inserts a tenancy record.
func (s *Store) CreateTenancy(ctx context.Context, t Tenancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenancies (id, property_name, tenant_name, occupant_count, start_date,
		                       overflow, deposit_balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PropertyName, t.TenantName, t.OccupantCount, t.StartDate.String(),
		t.Overflow.String(), t.DepositBalance.String(), now, now,
	)
	return err
}

// GetTenancy returns a tenancy record, or ErrTenancyNotFound.
func (s *Store) GetTenancy(ctx context.Context, id ledger.TenancyID) (*Tenancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTenancy(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getTenancy(ctx context.Context, db queryRower, id ledger.TenancyID) (*Tenancy, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, property_name, tenant_name, occupant_count, start_date,
		       overflow, deposit_balance, created_at
		FROM tenancies WHERE id = ?`, id)

	var t Tenancy
	var startDate, overflow, deposit, createdAt string
	err := row.Scan(&t.ID, &t.PropertyName, &t.TenantName, &t.OccupantCount,
		&startDate, &overflow, &deposit, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTenancyNotFound
	}
	if err != nil {
		return nil, err
	}

	if t.StartDate, err = ledger.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("tenancy %s: bad start_date: %w", id, err)
	}
	if t.Overflow, err = decimal.NewFromString(overflow); err != nil {
		return nil, fmt.Errorf("tenancy %s: bad overflow: %w", id, err)
	}
	if t.DepositBalance, err = decimal.NewFromString(deposit); err != nil {
		return nil, fmt.Errorf("tenancy %s: bad deposit_balance: %w", id, err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

// ListTenancies returns all tenancy records, newest first.
func (s *Store) ListTenancies(ctx context.Context) ([]Tenancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM tenancies ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []ledger.TenancyID
	for rows.Next() {
		var id ledger.TenancyID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tenancies := make([]Tenancy, 0, len(ids))
	for _, id := range ids {
		t, err := s.getTenancy(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		tenancies = append(tenancies, *t)
	}
	return tenancies, nil
}

// DeleteTenancy removes a tenancy and (via cascade) its charges.
func (s *Store) DeleteTenancy(ctx context.Context, id ledger.TenancyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM tenancies WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTenancyNotFound
	}
	return nil
}

// SeedCharges bulk-inserts a freshly generated schedule for a tenancy.
// Placeholder IDs are replaced with permanent ones on the way in.
func (s *Store) SeedCharges(ctx context.Context, id ledger.TenancyID, charges []*ledger.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range charges {
		cp := c.Clone()
		if cp.ID.IsPlaceholder() {
			cp.ID = ledger.NewChargeID()
		}
		if err := upsertCharge(ctx, tx, id, cp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// LoadTenancy returns a tenancy's engine-facing state.
func (s *Store) LoadTenancy(ctx context.Context, id ledger.TenancyID) (*ledger.TenancyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.getTenancy(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, due_date, base_amount, extras_json, paid_amount, status,
		       occupant_payments_json, sequence_index
		FROM charges WHERE tenancy_id = ? ORDER BY due_date ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []*ledger.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ledger.TenancyState{
		Charges:           charges,
		CommittedOverflow: t.Overflow,
		OccupantCount:     t.OccupantCount,
	}, nil
}

// CommitTenancy applies a session's diff in one SQL transaction.
func (s *Store) CommitTenancy(ctx context.Context, id ledger.TenancyID, set ledger.CommitSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Deposit arithmetic stays in decimal; read-modify-write inside the
	// same transaction.
	t, err := s.getTenancy(ctx, tx, id)
	if err != nil {
		return err
	}
	newDeposit := t.DepositBalance.Add(set.DepositDelta)

	if _, err := tx.ExecContext(ctx, `
		UPDATE tenancies SET overflow = ?, deposit_balance = ?, updated_at = ?
		WHERE id = ?`,
		set.NewOverflow.String(), newDeposit.String(),
		time.Now().UTC().Format(time.RFC3339), id,
	); err != nil {
		return err
	}

	for _, chargeID := range set.DeleteIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM charges WHERE id = ? AND tenancy_id = ?`, chargeID, id); err != nil {
			return err
		}
	}
	for _, c := range set.Upserts {
		if err := upsertCharge(ctx, tx, id, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type extraJSON struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

func upsertCharge(ctx context.Context, tx *sql.Tx, tenancyID ledger.TenancyID, c *ledger.Charge) error {
	extras, err := encodeExtras(c.Extras)
	if err != nil {
		return err
	}
	occupants, err := encodeOccupants(c.OccupantPayments)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO charges (id, tenancy_id, due_date, base_amount, extras_json,
		                     paid_amount, status, occupant_payments_json, sequence_index,
		                     created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			due_date = excluded.due_date,
			base_amount = excluded.base_amount,
			extras_json = excluded.extras_json,
			paid_amount = excluded.paid_amount,
			status = excluded.status,
			occupant_payments_json = excluded.occupant_payments_json,
			sequence_index = excluded.sequence_index,
			updated_at = excluded.updated_at`,
		c.ID, tenancyID, c.DueDate.String(), c.BaseAmount.String(), extras,
		c.PaidAmount.String(), string(c.Status), occupants, c.SequenceIndex,
		now, now,
	)
	return err
}

func scanCharge(rows *sql.Rows) (*ledger.Charge, error) {
	var c ledger.Charge
	var dueDate, baseAmount, paidAmount, status string
	var extras, occupants sql.NullString

	if err := rows.Scan(&c.ID, &dueDate, &baseAmount, &extras, &paidAmount,
		&status, &occupants, &c.SequenceIndex); err != nil {
		return nil, err
	}

	var err error
	if c.DueDate, err = ledger.ParseDate(dueDate); err != nil {
		return nil, fmt.Errorf("charge %s: bad due_date: %w", c.ID, err)
	}
	if c.BaseAmount, err = decimal.NewFromString(baseAmount); err != nil {
		return nil, fmt.Errorf("charge %s: bad base_amount: %w", c.ID, err)
	}
	if c.PaidAmount, err = decimal.NewFromString(paidAmount); err != nil {
		return nil, fmt.Errorf("charge %s: bad paid_amount: %w", c.ID, err)
	}
	c.Status = ledger.Status(status)

	if extras.Valid && extras.String != "" {
		if c.Extras, err = decodeExtras(extras.String); err != nil {
			return nil, fmt.Errorf("charge %s: bad extras_json: %w", c.ID, err)
		}
	}
	if occupants.Valid && occupants.String != "" {
		if c.OccupantPayments, err = decodeOccupants(occupants.String); err != nil {
			return nil, fmt.Errorf("charge %s: bad occupant_payments_json: %w", c.ID, err)
		}
	}
	return &c, nil
}

func encodeExtras(extras []ledger.ExtraItem) (string, error) {
	if len(extras) == 0 {
		return "", nil
	}
	out := make([]extraJSON, len(extras))
	for i, e := range extras {
		out[i] = extraJSON{Label: e.Label, Amount: e.Amount.String()}
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func decodeExtras(raw string) ([]ledger.ExtraItem, error) {
	var in []extraJSON
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make([]ledger.ExtraItem, len(in))
	for i, e := range in {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, err
		}
		out[i] = ledger.ExtraItem{Label: e.Label, Amount: amount}
	}
	return out, nil
}

func encodeOccupants(m map[int]decimal.Decimal) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	out := make(map[string]string, len(m))
	for slot, v := range m {
		out[strconv.Itoa(slot)] = v.String()
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func decodeOccupants(raw string) (map[int]decimal.Decimal, error) {
	var in map[string]string
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make(map[int]decimal.Decimal, len(in))
	for k, v := range in {
		slot, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		out[slot] = amount
	}
	return out, nil
}
