package salestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sale_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	units_sold INTEGER NOT NULL,
	status     TEXT    NOT NULL,
	updated_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS purchase_records (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT    NOT NULL UNIQUE,
	buyer        TEXT    NOT NULL,
	units        INTEGER NOT NULL,
	token_cost   TEXT    NOT NULL,
	platform_fee TEXT    NOT NULL,
	units_sold   INTEGER NOT NULL,
	ts           TEXT    NOT NULL
);
`

// SQLiteStore is a Store backed by a SQLite database. Amounts are
// stored as decimal strings so 256-bit values survive intact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) a SQLite store at
// path. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("salestore: opening sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("salestore: initializing schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveState overwrites the persisted snapshot.
func (s *SQLiteStore) SaveState(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_state (id, units_sold, status, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			units_sold = excluded.units_sold,
			status     = excluded.status,
			updated_at = excluded.updated_at`,
		int64(snap.UnitsSold), snap.Status.String(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("salestore: saving state: %w", err)
	}
	return nil
}

// LoadState returns the persisted snapshot, or ErrNoState.
func (s *SQLiteStore) LoadState(ctx context.Context) (Snapshot, error) {
	var unitsSold int64
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT units_sold, status FROM sale_state WHERE id = 1`).Scan(&unitsSold, &status)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNoState
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("salestore: loading state: %w", err)
	}
	parsed, err := sale.ParseStatus(status)
	if err != nil {
		return Snapshot{}, fmt.Errorf("salestore: %w", err)
	}
	return Snapshot{UnitsSold: uint64(unitsSold), Status: parsed}, nil
}

// AppendRecord appends a purchase record to the durable log.
func (s *SQLiteStore) AppendRecord(ctx context.Context, rec *sale.PurchaseRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_records (id, buyer, units, token_cost, platform_fee, units_sold, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Buyer, int64(rec.Units), rec.TokenCost.Dec(), rec.PlatformFee.Dec(),
		int64(rec.UnitsSold), rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("salestore: appending record: %w", err)
	}
	return nil
}

// Records returns all persisted records in append order.
func (s *SQLiteStore) Records(ctx context.Context) ([]*sale.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, buyer, units, token_cost, platform_fee, units_sold, ts
		FROM purchase_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("salestore: querying records: %w", err)
	}
	defer rows.Close()

	var records []*sale.PurchaseRecord
	for rows.Next() {
		var (
			id, buyer, cost, fee, ts string
			units, unitsSold         int64
		)
		if err := rows.Scan(&id, &buyer, &units, &cost, &fee, &unitsSold, &ts); err != nil {
			return nil, fmt.Errorf("salestore: scanning record: %w", err)
		}
		rec, err := rowToRecord(id, buyer, cost, fee, ts, units, unitsSold)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("salestore: iterating records: %w", err)
	}
	return records, nil
}

func rowToRecord(id, buyer, cost, fee, ts string, units, unitsSold int64) (*sale.PurchaseRecord, error) {
	costInt, err := uint256.FromDecimal(cost)
	if err != nil {
		return nil, fmt.Errorf("salestore: bad token_cost %q: %w", cost, err)
	}
	feeInt, err := uint256.FromDecimal(fee)
	if err != nil {
		return nil, fmt.Errorf("salestore: bad platform_fee %q: %w", fee, err)
	}
	when, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("salestore: bad timestamp %q: %w", ts, err)
	}
	return &sale.PurchaseRecord{
		ID:          id,
		Buyer:       buyer,
		Units:       uint64(units),
		TokenCost:   costInt,
		PlatformFee: feeInt,
		UnitsSold:   uint64(unitsSold),
		Timestamp:   when,
	}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
