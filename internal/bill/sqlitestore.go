package bill

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    date INTEGER NOT NULL,
    total_amount REAL NOT NULL,
    currency TEXT NOT NULL,
    category_name TEXT NOT NULL,
    category_icon TEXT NOT NULL,
    full_data TEXT NOT NULL,
    image_ref TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_owner_created
    ON history (owner, created_at DESC);
`

// SQLiteStore implements Store on a SQLite database, one row per record,
// scoped by owner. This is the server-backed variant: capacity is treated
// as unbounded, so no retention cap is enforced and saves never warn.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and ensures the schema exists
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// List returns the owner's records ordered by creation time descending
func (s *SQLiteStore) List(ctx context.Context, owner string) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, date, total_amount, currency, category_name, category_icon, full_data, image_ref, created_at
		FROM history WHERE owner = ? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	defer rows.Close()

	records := make([]HistoryRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return records, nil
}

// Get retrieves a single record by id
func (s *SQLiteStore) Get(ctx context.Context, id string) (*HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, date, total_amount, currency, category_name, category_icon, full_data, image_ref, created_at
		FROM history WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save inserts a new record. No cap, no warning.
func (s *SQLiteStore) Save(ctx context.Context, owner string, rec HistoryRecord) (SaveResult, error) {
	fullData, err := json.Marshal(rec.FullData)
	if err != nil {
		return SaveResult{}, fmt.Errorf("marshaling bill: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (id, owner, date, total_amount, currency, category_name, category_icon, full_data, image_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, owner, rec.Date.Unix(), rec.Summary.TotalAmount, rec.Summary.Currency,
		rec.Category.Name, rec.Category.Icon, string(fullData), rec.ImageRef, rec.CreatedAt.Unix())
	if err != nil {
		return SaveResult{}, fmt.Errorf("saving bill: %w", err)
	}

	return SaveResult{ID: rec.ID}, nil
}

// Update replaces an existing record's bill data
func (s *SQLiteStore) Update(ctx context.Context, id string, b Bill) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.applyUpdate(b)

	fullData, err := json.Marshal(rec.FullData)
	if err != nil {
		return fmt.Errorf("marshaling bill: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE history SET date = ?, total_amount = ?, currency = ?, category_name = ?, category_icon = ?, full_data = ?
		WHERE id = ?`,
		rec.Date.Unix(), rec.Summary.TotalAmount, rec.Summary.Currency, rec.Category.Name, rec.Category.Icon, string(fullData), id)
	if err != nil {
		return fmt.Errorf("updating bill: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating bill: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record by id
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting bill: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*HistoryRecord, error) {
	var (
		rec       HistoryRecord
		owner     string
		date      int64
		fullData  string
		createdAt int64
	)
	err := row.Scan(&rec.ID, &owner, &date, &rec.Summary.TotalAmount, &rec.Summary.Currency,
		&rec.Category.Name, &rec.Category.Icon, &fullData, &rec.ImageRef, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bill row: %w", err)
	}

	rec.Date = time.Unix(date, 0).UTC()
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := json.Unmarshal([]byte(fullData), &rec.FullData); err != nil {
		return nil, fmt.Errorf("unmarshaling bill: %w", err)
	}
	return &rec, nil
}
