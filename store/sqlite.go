package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"menuwatch/models"
	"menuwatch/snapshot"
)

// SQLiteStore persists snapshots and the change log in a local SQLite
// database. It needs no external service, which makes it the default
// backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS menu_records (
			identity    TEXT PRIMARY KEY,
			lab         TEXT NOT NULL,
			tier        TEXT NOT NULL,
			name        TEXT NOT NULL,
			grams       INTEGER NOT NULL DEFAULT 0,
			available   INTEGER NOT NULL DEFAULT 0,
			min_order   INTEGER NOT NULL DEFAULT 0,
			price       REAL NOT NULL DEFAULT 0,
			link        TEXT NOT NULL DEFAULT '',
			observed_at TEXT NOT NULL,
			position    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS changelog (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts          TEXT NOT NULL,
			change_type TEXT NOT NULL,
			identity    TEXT NOT NULL,
			name        TEXT NOT NULL,
			link        TEXT NOT NULL DEFAULT '',
			field       TEXT NOT NULL DEFAULT '',
			old_value   TEXT NOT NULL DEFAULT '',
			new_value   TEXT NOT NULL DEFAULT '',
			run_id      TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_changelog_ts       ON changelog(ts);
		CREATE INDEX IF NOT EXISTS idx_changelog_identity ON changelog(identity);
	`)
	return err
}

// ReadPrevious loads the stored snapshot. An empty table yields an
// empty snapshot.
func (s *SQLiteStore) ReadPrevious(ctx context.Context) (*models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, lab, tier, name, grams, available, min_order, price, link, observed_at
		FROM menu_records
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read snapshot: %w", err)
	}
	defer rows.Close()

	snap := models.NewSnapshot()
	for rows.Next() {
		var (
			rec        models.Record
			grams      int
			available  bool
			observedAt string
		)
		if err := rows.Scan(
			&rec.Identity, &rec.Lab, &rec.Tier, &rec.Name,
			&grams, &available, &rec.MinOrder, &rec.Price,
			&rec.Link, &observedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		if available {
			rec.Quantity = models.Grams(grams)
		} else {
			rec.Quantity = models.Unavailable()
		}
		rec.ObservedAt, _ = time.Parse(time.RFC3339, observedAt)
		snap.Add(&rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read snapshot: %w", err)
	}
	return snap, nil
}

// WriteSnapshot replaces the stored record set in one transaction.
func (s *SQLiteStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_records`); err != nil {
		return fmt.Errorf("sqlite: clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO menu_records
			(identity, lab, tier, name, grams, available, min_order, price, link, observed_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range snapshot.Sorted(snap) {
		if _, err := stmt.ExecContext(ctx,
			rec.Identity, rec.Lab, rec.Tier, rec.Name,
			rec.Quantity.Grams, rec.Quantity.Available,
			rec.MinOrder, rec.Price, rec.Link,
			rec.ObservedAt.UTC().Format(time.RFC3339), i,
		); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", rec.Identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit write: %w", err)
	}
	return nil
}

// AppendChanges appends events to the changelog table.
func (s *SQLiteStore) AppendChanges(ctx context.Context, events []models.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO changelog
			(ts, change_type, identity, name, link, field, old_value, new_value, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare append: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.Timestamp.UTC().Format(time.RFC3339), string(ev.Type),
			ev.Identity, ev.Name, ev.Link, ev.Field, ev.Old, ev.New, ev.RunID,
		); err != nil {
			return fmt.Errorf("sqlite: append change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit append: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
