package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"menuwatch/models"
	"menuwatch/snapshot"
)

// PostgresStore persists snapshots and the change log in PostgreSQL,
// for deployments that already run one.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL, waits for it to become
// reachable, and applies the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS menu_records (
			identity    TEXT PRIMARY KEY,
			lab         TEXT NOT NULL,
			tier        TEXT NOT NULL,
			name        TEXT NOT NULL,
			grams       INTEGER NOT NULL DEFAULT 0,
			available   BOOLEAN NOT NULL DEFAULT FALSE,
			min_order   INTEGER NOT NULL DEFAULT 0,
			price       NUMERIC(10,2) NOT NULL DEFAULT 0,
			link        TEXT NOT NULL DEFAULT '',
			observed_at TIMESTAMPTZ NOT NULL,
			position    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS changelog (
			id          SERIAL PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			change_type VARCHAR(32) NOT NULL,
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

// ReadPrevious loads the stored snapshot; an empty table yields an
// empty snapshot.
func (s *PostgresStore) ReadPrevious(ctx context.Context) (*models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, lab, tier, name, grams, available, min_order, price, link, observed_at
		FROM menu_records
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read snapshot: %w", err)
	}
	defer rows.Close()

	snap := models.NewSnapshot()
	for rows.Next() {
		var (
			rec       models.Record
			grams     int
			available bool
		)
		if err := rows.Scan(
			&rec.Identity, &rec.Lab, &rec.Tier, &rec.Name,
			&grams, &available, &rec.MinOrder, &rec.Price,
			&rec.Link, &rec.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		if available {
			rec.Quantity = models.Grams(grams)
		} else {
			rec.Quantity = models.Unavailable()
		}
		snap.Add(&rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read snapshot: %w", err)
	}
	return snap, nil
}

// WriteSnapshot replaces the stored record set in one transaction.
func (s *PostgresStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_records`); err != nil {
		return fmt.Errorf("postgres: clear records: %w", err)
	}

	records := snapshot.Sorted(snap)
	const batchSize = 100
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := insertRecordBatch(ctx, tx, records[start:end], start); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit write: %w", err)
	}
	return nil
}

func insertRecordBatch(ctx context.Context, tx *sql.Tx, batch []*models.Record, offset int) error {
	const cols = 11
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, rec := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for i := range placeholders {
			placeholders[i] = fmt.Sprintf("$%d", base+i+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			rec.Identity, rec.Lab, rec.Tier, rec.Name,
			rec.Quantity.Grams, rec.Quantity.Available,
			rec.MinOrder, rec.Price, rec.Link,
			rec.ObservedAt.UTC(), offset+idx,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO menu_records
			(identity, lab, tier, name, grams, available, min_order, price, link, observed_at, position)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// AppendChanges appends events to the changelog table.
func (s *PostgresStore) AppendChanges(ctx context.Context, events []models.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin append: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO changelog
				(ts, change_type, identity, name, link, field, old_value, new_value, run_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, ev.Timestamp.UTC(), string(ev.Type), ev.Identity, ev.Name, ev.Link,
			ev.Field, ev.Old, ev.New, ev.RunID,
		); err != nil {
			return fmt.Errorf("postgres: append change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit append: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
