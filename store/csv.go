package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"menuwatch/models"
	"menuwatch/snapshot"
)

// CSVStore keeps the current snapshot in current.csv (overwritten
// wholesale each run) and the change log in changelog.csv (append
// only), both under one directory.
type CSVStore struct {
	snapshotPath  string
	changelogPath string
}

// NewCSVStore prepares a CSV store rooted at dir, creating it if
// needed.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %q: %w", dir, err)
	}
	return &CSVStore{
		snapshotPath:  filepath.Join(dir, "current.csv"),
		changelogPath: filepath.Join(dir, "changelog.csv"),
	}, nil
}

// ReadPrevious loads the last written snapshot. A missing file means
// no prior run and yields an empty snapshot.
func (s *CSVStore) ReadPrevious(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	snap := models.NewSnapshot()
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if rec, ok := parseRecordRow(row); ok {
			snap.Add(rec)
		}
	}
	return snap, nil
}

// WriteSnapshot replaces current.csv with the new record set in
// presentation order.
func (s *CSVStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Create(s.snapshotPath)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(snapshotHeader); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	for _, rec := range snapshot.Sorted(snap) {
		if err := writer.Write(recordRow(rec)); err != nil {
			return fmt.Errorf("write snapshot record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush snapshot file: %w", err)
	}
	return f.Close()
}

// AppendChanges appends events to changelog.csv, writing the header
// first when the file is new.
func (s *CSVStore) AppendChanges(ctx context.Context, events []models.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	f, err := os.OpenFile(s.changelogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open changelog file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat changelog file: %w", err)
	}

	writer := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := writer.Write(changelogHeader); err != nil {
			return fmt.Errorf("write changelog header: %w", err)
		}
	}
	for _, ev := range events {
		if err := writer.Write(changeRow(ev)); err != nil {
			return fmt.Errorf("write changelog row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush changelog file: %w", err)
	}
	return f.Close()
}
