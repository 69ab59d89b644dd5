// Package pipeline runs one extraction end to end: fetch, classify,
// normalize, sort, diff, persist.
//
// A run is a single synchronous batch. The full new snapshot is built
// before the diff, and the diff is computed before anything is
// written, so a store failure never publishes a partial update.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"menuwatch/classify"
	"menuwatch/models"
	"menuwatch/scraper"
	"menuwatch/snapshot"
	"menuwatch/store"
)

// Fetcher is the page fetcher collaborator.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.RawRow, error)
}

// Runner wires the collaborators for one extraction run.
type Runner struct {
	Fetcher    Fetcher
	Store      store.Store
	Classifier classify.RowClassifier
	Metrics    *scraper.Metrics

	// DryRun computes the diff but skips both store writes.
	DryRun bool

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// Run executes one extraction. Malformed cells degrade to defaults and
// only collaborator failures abort the run; on error the previous
// snapshot remains authoritative.
func (r *Runner) Run(ctx context.Context) (*models.RunResult, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	classifier := r.Classifier
	if classifier == nil {
		classifier = classify.TableClassifier{}
	}

	result := &models.RunResult{
		RunID:     uuid.NewString(),
		StartTime: now(),
		DryRun:    r.DryRun,
	}
	observedAt := result.StartTime.UTC()

	rows, err := r.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch menu: %w", err)
	}
	result.RowsFetched = len(rows)

	current := r.buildSnapshot(classifier, rows, observedAt, result)

	previous, err := r.Store.ReadPrevious(ctx)
	if err != nil {
		return nil, fmt.Errorf("read previous snapshot: %w", err)
	}

	events := snapshot.Diff(previous, current, observedAt)
	for i := range events {
		events[i].RunID = result.RunID
		r.Metrics.IncChange(string(events[i].Type))
		switch events[i].Type {
		case models.ChangeAdded:
			result.Added++
		case models.ChangeRemoved:
			result.Removed++
		case models.ChangeField:
			result.FieldChanges++
		}
	}
	// newest first in the log; all events of one run share a
	// timestamp, so the per-run order above is preserved
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	if !r.DryRun {
		if err := r.Store.WriteSnapshot(ctx, current); err != nil {
			return nil, fmt.Errorf("write snapshot: %w", err)
		}
		if err := r.Store.AppendChanges(ctx, events); err != nil {
			return nil, fmt.Errorf("append changes: %w", err)
		}
	}

	r.Metrics.SetSnapshotSize(current.Len())
	result.RecordCount = current.Len()
	result.EndTime = now()

	slog.Info("run complete",
		slog.String("run_id", result.RunID),
		slog.Int("rows", result.RowsFetched),
		slog.Int("records", result.RecordCount),
		slog.Int("added", result.Added),
		slog.Int("removed", result.Removed),
		slog.Int("field_changes", result.FieldChanges),
		slog.Bool("dry_run", result.DryRun),
	)
	return result, nil
}

// buildSnapshot folds the classifier over the raw rows and assembles
// the deduplicated record set.
func (r *Runner) buildSnapshot(classifier classify.RowClassifier, rows []models.RawRow, observedAt time.Time, result *models.RunResult) *models.Snapshot {
	snap := models.NewSnapshot()
	var state classify.State

	for i, row := range rows {
		var res classify.Result
		state, res = classifier.Classify(state, row)

		switch res.Kind {
		case classify.KindHeader:
			r.Metrics.IncRow("header")
			result.HeaderRows++
			slog.Debug("section header",
				slog.Int("row", i),
				slog.String("section", state.Section),
				slog.String("lab", state.Lab()),
			)
			continue
		case classify.KindSkip:
			r.Metrics.IncRow("skipped")
			result.SkippedRows++
			slog.Debug("skipping row",
				slog.Int("row", i),
				slog.String("reason", res.Reason),
			)
			continue
		}

		rec, warned := snapshot.BuildRecord(state, row, observedAt)
		r.Metrics.IncRow("data")
		for _, field := range warned {
			result.ParseWarnings++
			r.Metrics.IncParseWarning(field)
			slog.Warn("cell failed to parse, default substituted",
				slog.Int("row", i),
				slog.String("name", rec.Name),
				slog.String("field", field),
			)
		}

		if displaced := snap.Add(rec); displaced != nil {
			result.Collisions++
			r.Metrics.IncCollision()
			slog.Warn("duplicate identity within run, keeping later row",
				slog.Int("row", i),
				slog.String("identity", rec.Identity),
			)
		}
	}
	return snap
}
