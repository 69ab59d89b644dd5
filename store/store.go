// Package store persists snapshots and appends change events to a
// durable backend. The core never partially commits: a failed write
// aborts the run and the previous snapshot stays authoritative.
package store

import (
	"context"
	"strconv"
	"time"

	"menuwatch/models"
	"menuwatch/parser"
)

// Store is the snapshot store collaborator. ReadPrevious returns an
// empty snapshot when no prior run exists; "not found" never fails a
// run. WriteSnapshot replaces the whole current set. AppendChanges
// appends to the ever-growing change log and never rewrites it.
type Store interface {
	ReadPrevious(ctx context.Context) (*models.Snapshot, error)
	WriteSnapshot(ctx context.Context, snap *models.Snapshot) error
	AppendChanges(ctx context.Context, events []models.ChangeEvent) error
}

// Column layouts shared by the tabular backends (CSV and Sheets).
var (
	snapshotHeader = []string{
		"id", "lab", "tier", "name", "quantity", "sold_out",
		"min_order", "price", "link", "last_seen",
	}
	changelogHeader = []string{
		"timestamp", "change_type", "identity", "name", "link",
		"field", "old_value", "new_value", "run_id",
	}
)

func recordRow(rec *models.Record) []string {
	return []string{
		rec.Identity,
		rec.Lab,
		rec.Tier,
		rec.Name,
		rec.Quantity.String(),
		strconv.FormatBool(rec.SoldOut()),
		rec.MinOrderString(),
		rec.PriceString(),
		rec.Link,
		rec.ObservedAt.UTC().Format(time.RFC3339),
	}
}

// parseRecordRow rebuilds a record from a persisted row. Malformed
// cells degrade the same way scraped cells do; rows without an
// identity are unusable and reported as not ok.
func parseRecordRow(cols []string) (*models.Record, bool) {
	cell := func(i int) string {
		if i >= len(cols) {
			return ""
		}
		return cols[i]
	}

	identity := cell(0)
	if identity == "" {
		return nil, false
	}

	quantity, _ := parser.ParseQuantity(cell(4))
	minOrder, _ := parser.ParseMinOrder(cell(6))
	price, _ := strconv.ParseFloat(cell(7), 64)
	observedAt, _ := time.Parse(time.RFC3339, cell(9))

	return &models.Record{
		Identity:   identity,
		Lab:        cell(1),
		Tier:       cell(2),
		Name:       cell(3),
		Quantity:   quantity,
		MinOrder:   minOrder,
		Price:      price,
		Link:       cell(8),
		ObservedAt: observedAt,
	}, true
}

func changeRow(ev models.ChangeEvent) []string {
	return []string{
		ev.Timestamp.UTC().Format(time.RFC3339),
		string(ev.Type),
		ev.Identity,
		ev.Name,
		ev.Link,
		ev.Field,
		ev.Old,
		ev.New,
		ev.RunID,
	}
}
