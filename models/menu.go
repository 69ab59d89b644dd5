// Package models defines data structures for the menu tracker.
package models

import (
	"fmt"
	"strings"
	"time"
)

// RawRow is one table row as scraped from the vendor page: the ordered
// cell texts plus the hyperlink found in the name cell, if any.
type RawRow struct {
	Cells []string
	Link  string
}

// Cell returns the text of cell i, or "" when the row is shorter.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Quantity is an amount of stock in grams. Zero grams is not a valid
// quantity; it collapses to unavailable.
type Quantity struct {
	Grams     int
	Available bool
}

// Grams builds an available quantity. Non-positive amounts collapse to
// Unavailable.
func Grams(n int) Quantity {
	if n <= 0 {
		return Unavailable()
	}
	return Quantity{Grams: n, Available: true}
}

// Unavailable is the sentinel out-of-stock quantity.
func Unavailable() Quantity {
	return Quantity{}
}

// String is the normalized representation used for comparison and
// persistence.
func (q Quantity) String() string {
	if !q.Available {
		return "SOLD OUT"
	}
	return fmt.Sprintf("%d", q.Grams)
}

// Tracked field names for change events.
const (
	FieldQuantity = "quantity"
	FieldMinOrder = "min_order"
	FieldPrice    = "price"
)

// TrackedFields lists the record fields compared by the diff, in the
// order their change events are emitted.
var TrackedFields = []string{FieldQuantity, FieldMinOrder, FieldPrice}

// Record is one normalized menu entry. Records are built fresh every
// run and never mutated afterwards.
type Record struct {
	// Identity recognizes "the same product" across runs regardless of
	// table position: lowercase lab|tier|name with spaces replaced by
	// underscores.
	Identity string

	Name string
	Tier string
	Lab  string

	Quantity Quantity

	// MinOrder is the minimum order amount in grams, 0 when the menu
	// does not state one.
	MinOrder int

	// Price defaults to 0 when the cell cannot be parsed. That
	// conflates "free" and "unknown"; kept as a compatibility shim for
	// existing changelog consumers.
	Price float64

	Link       string
	ObservedAt time.Time
}

// SoldOut reports whether the record is out of stock. Derived from
// Quantity; persisted for consumers but never diffed separately.
func (r *Record) SoldOut() bool {
	return !r.Quantity.Available
}

// MinOrderString is the normalized min-order representation, "" when
// absent.
func (r *Record) MinOrderString() string {
	if r.MinOrder <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", r.MinOrder)
}

// PriceString renders the price with fixed decimals so that "5" and
// "5.00" compare equal across runs.
func (r *Record) PriceString() string {
	return fmt.Sprintf("%.2f", r.Price)
}

// Field returns the normalized string value of a tracked field.
func (r *Record) Field(name string) string {
	switch name {
	case FieldQuantity:
		return r.Quantity.String()
	case FieldMinOrder:
		return r.MinOrderString()
	case FieldPrice:
		return r.PriceString()
	}
	return ""
}

// Snapshot is the complete set of records from one run, keyed by
// identity.
type Snapshot struct {
	Records map[string]*Record
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Records: make(map[string]*Record)}
}

// Add inserts a record and returns the record it displaced, if the
// identity was already present. Last write wins within a run.
func (s *Snapshot) Add(rec *Record) *Record {
	prev := s.Records[rec.Identity]
	s.Records[rec.Identity] = rec
	return prev
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.Records)
}

// ChangeType labels a change event. The values are the vocabulary
// persisted in the changelog.
type ChangeType string

const (
	ChangeAdded   ChangeType = "NEW_ITEM"
	ChangeRemoved ChangeType = "REMOVED"
	ChangeField   ChangeType = "FIELD_CHANGE"
)

// ChangeEvent records one difference between two consecutive
// snapshots. Events are append-only; nothing ever rewrites them.
type ChangeEvent struct {
	Timestamp time.Time
	Type      ChangeType
	Identity  string
	Name      string
	Link      string
	Field     string // set for FIELD_CHANGE only
	Old       string
	New       string
	RunID     string
}

// RunResult summarizes a single extraction run.
type RunResult struct {
	RunID         string
	StartTime     time.Time
	EndTime       time.Time
	RowsFetched   int
	HeaderRows    int
	SkippedRows   int
	RecordCount   int
	Collisions    int
	ParseWarnings int
	Added         int
	Removed       int
	FieldChanges  int
	DryRun        bool
}

// Changes returns the total number of change events emitted.
func (r *RunResult) Changes() int {
	return r.Added + r.Removed + r.FieldChanges
}

// String renders a compact one-line summary for logs.
func (r *RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d rows -> %d records", r.RunID, r.RowsFetched, r.RecordCount)
	fmt.Fprintf(&b, ", +%d -%d ~%d", r.Added, r.Removed, r.FieldChanges)
	if r.ParseWarnings > 0 {
		fmt.Fprintf(&b, ", %d parse warnings", r.ParseWarnings)
	}
	if r.Collisions > 0 {
		fmt.Fprintf(&b, ", %d identity collisions", r.Collisions)
	}
	return b.String()
}
