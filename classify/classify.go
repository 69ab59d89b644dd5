// Package classify partitions scraped rows into section headers and
// data rows, and derives the lab category from section labels.
package classify

import (
	"strings"

	"menuwatch/models"
)

// Kind is the outcome of classifying one raw row.
type Kind int

const (
	// KindData marks a row carrying a product record.
	KindData Kind = iota
	// KindHeader marks a row introducing a new tier/lab section.
	KindHeader
	// KindSkip marks a row that is neither: column headers, empty
	// rows, and malformed stray headers.
	KindSkip
)

// Result carries the classification kind and, for skipped rows, a
// short reason label suitable for logs and metrics.
type Result struct {
	Kind   Kind
	Reason string
}

// State is the classifier's running category, threaded explicitly
// through the fold over rows. Section is the text of the last header
// row seen.
type State struct {
	Section string
}

// Lab derives the facility label from the current section text.
func (s State) Lab() string {
	return DeriveLab(s.Section)
}

// RowClassifier decides what a raw row is.
type RowClassifier interface {
	Classify(state State, row models.RawRow) (State, Result)
}

// placeholder texts allowed in the second cell of a header row
var headerPlaceholders = map[string]struct{}{
	"":           {},
	"tier":       {},
	"tier level": {},
}

// first-cell texts marking a column-header row
var headerLabels = map[string]struct{}{
	"name":   {},
	"strain": {},
}

// TableClassifier implements the layout of the vendor's menu table.
type TableClassifier struct{}

// Classify applies the header heuristics to one row and returns the
// updated running state.
//
// A row is a section header when it has a single cell, or when its
// first cell carries a tier marker and the second cell is empty or a
// known placeholder. Rows whose first cell is empty or a column-header
// label are skipped, as are stray header rows (tier marker in the name
// column but no product link).
func (TableClassifier) Classify(state State, row models.RawRow) (State, Result) {
	if len(row.Cells) == 0 {
		return state, Result{Kind: KindSkip, Reason: "empty_row"}
	}

	first := strings.TrimSpace(row.Cell(0))
	second := strings.ToLower(strings.TrimSpace(row.Cell(1)))

	if len(row.Cells) == 1 || (hasTierMarker(first) && isPlaceholder(second)) {
		state.Section = first
		return state, Result{Kind: KindHeader}
	}

	if first == "" {
		return state, Result{Kind: KindSkip, Reason: "empty_name"}
	}
	if _, ok := headerLabels[strings.ToLower(first)]; ok {
		return state, Result{Kind: KindSkip, Reason: "header_label"}
	}

	// A tier marker in the name column without a link is a malformed
	// header that slipped past the rule above, not a product.
	if hasTierMarker(first) && row.Link == "" {
		return state, Result{Kind: KindSkip, Reason: "stray_header"}
	}

	return state, Result{Kind: KindData}
}

func isPlaceholder(second string) bool {
	_, ok := headerPlaceholders[second]
	return ok
}

// hasTierMarker reports whether text contains one of the fixed tier
// tokens "tier 1".."tier 4".
func hasTierMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{"tier 1", "tier 2", "tier 3", "tier 4"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
