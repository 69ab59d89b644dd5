// Package snapshot assembles normalized records, orders them for
// presentation, and computes the change log between consecutive runs.
package snapshot

import (
	"strings"
	"time"

	"menuwatch/classify"
	"menuwatch/models"
	"menuwatch/parser"
)

// Data-row column layout of the source table. Missing cells read as
// empty strings and degrade through the parsers.
const (
	colName     = 0
	colTier     = 1
	colStock    = 2
	colMinOrder = 3
	colPrice    = 4
)

// Identity builds the composite key that recognizes the same product
// across runs: lowercase lab|tier|name with spaces collapsed to
// underscores, so the key survives cosmetic whitespace changes.
func Identity(lab, tier, name string) string {
	joined := strings.ToLower(lab + "|" + tier + "|" + name)
	return strings.ReplaceAll(joined, " ", "_")
}

// BuildRecord constructs a record from a classified data row. It never
// rejects a row; malformed fields degrade to their documented defaults
// and the affected field names are returned so the caller can log a
// warning per field.
func BuildRecord(state classify.State, row models.RawRow, observedAt time.Time) (*models.Record, []string) {
	name := parser.NormalizeName(row.Cell(colName))
	tier := strings.TrimSpace(row.Cell(colTier))
	lab := state.Lab()

	var warned []string
	quantity, warn := parser.ParseQuantity(row.Cell(colStock))
	if warn {
		warned = append(warned, models.FieldQuantity)
	}
	minOrder, warn := parser.ParseMinOrder(row.Cell(colMinOrder))
	if warn {
		warned = append(warned, models.FieldMinOrder)
	}
	price, warn := parser.ParsePrice(row.Cell(colPrice))
	if warn {
		warned = append(warned, models.FieldPrice)
	}

	return &models.Record{
		Identity:   Identity(lab, tier, name),
		Name:       name,
		Tier:       tier,
		Lab:        lab,
		Quantity:   quantity,
		MinOrder:   minOrder,
		Price:      price,
		Link:       row.Link,
		ObservedAt: observedAt,
	}, warned
}
