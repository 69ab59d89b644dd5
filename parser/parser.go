// Package parser normalizes free-text menu cells into typed fields.
//
// Every function here is total: malformed input degrades to a
// documented default instead of failing the run. Each parse function
// also reports whether it had to fall back, so callers can surface a
// warning without aborting.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"menuwatch/models"
)

var (
	digitsRe = regexp.MustCompile(`(\d+)`)
	priceRe  = regexp.MustCompile(`\$([\d.]+)`)
)

// soldOutMarker flags an out-of-stock cell, matched case-insensitively
// as a substring.
const soldOutMarker = "SOLD OUT"

// qualifierSuffix is the trailing name qualifier stripped by
// NormalizeName.
const qualifierSuffix = " exotic"

// ParseQuantity converts a stock cell into a quantity. Empty cells,
// sold-out markers, unparsable text, and zero grams all yield
// Unavailable. The warn result is true when non-empty text failed to
// parse as a number.
func ParseQuantity(text string) (models.Quantity, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.Unavailable(), false
	}
	if strings.Contains(strings.ToUpper(trimmed), soldOutMarker) {
		return models.Unavailable(), false
	}

	m := digitsRe.FindString(trimmed)
	if m == "" {
		return models.Unavailable(), true
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return models.Unavailable(), true
	}
	return models.Grams(n), false
}

// ParseMinOrder extracts an optional minimum order amount. Empty or
// sold-out cells mean no minimum; parse failure also degrades to no
// minimum, flagged as a warning.
func ParseMinOrder(text string) (int, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false
	}
	if strings.Contains(strings.ToUpper(trimmed), soldOutMarker) {
		return 0, false
	}

	m := digitsRe.FindString(trimmed)
	if m == "" {
		return 0, true
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return 0, true
	}
	return n, false
}

// ParsePrice extracts the first $-prefixed decimal from a price cell.
// No match yields 0, which makes a truly missing price and a free item
// indistinguishable downstream. That lossy default is kept for
// compatibility with the existing changelog.
func ParsePrice(text string) (float64, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false
	}

	m := priceRe.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, true
	}
	price, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
	if err != nil {
		return 0, true
	}
	return price, false
}

// NormalizeName strips surrounding whitespace and a trailing
// "Exotic" qualifier from a product name.
func NormalizeName(text string) string {
	name := strings.TrimSpace(text)
	if len(name) > len(qualifierSuffix) &&
		strings.EqualFold(name[len(name)-len(qualifierSuffix):], qualifierSuffix) {
		name = strings.TrimSpace(name[:len(name)-len(qualifierSuffix)])
	}
	return name
}
