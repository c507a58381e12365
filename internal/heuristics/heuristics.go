// Package heuristics infers which columns of a row matrix correspond to
// the business field roles, using header text and simple statistics over
// sampled cell values.
//
// Suggest is a pure function: identical input always yields the identical
// suggestion map. Confidence scores are advisory; the caller pre-selects a
// suggestion only when its confidence exceeds [AcceptThreshold].
package heuristics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dokflow/dokflow/internal/core"
)

// Confidence tiers. A header matching a synonym exactly scores 0.95, a
// substring match 0.75, and a type-only statistical fallback 0.55. Only
// scores above AcceptThreshold are auto-applied to the mapping form.
const (
	ConfidenceExact     = 0.95
	ConfidenceSubstring = 0.75
	ConfidenceTypeOnly  = 0.55
	AcceptThreshold     = 0.7
)

// numericSampleSize caps how many non-empty data cells are inspected when
// deciding whether a column is numeric.
const numericSampleSize = 20

// numericRatio is the fraction of sampled cells that must look numeric for
// the column to count as numeric.
const numericRatio = 0.7

// numericPattern is deliberately permissive: optional leading minus, then
// digits with dot/comma/space separators, optional trailing percent.
var numericPattern = regexp.MustCompile(`^-?[\d.,\s]+%?$`)

// Synonym lists per role, matched case-insensitively against normalized
// header labels. The mix of English, Polish, German and Chinese terms
// mirrors the supplier files this tool actually receives.
var (
	identifierSynonyms = []string{
		"symbol", "sku", "kod", "artikel", "article", "product", "item",
		"nr", "numer", "index", "ean", "barcode", "kody kreskowe",
		"编号", "货号",
	}
	quantitySynonyms = []string{
		"ilość", "ilosc", "qty", "quantity", "amount", "szt", "数量", "件",
	}
	priceSynonyms = []string{
		"cena", "price", "unit price", "cena jedn", "cena_jedn", "unit",
		"单价", "价格",
	}
	currencySynonyms = []string{
		"waluta", "currency", "curr", "货币", "币种",
	}
)

// normalize lowercases a label and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// matchConfidence scores a header label against a synonym list:
// 0.95 for an exact match, 0.75 for a substring match in either direction,
// 0 for no match.
func matchConfidence(label string, synonyms []string) float64 {
	n := normalize(label)
	if n == "" {
		return 0
	}
	for _, syn := range synonyms {
		sn := normalize(syn)
		if n == sn {
			return ConfidenceExact
		}
		if strings.Contains(n, sn) || strings.Contains(sn, n) {
			return ConfidenceSubstring
		}
	}
	return 0
}

// looksNumeric samples up to numericSampleSize non-empty values and reports
// whether at least numericRatio of them match the permissive numeric
// pattern. A column with no non-empty samples is not numeric.
func looksNumeric(values []string) bool {
	sampled := 0
	numeric := 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		sampled++
		if numericPattern.MatchString(v) {
			numeric++
		}
		if sampled == numericSampleSize {
			break
		}
	}
	if sampled == 0 {
		return false
	}
	return float64(numeric)/float64(sampled) >= numericRatio
}

// Suggest proposes a column for each field role.
//
// Assignment is single-pass over columns left to right, first-match-wins,
// in fixed role priority order: a header synonym match claims identifier
// before quantity before price, and a role once assigned is never
// overwritten by a later column. Columns with no header match fall back to
// type-only inference at a fixed lower confidence: the first unassigned
// numeric column fills quantity, the second fills price, and the first
// unassigned non-numeric column fills identifier. The two tiers are
// intentionally ordered so that a semantic text match always beats a
// statistical one; do not replace this with a best-score search.
func Suggest(rows core.RowMatrix, headerRowIndex int) map[core.FieldRole]core.RoleSuggestion {
	suggested := map[core.FieldRole]core.RoleSuggestion{}
	if headerRowIndex < 0 || headerRowIndex >= len(rows) {
		return suggested
	}

	headerRow := rows[headerRowIndex]
	dataRows := rows.DataRows(headerRowIndex)
	columnCount := rows.MaxWidth()

	for col := 0; col < columnCount; col++ {
		label := ""
		if col < len(headerRow) {
			label = strings.TrimSpace(headerRow[col])
		}

		values := make([]string, len(dataRows))
		for i, r := range dataRows {
			if col < len(r) {
				values[i] = r[col]
			}
		}
		isNumeric := looksNumeric(values)

		confIdentifier := matchConfidence(label, identifierSynonyms)
		confQuantity := matchConfidence(label, quantitySynonyms)
		confPrice := matchConfidence(label, priceSynonyms)

		_, hasIdentifier := suggested[core.RoleIdentifier]
		_, hasQuantity := suggested[core.RoleQuantity]
		_, hasPrice := suggested[core.RoleUnitPrice]

		switch {
		case confIdentifier > 0 && !hasIdentifier:
			suggested[core.RoleIdentifier] = core.RoleSuggestion{ColumnIndex: col, Confidence: confIdentifier}
		case confQuantity > 0 && !hasQuantity:
			suggested[core.RoleQuantity] = core.RoleSuggestion{ColumnIndex: col, Confidence: confQuantity}
		case confPrice > 0 && !hasPrice:
			suggested[core.RoleUnitPrice] = core.RoleSuggestion{ColumnIndex: col, Confidence: confPrice}
		case isNumeric && !hasQuantity:
			suggested[core.RoleQuantity] = core.RoleSuggestion{ColumnIndex: col, Confidence: ConfidenceTypeOnly}
		case isNumeric && !hasPrice:
			suggested[core.RoleUnitPrice] = core.RoleSuggestion{ColumnIndex: col, Confidence: ConfidenceTypeOnly}
		case !isNumeric && !hasIdentifier:
			suggested[core.RoleIdentifier] = core.RoleSuggestion{ColumnIndex: col, Confidence: ConfidenceTypeOnly}
		}
	}

	return suggested
}

// ColumnLabels derives one display label per column. Width is the maximum
// row length across the whole matrix, not just the header row, so data-only
// columns past the header's end still receive a positional placeholder.
func ColumnLabels(rows core.RowMatrix, headerRowIndex int) []string {
	if headerRowIndex < 0 || headerRowIndex >= len(rows) {
		return nil
	}
	headerRow := rows[headerRowIndex]
	width := rows.MaxWidth()

	labels := make([]string, 0, width)
	for c := 0; c < width; c++ {
		label := ""
		if c < len(headerRow) {
			label = strings.TrimSpace(headerRow[c])
		}
		if label == "" {
			label = fmt.Sprintf("Column %d", c+1)
		}
		labels = append(labels, label)
	}
	return labels
}

// FindCurrencyColumn locates a currency-code column by header synonym,
// used to pre-select the conversion currency on the export form.
func FindCurrencyColumn(rows core.RowMatrix, headerRowIndex int) (int, bool) {
	if headerRowIndex < 0 || headerRowIndex >= len(rows) {
		return 0, false
	}
	for col, label := range rows[headerRowIndex] {
		if matchConfidence(label, currencySynonyms) > 0 {
			return col, true
		}
	}
	return 0, false
}
