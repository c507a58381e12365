// Package export projects a mapped row matrix into the fixed ERP import
// format: semicolon-separated values, one record per line, CRLF line
// endings, UTF-8 BOM prefix, no trailing terminator.
//
// Projection is best-effort by policy. Individual malformed cells degrade
// to pass-through and rows missing a required field are dropped rather
// than failing the whole export.
package export

import (
	"strconv"
	"strings"

	"github.com/dokflow/dokflow/internal/core"
)

const (
	separator = ";"
	bom       = "\ufeff"
)

// CurrencyOptions enables price normalization into the target currency.
// Rate is the multiplier applied to every parseable price cell.
type CurrencyOptions struct {
	Rate     float64
	Currency string
}

// Result carries the projected output and the advisory drop count.
// Dropped rows are a normal outcome of the best-effort policy, not an
// error; the count exists only as an observability signal.
type Result struct {
	CSV     string
	Emitted int
	Dropped int
}

// Project renders the data rows after headerRowIndex through the confirmed
// role mapping. Unmapped roles and out-of-range indexes resolve to empty
// text. A row whose identifier, quantity or price resolves empty is
// silently skipped; there is no partial-row emission.
func Project(rows core.RowMatrix, headerRowIndex int, mapping core.Mapping, opts *CurrencyOptions) Result {
	var lines []string
	dropped := 0

	start := headerRowIndex + 1
	if start < 0 {
		start = 0
	}
	for rowIdx := start; rowIdx < len(rows); rowIdx++ {
		identifier := rows.Cell(rowIdx, mapping.Column(core.RoleIdentifier))
		quantity := rows.Cell(rowIdx, mapping.Column(core.RoleQuantity))
		price := rows.Cell(rowIdx, mapping.Column(core.RoleUnitPrice))

		if identifier == "" || quantity == "" || price == "" {
			dropped++
			continue
		}

		if opts != nil && opts.Rate != 0 {
			price = convertPrice(price, opts.Rate)
		}

		lines = append(lines, strings.Join([]string{
			escapeCell(identifier),
			escapeCell(quantity),
			escapeCell(price),
		}, separator))
	}

	return Result{
		CSV:     bom + strings.Join(lines, "\r\n"),
		Emitted: len(lines),
		Dropped: dropped,
	}
}

// convertPrice multiplies a price cell by rate. The cell is parsed with
// internal whitespace treated as thousands separators and a comma accepted
// as the decimal separator. A cell that still fails to parse is returned
// unmodified: conversion is best-effort, not validation.
func convertPrice(cell string, rate float64) string {
	normalized := strings.ReplaceAll(cell, " ", "")
	normalized = strings.ReplaceAll(normalized, "\u00a0", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return cell
	}

	formatted := strconv.FormatFloat(value*rate, 'f', 2, 64)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	return formatted
}

// escapeCell applies standard CSV quoting per cell: a cell containing the
// separator, a quote, or a line break is wrapped in quotes with internal
// quotes doubled. Clean cells pass through unquoted.
func escapeCell(cell string) string {
	if strings.ContainsAny(cell, separator+"\"\n\r") {
		return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
	}
	return cell
}
