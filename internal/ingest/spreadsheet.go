package ingest

import (
	"bytes"
	"fmt"

	"github.com/dokflow/dokflow/internal/core"
	"github.com/xuri/excelize/v2"
)

// readSpreadsheet opens an OOXML workbook and reads one sheet into the row
// matrix. Every sheet is reported as a sub-section so the caller can offer
// a sheet picker; the selected sheet defaults to the first.
//
// Cells are read as computed values, never raw formulas; merged-cell
// spreading follows the library default. Fully blank rows are dropped.
func readSpreadsheet(data []byte, sel *Selector) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedContainer, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.ErrNoData
	}

	selected := 0
	if sel != nil && sel.Sheet != nil {
		if *sel.Sheet < 0 || *sel.Sheet >= len(sheets) {
			return nil, fmt.Errorf("%w: sheet index %d out of range (%d sheets)",
				core.ErrMalformedContainer, *sel.Sheet, len(sheets))
		}
		selected = *sel.Sheet
	}

	subSections := make([]core.SubSection, 0, len(sheets))
	var rows core.RowMatrix

	for i, name := range sheets {
		sheetRows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", core.ErrMalformedContainer, name, err)
		}

		subSections = append(subSections, core.SubSection{
			Name:         name,
			Path:         []string{},
			ElementCount: len(sheetRows),
		})

		if i == selected {
			rows = make(core.RowMatrix, 0, len(sheetRows))
			for _, row := range sheetRows {
				if trimRow(row) {
					rows = append(rows, row)
				}
			}
		}
	}

	return &Result{
		Rows:           rows,
		HeaderRowIndex: 0,
		SubSections:    subSections,
		Format:         FormatSpreadsheet,
	}, nil
}
