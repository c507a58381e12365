// Package ingest normalizes uploaded tabular documents into a row matrix.
//
// Three structurally incompatible formats are supported: delimited text,
// OOXML spreadsheets, and hierarchical XML. Each reader produces the same
// shape (a [core.RowMatrix] plus a default header row index), and formats
// with an ambiguous structure additionally report sub-section descriptors
// so the caller can re-ingest against a different sheet or XML collection.
//
// Readers operate on in-memory buffers only. Nothing is written to disk
// and no resource outlives a single call.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dokflow/dokflow/internal/core"
)

// Format identifies which reader handled an input file.
type Format string

const (
	FormatDelimited   Format = "csv"
	FormatSpreadsheet Format = "xlsx"
	FormatXML         Format = "xml"
)

// acceptedExtensions maps file extensions to their reader format.
// .xlsm is included because macro-enabled workbooks share the .xlsx
// container and excelize reads both.
var acceptedExtensions = map[string]Format{
	".csv":  FormatDelimited,
	".xlsx": FormatSpreadsheet,
	".xlsm": FormatSpreadsheet,
	".xml":  FormatXML,
}

// AcceptedExtensions returns the supported file extensions in display order.
func AcceptedExtensions() []string {
	return []string{".csv", ".xlsx", ".xlsm", ".xml"}
}

// Selector pins a specific sub-section of an ambiguous source.
// Sheet selects a workbook sheet by index; Section selects an XML
// collection by its full key path (descriptor path plus collection name).
type Selector struct {
	Sheet   *int     `json:"sheet,omitempty"`
	Section []string `json:"section,omitempty"`
}

// Result is the outcome of a successful ingestion.
type Result struct {
	Rows core.RowMatrix
	// HeaderRowIndex is the default header position for this source.
	// The user may move it later; ingestion always proposes the first row.
	HeaderRowIndex int
	// SubSections lists alternative roots when the source is ambiguous
	// (multi-sheet workbook, multi-collection XML). Nil for delimited text.
	SubSections []core.SubSection
	Format      Format
}

// Ingest parses data according to the extension of fileName and returns the
// normalized row matrix. An optional selector pins a sheet or XML section.
//
// Failure modes are the ingestion-fatal errors of package core: unsupported
// extension, malformed container, no usable rows, or (XML only) no
// repeating elements. There are no partial results.
func Ingest(data []byte, fileName string, sel *Selector) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	format, ok := acceptedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w %q, accepted: %s",
			core.ErrUnsupportedExtension, ext, strings.Join(AcceptedExtensions(), ", "))
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrNoData)
	}

	var (
		res *Result
		err error
	)
	switch format {
	case FormatDelimited:
		res, err = readDelimited(data)
	case FormatSpreadsheet:
		res, err = readSpreadsheet(data, sel)
	case FormatXML:
		res, err = readXML(data, sel)
	}
	if err != nil {
		return nil, err
	}

	if len(res.Rows) == 0 {
		return nil, core.ErrNoData
	}
	return res, nil
}

// trimRow trims every cell of a row in place and reports whether the row
// has at least one non-empty cell.
func trimRow(row []string) bool {
	hasContent := false
	for i, cell := range row {
		row[i] = strings.TrimSpace(cell)
		if row[i] != "" {
			hasContent = true
		}
	}
	return hasContent
}
