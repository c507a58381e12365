package core

// RowMatrix is the uniform in-memory representation of a tabular document.
// Rows may have different lengths. Cells are trimmed text; numeric typing
// is never assumed.
type RowMatrix [][]string

// Cell returns the cell at (row, col), or "" when either index is out of
// range. All consumers of a RowMatrix should go through this instead of
// indexing directly.
func (m RowMatrix) Cell(row, col int) string {
	if row < 0 || row >= len(m) {
		return ""
	}
	r := m[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// MaxWidth returns the length of the widest row in the matrix.
func (m RowMatrix) MaxWidth() int {
	max := 0
	for _, r := range m {
		if len(r) > max {
			max = len(r)
		}
	}
	return max
}

// DataRows returns the rows strictly after headerRowIndex. A negative
// index means the matrix has no header and every row is data.
func (m RowMatrix) DataRows(headerRowIndex int) [][]string {
	start := headerRowIndex + 1
	if start < 0 {
		start = 0
	}
	if start >= len(m) {
		return nil
	}
	return m[start:]
}

// SubSection identifies an alternative root inside an ambiguous source:
// a sheet in a multi-sheet workbook, or a repeating element collection in
// an XML document. Path is the chain of structural keys leading to the
// collection (empty for a top-level collection such as a sheet).
type SubSection struct {
	Name         string   `json:"name"`
	Path         []string `json:"path"`
	ElementCount int      `json:"elementCount"`
}

// RoleSuggestion is one advisory column-to-role proposal. Confidence is in
// [0,1] and is never a hard constraint; the boundary layer pre-selects a
// suggestion only above the acceptance threshold.
type RoleSuggestion struct {
	ColumnIndex int     `json:"columnIndex"`
	Confidence  float64 `json:"confidence"`
}

// Unmapped marks a role with no source column in a Mapping.
const Unmapped = -1

// Mapping is a user-confirmed assignment of field roles to column indexes.
// A role that is absent or mapped to Unmapped has no source column.
type Mapping map[FieldRole]int

// Column returns the mapped column for a role, or Unmapped.
func (m Mapping) Column(role FieldRole) int {
	col, ok := m[role]
	if !ok {
		return Unmapped
	}
	return col
}
