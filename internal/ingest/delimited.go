package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dokflow/dokflow/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDelimited parses delimited text permissively: ragged rows are kept,
// blank lines are skipped, and a UTF-8 BOM is stripped.
//
// The delimiter is auto-detected by presence of a semicolon anywhere in the
// file. Semicolon wins over comma: regionally formatted exports use the
// comma as a decimal separator, so a file containing any semicolon is
// semicolon-delimited in practice.
func readDelimited(data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	text := string(data)

	delimiter := ','
	if strings.ContainsRune(text, ';') {
		delimiter = ';'
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedContainer, err)
	}

	rows := make(core.RowMatrix, 0, len(records))
	for _, rec := range records {
		if trimRow(rec) {
			rows = append(rows, rec)
		}
	}

	return &Result{
		Rows:           rows,
		HeaderRowIndex: 0,
		Format:         FormatDelimited,
	}, nil
}
