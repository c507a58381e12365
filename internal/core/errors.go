package core

import "errors"

// Ingestion-fatal error classes. The byte stream could not be interpreted
// as the claimed format at all; surfaced verbatim to the caller, never
// retried, never a partial result.
var (
	// ErrUnsupportedExtension is returned for file names whose extension
	// is not one of the accepted input formats.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrNoData is returned when the file is empty or parsing produced
	// zero usable rows.
	ErrNoData = errors.New("file contains no data rows")

	// ErrMalformedContainer is returned when a container format (workbook,
	// XML document) cannot be opened or parsed.
	ErrMalformedContainer = errors.New("malformed file container")

	// ErrNoRepeatingElements is returned when an XML document holds no
	// repeating collection of structured elements to read rows from.
	ErrNoRepeatingElements = errors.New("no repeating elements found")
)

// IngestReason maps an ingestion error to its stable machine-readable
// reason code for API responses. Unknown errors map to "malformed-container"
// since every remaining parse failure is a container-level one.
func IngestReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedExtension):
		return "unsupported-extension"
	case errors.Is(err, ErrNoData):
		return "empty-or-no-data"
	case errors.Is(err, ErrNoRepeatingElements):
		return "no-repeating-elements-found"
	default:
		return "malformed-container"
	}
}
