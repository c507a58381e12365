// Package core defines the shared data model for the document import flow.
//
// Everything downstream of ingestion works on one uniform shape: a
// [RowMatrix] of trimmed text cells plus a header row index. The matrix is
// ragged: rows from real-world files rarely agree on width, so consumers
// index defensively and treat a missing cell as empty text.
//
// The package also carries the closed set of business [FieldRole] values a
// column can be mapped to, and the error taxonomy for ingestion failures.
// It has no dependencies on any transport, storage, or file-format library.
package core
