package web

// errors.go provides unified error response handling for the web layer.
//
// Error responses follow a fixed JSON shape with a stable machine-readable
// reason code. Technical details are logged server-side with the request
// ID; clients only see the message and code.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dokflow/dokflow/internal/core"
	"github.com/dokflow/dokflow/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do but record it.
		slog.Error("json encode error", "error", err)
	}
}

// writeError writes a JSON error response and logs it with request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeErrorReason(w, r, status, message, "")
}

// writeErrorReason writes a JSON error response carrying a machine-readable
// reason code.
func writeErrorReason(w http.ResponseWriter, r *http.Request, status int, message, reason string) {
	logger := logging.FromContext(r.Context())
	logger.Error("request error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", message,
		"reason", reason,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Reason: reason})
}

// writeIngestError maps an ingestion failure to its HTTP response.
// Every ingest error is a client problem with the uploaded file, so the
// status is 400 and the message is surfaced verbatim.
func writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorReason(w, r, http.StatusBadRequest, err.Error(), core.IngestReason(err))
}

// writeSessionNotFound reports an expired or unknown session id. This is a
// normal outcome of the TTL policy, not an internal error.
func writeSessionNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorReason(w, r, http.StatusNotFound,
		"session expired or does not exist", "session-not-found")
}
