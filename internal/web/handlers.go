package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dokflow/dokflow/internal/core"
	"github.com/dokflow/dokflow/internal/export"
	"github.com/dokflow/dokflow/internal/heuristics"
	"github.com/dokflow/dokflow/internal/ingest"
	"github.com/dokflow/dokflow/internal/logging"
	"github.com/dokflow/dokflow/internal/rates"
	"github.com/dokflow/dokflow/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxPreviewTotal caps the preview regardless of header position so huge
// pre-header sections cannot blow up the response.
const maxPreviewTotal = 100

// sessionView is the JSON payload describing a session for the mapping UI.
type sessionView struct {
	SessionID         string                                     `json:"sessionId,omitempty"`
	PreviewRows       [][]string                                 `json:"previewRows"`
	SuggestedMappings map[core.FieldRole]core.RoleSuggestion     `json:"suggestedMappings"`
	ColumnLabels      []string                                   `json:"columnLabels"`
	HeaderRowIndex    int                                        `json:"headerRowIndex"`
	FileName          string                                     `json:"fileName,omitempty"`
	SubSections       []core.SubSection                          `json:"subSections,omitempty"`
	CurrencyColumn    *int                                       `json:"currencyColumn,omitempty"`
	Roles             []core.RoleInfo                            `json:"roles"`
	AcceptThreshold   float64                                    `json:"acceptThreshold"`
}

// buildSessionView assembles the preview payload from stored session data.
// Row data beyond the preview window never leaves the server.
func (s *Server) buildSessionView(id string, data session.Data) sessionView {
	rows := data.Rows
	dataStart := data.HeaderRowIndex + 1

	previewEnd := dataStart + s.cfg.Upload.PreviewRows
	if previewEnd > maxPreviewTotal {
		previewEnd = maxPreviewTotal
	}
	if previewEnd > len(rows) {
		previewEnd = len(rows)
	}
	if previewEnd < 0 {
		previewEnd = 0
	}

	view := sessionView{
		SessionID:         id,
		PreviewRows:       rows[:previewEnd],
		SuggestedMappings: heuristics.Suggest(rows, data.HeaderRowIndex),
		ColumnLabels:      heuristics.ColumnLabels(rows, data.HeaderRowIndex),
		HeaderRowIndex:    data.HeaderRowIndex,
		FileName:          data.SourceName,
		SubSections:       data.SubSections,
		Roles:             core.Roles,
		AcceptThreshold:   heuristics.AcceptThreshold,
	}
	if col, ok := heuristics.FindCurrencyColumn(rows, data.HeaderRowIndex); ok {
		view.CurrencyColumn = &col
	}
	return view
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleParse accepts a multipart file upload, ingests it in memory and
// creates a session holding the parsed row matrix. The file is never
// written to disk.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to read file")
		return
	}

	result, err := ingest.Ingest(data, header.Filename, nil)
	if err != nil {
		writeIngestError(w, r, err)
		return
	}

	sessionID := uuid.NewString()

	// The raw buffer is retained only for formats with selectable
	// sub-sections, where a reselection re-ingests without re-upload.
	var rawBuffer []byte
	if len(result.SubSections) > 0 {
		rawBuffer = data
	}

	s.store.Create(sessionID, session.Data{
		Rows:           result.Rows,
		HeaderRowIndex: result.HeaderRowIndex,
		SourceName:     header.Filename,
		Format:         result.Format,
		RawBuffer:      rawBuffer,
		SubSections:    result.SubSections,
	})

	logging.FromContext(r.Context()).Info("file parsed",
		"format", result.Format,
		"rows", len(result.Rows),
		"sub_sections", len(result.SubSections),
	)

	sess, _ := s.store.Get(sessionID)
	writeJSON(w, s.buildSessionView(sessionID, sess.Data))
}

// handleGetSession returns the preview and suggestions for the mapping page.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeSessionNotFound(w, r)
		return
	}
	writeJSON(w, s.buildSessionView(sess.ID, sess.Data))
}

// handleSetHeaderRow moves the header/data boundary of a session. Rows are
// neither removed nor reordered; suggestions are recomputed against the
// new header row.
func (s *Server) handleSetHeaderRow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req struct {
		HeaderRowIndex int `json:"headerRowIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, ok := s.store.Get(id)
	if !ok {
		writeSessionNotFound(w, r)
		return
	}
	if req.HeaderRowIndex < 0 || req.HeaderRowIndex >= len(sess.Data.Rows) {
		writeError(w, r, http.StatusBadRequest, "headerRowIndex out of range")
		return
	}

	if !s.store.Update(id, session.Update{HeaderRowIndex: &req.HeaderRowIndex}) {
		writeSessionNotFound(w, r)
		return
	}

	sess, _ = s.store.Get(id)
	writeJSON(w, s.buildSessionView(id, sess.Data))
}

// handleSelectSection re-ingests the session's original buffer against a
// different sub-section (workbook sheet or XML collection), replacing the
// session's row matrix.
func (s *Server) handleSelectSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var sel ingest.Selector
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if sel.Sheet == nil && len(sel.Section) == 0 {
		writeError(w, r, http.StatusBadRequest, "selector requires a sheet index or a section path")
		return
	}

	sess, ok := s.store.Get(id)
	if !ok {
		writeSessionNotFound(w, r)
		return
	}
	if len(sess.Data.RawBuffer) == 0 {
		writeError(w, r, http.StatusBadRequest, "session source has no selectable sections")
		return
	}

	result, err := ingest.Ingest(sess.Data.RawBuffer, sess.Data.SourceName, &sel)
	if err != nil {
		writeIngestError(w, r, err)
		return
	}

	if !s.store.Update(id, session.Update{
		Rows:           &result.Rows,
		HeaderRowIndex: &result.HeaderRowIndex,
		SubSections:    &result.SubSections,
	}) {
		writeSessionNotFound(w, r)
		return
	}

	sess, _ = s.store.Get(id)
	writeJSON(w, s.buildSessionView(id, sess.Data))
}

// handleDeleteSession discards a session without exporting, for an
// explicit "start over".
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.store.Remove(chi.URLParam(r, "sessionID")) {
		writeSessionNotFound(w, r)
		return
	}
	writeJSON(w, map[string]bool{"removed": true})
}

// exportRequest is the body of POST /api/export.
type exportRequest struct {
	SessionID    string         `json:"sessionId"`
	Mappings     map[string]int `json:"mappings"`
	Convert      bool           `json:"convert"`
	ExchangeRate float64        `json:"exchangeRate"`
	Currency     string         `json:"currency"`
}

// handleExport projects the confirmed mapping into the output CSV and then
// destroys the session, so the uploaded data cannot be exported twice.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Mappings == nil {
		writeError(w, r, http.StatusBadRequest, "sessionId and mappings are required")
		return
	}

	mapping := core.Mapping{}
	for role, col := range req.Mappings {
		mapping[core.FieldRole(role)] = col
	}
	for _, role := range core.RequiredRoles {
		if mapping.Column(role) == core.Unmapped {
			writeError(w, r, http.StatusBadRequest, "required field is not mapped: "+string(role))
			return
		}
	}

	sess, ok := s.store.Get(req.SessionID)
	if !ok {
		writeSessionNotFound(w, r)
		return
	}

	var opts *export.CurrencyOptions
	if req.Convert && req.ExchangeRate > 0 {
		opts = &export.CurrencyOptions{Rate: req.ExchangeRate, Currency: req.Currency}
	}

	result := export.Project(sess.Data.Rows, sess.Data.HeaderRowIndex, mapping, opts)

	s.store.Remove(req.SessionID)

	logging.FromContext(r.Context()).Info("export generated",
		"rows_emitted", result.Emitted,
		"rows_dropped", result.Dropped,
		"converted", opts != nil,
	)

	writeJSON(w, map[string]any{
		"csv":     result.CSV,
		"emitted": result.Emitted,
		"dropped": result.Dropped,
	})
}

// handleExchangeRate proxies the NBP mid-rate lookup for the export form.
func (s *Server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		writeError(w, r, http.StatusBadRequest, "currency parameter is required")
		return
	}

	rate, err := s.rates.MidRate(r.Context(), currency)
	if err != nil {
		if errors.Is(err, rates.ErrUnknownCurrency) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, http.StatusBadGateway, "exchange rate lookup failed")
		return
	}

	writeJSON(w, rate)
}
