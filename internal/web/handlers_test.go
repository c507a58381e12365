package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dokflow/dokflow/internal/config"
	"github.com/dokflow/dokflow/internal/core"
	"github.com/dokflow/dokflow/internal/rates"
	"github.com/dokflow/dokflow/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = "Symbol;Ilość;Cena\r\nAB-1;10;9,99\r\nAB-2;2;14,50"

// viewPayload mirrors the session view JSON for decoding in tests.
type viewPayload struct {
	SessionID         string                         `json:"sessionId"`
	PreviewRows       [][]string                     `json:"previewRows"`
	SuggestedMappings map[string]core.RoleSuggestion `json:"suggestedMappings"`
	ColumnLabels      []string                       `json:"columnLabels"`
	HeaderRowIndex    int                            `json:"headerRowIndex"`
	FileName          string                         `json:"fileName"`
	SubSections       []core.SubSection              `json:"subSections"`
}

func newTestServer(t *testing.T, ratesBaseURL string) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			RequestTimeout: 10 * time.Second,
		},
		Upload: config.UploadConfig{
			MaxFileSize: 1 << 20,
			PreviewRows: 20,
		},
		Session: config.SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Rate:    config.RateLimitConfig{Enabled: false},
		Rates:   config.RatesConfig{BaseURL: ratesBaseURL, Timeout: time.Second},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
	store := session.New(cfg.Session.TTL, cfg.Session.SweepInterval)
	return NewServer(store, rates.New(cfg.Rates.BaseURL, cfg.Rates.Timeout), cfg)
}

func multipartBody(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func uploadFile(t *testing.T, s *Server, fileName string, content []byte) (*httptest.ResponseRecorder, viewPayload) {
	t.Helper()
	body, contentType := multipartBody(t, fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var view viewPayload
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	}
	return rec, view
}

func doJSON(t *testing.T, s *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestParse_CSVUpload(t *testing.T) {
	s := newTestServer(t, "")

	rec, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, view.SessionID)
	assert.Equal(t, "items.csv", view.FileName)
	assert.Equal(t, 0, view.HeaderRowIndex)
	assert.Equal(t, []string{"Symbol", "Ilość", "Cena"}, view.ColumnLabels)
	require.Len(t, view.PreviewRows, 3)
	assert.Equal(t, []string{"AB-1", "10", "9,99"}, view.PreviewRows[1])
	assert.Empty(t, view.SubSections)

	id, ok := view.SuggestedMappings["identifier"]
	require.True(t, ok)
	assert.Equal(t, 0, id.ColumnIndex)
	assert.Equal(t, 0.95, id.Confidence)
	qty, ok := view.SuggestedMappings["quantity"]
	require.True(t, ok)
	assert.Equal(t, 1, qty.ColumnIndex)
	price, ok := view.SuggestedMappings["unit_price"]
	require.True(t, ok)
	assert.Equal(t, 2, price.ColumnIndex)
}

func TestParse_NoFile(t *testing.T) {
	s := newTestServer(t, "")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/parse", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	s := newTestServer(t, "")

	rec, _ := uploadFile(t, s, "items.pdf", []byte("%PDF-1.4"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unsupported-extension", resp.Reason)
}

func TestParse_EmptyFile(t *testing.T) {
	s := newTestServer(t, "")

	rec, _ := uploadFile(t, s, "items.csv", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "empty-or-no-data", resp.Reason)
}

func TestGetSession(t *testing.T) {
	s := newTestServer(t, "")
	_, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	rec := doJSON(t, s, http.MethodGet, "/api/session/"+view.SessionID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got viewPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, view.SessionID, got.SessionID)
	assert.Equal(t, view.ColumnLabels, got.ColumnLabels)
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodGet, "/api/session/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session-not-found", resp.Reason)
}

func TestSetHeaderRow(t *testing.T) {
	s := newTestServer(t, "")
	_, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	rec := doJSON(t, s, http.MethodPost, "/api/session/"+view.SessionID+"/header-row",
		map[string]int{"headerRowIndex": 1})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got viewPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.HeaderRowIndex)
	// The matrix itself is untouched; only the boundary moves.
	assert.Equal(t, []string{"AB-1", "10", "9,99"}, got.ColumnLabels)
}

func TestSetHeaderRow_OutOfRange(t *testing.T) {
	s := newTestServer(t, "")
	_, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	rec := doJSON(t, s, http.MethodPost, "/api/session/"+view.SessionID+"/header-row",
		map[string]int{"headerRowIndex": 99})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectSection_Workbook(t *testing.T) {
	s := newTestServer(t, "")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Summary"))
	require.NoError(t, f.SetSheetRow("Summary", "A1", &[]any{"totals only"}))
	_, err := f.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Data", "A1", &[]any{"Symbol", "Qty", "Price"}))
	require.NoError(t, f.SetSheetRow("Data", "A2", &[]any{"AB-1", "10", "9.99"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, view := uploadFile(t, s, "report.xlsx", buf.Bytes())
	require.Len(t, view.SubSections, 2)
	assert.Equal(t, "Summary", view.SubSections[0].Name)
	assert.Equal(t, []string{"totals only"}, view.PreviewRows[0])

	rec := doJSON(t, s, http.MethodPost, "/api/session/"+view.SessionID+"/section",
		map[string]int{"sheet": 1})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got viewPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Symbol", "Qty", "Price"}, got.PreviewRows[0])
}

func TestSelectSection_NoSelectableSections(t *testing.T) {
	s := newTestServer(t, "")
	_, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	rec := doJSON(t, s, http.MethodPost, "/api/session/"+view.SessionID+"/section",
		map[string]int{"sheet": 1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t, "")
	_, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	rec := doJSON(t, s, http.MethodDelete, "/api/session/"+view.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/session/"+view.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport_DestroysSession(t *testing.T) {
	s := newTestServer(t, "")
	_, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	payload := map[string]any{
		"sessionId": view.SessionID,
		"mappings": map[string]int{
			"identifier": 0,
			"quantity":   1,
			"unit_price": 2,
		},
	}

	rec := doJSON(t, s, http.MethodPost, "/api/export", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		CSV     string `json:"csv"`
		Emitted int    `json:"emitted"`
		Dropped int    `json:"dropped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.CSV, "\ufeff"))
	assert.Equal(t, "\ufeffAB-1;10;9,99\r\nAB-2;2;14,50", resp.CSV)
	assert.Equal(t, 2, resp.Emitted)
	assert.Equal(t, 0, resp.Dropped)

	// The session is gone; a second export cannot reuse the data.
	rec = doJSON(t, s, http.MethodPost, "/api/export", payload)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport_MissingRequiredMapping(t *testing.T) {
	s := newTestServer(t, "")
	_, view := uploadFile(t, s, "items.csv", []byte(sampleCSV))

	rec := doJSON(t, s, http.MethodPost, "/api/export", map[string]any{
		"sessionId": view.SessionID,
		"mappings":  map[string]int{"identifier": 0, "quantity": 1},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unit_price")

	// A rejected export must not consume the session.
	rec = doJSON(t, s, http.MethodGet, "/api/session/"+view.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExchangeRate(t *testing.T) {
	nbp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/EUR/") {
			w.Write([]byte(`{"rates":[{"effectiveDate":"2026-08-27","mid":4.2815}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer nbp.Close()

	s := newTestServer(t, nbp.URL)

	rec := doJSON(t, s, http.MethodGet, "/api/exchange-rate?currency=EUR", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rate rates.Rate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rate))
	assert.Equal(t, "EUR", rate.Currency)
	assert.Equal(t, 4.2815, rate.Mid)

	rec = doJSON(t, s, http.MethodGet, "/api/exchange-rate?currency=XYZ", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/exchange-rate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	// Other clients have their own bucket.
	assert.True(t, rl.allow("5.6.7.8"))
}
