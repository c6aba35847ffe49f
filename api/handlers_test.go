/*
handlers_test.go - HTTP tests for the report API

Tests for:
- Report generation from multipart uploads (GenerateReport)
- Listing, fetching and downloading runs
- Adjustments and the adjusted view
- Default budget upload
- Error status mapping (400/404/409/413)
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brottuetchen/Quartalsreport/api"
	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/report"
	"github.com/Brottuetchen/Quartalsreport/store/memory"
)

const budgetCSV = "Projekte\tArbeitspaket\tSollstunden Budget\tIststunden\n" +
	"1234 Neubau\t-\t\t\n" +
	"\tPlanung\t100\t50\n"

const bookingsXML = `<report>
  <row>
    <cell name="staff_name">Anna</cell>
    <cell name="project">1234 Neubau</cell>
    <cell name="work_package_name">Planung</cell>
    <cell name="date">06 Oct 2025</cell>
    <cell name="number">8</cell>
  </row>
</report>`

type testServer struct {
	router http.Handler
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	svc := report.NewService(bonus.NewEngine(bonus.DefaultBudgetTable()), store, nil, report.Options{})
	h := api.NewHandler(svc, nil)
	h.MaxUploadBytes = 64 << 10
	return &testServer{router: api.NewRouter(h, nil), store: store}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// multipartRequest builds a POST with the given form fields and files.
func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".dat")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func quarterFields() map[string]string {
	return map[string]string{
		"report_type": "quarterly",
		"start_date":  "2025-10-01",
		"end_date":    "2025-12-31",
	}
}

func (s *testServer) generate(t *testing.T) report.Run {
	t.Helper()
	rec := s.do(multipartRequest(t, "/api/reports", quarterFields(), map[string]string{
		"csv_file": budgetCSV,
		"xml_file": bookingsXML,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run report.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	return run
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// REPORTS
// =============================================================================

func TestGenerateReport_Success(t *testing.T) {
	// GIVEN: a budget CSV and a timesheet XML for Q4 2025
	s := newTestServer(t)

	// WHEN: posting them as multipart
	run := s.generate(t)

	// THEN: the run is stored and its ledger carries the eligible hours
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, report.BudgetUploaded, run.BudgetOrigin)
	require.Len(t, run.Dataset.Ledger, 1)
	assert.Equal(t, "8.00", run.Dataset.Ledger[0].BaseEligible.String())

	stored, err := s.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, stored.ID)
}

func TestGenerateReport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  map[string]string
		status int
	}{
		{
			name:   "missing xml",
			fields: quarterFields(),
			files:  map[string]string{"csv_file": budgetCSV},
			status: http.StatusBadRequest,
		},
		{
			name:   "no csv and no default budget",
			fields: quarterFields(),
			files:  map[string]string{"xml_file": bookingsXML},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid report type",
			fields: map[string]string{"report_type": "weekly", "start_date": "2025-10-01", "end_date": "2025-12-31"},
			files:  map[string]string{"csv_file": budgetCSV, "xml_file": bookingsXML},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid toggle",
			fields: map[string]string{"report_type": "monthly", "start_date": "2025-10-01", "end_date": "2025-10-31", "include_summary_sheet": "vielleicht"},
			files:  map[string]string{"csv_file": budgetCSV, "xml_file": bookingsXML},
			status: http.StatusBadRequest,
		},
		{
			name:   "upload too large",
			fields: quarterFields(),
			files:  map[string]string{"csv_file": budgetCSV, "xml_file": strings.Repeat("x", 70<<10)},
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(multipartRequest(t, "/api/reports", tt.fields, tt.files))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeError(t, rec).Error)
		})
	}
}

func TestGenerateReport_NotMultipart(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rec := s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndGetReports(t *testing.T) {
	s := newTestServer(t)
	first := s.generate(t)
	time.Sleep(2 * time.Millisecond)
	second := s.generate(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list api.RunListDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, second.ID, list.Runs[0].ID)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+first.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+first.ID+"?download=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="xml_file_Q4-2025.json"`, rec.Header().Get("Content-Disposition"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports?limit=-3", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportTypes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/reports/types", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto api.ReportTypesDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Contains(t, dto.ReportTypes, api.OptionDTO{Value: "quarterly", Label: "Quarterly"})
	assert.Contains(t, dto.ReportTypes, api.OptionDTO{Value: "custom_period", Label: "Custom Period"})
	assert.Contains(t, dto.TimeGroupings, api.OptionDTO{Value: "weekly", Label: "Weekly"})
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func adjustmentRequest(t *testing.T, runID string, body map[string]any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/reports/"+runID+"/adjustments", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAdjustments_Flow(t *testing.T) {
	// GIVEN: a stored run with one entry at 8.00 eligible hours
	s := newTestServer(t)
	run := s.generate(t)
	entryID := run.Dataset.Ledger[0].ID

	// WHEN: a reviewer records a correction with an Idempotency-Key header
	req := adjustmentRequest(t, run.ID, map[string]any{"entry_id": entryID, "delta_hours": "-1.5", "reason": "Doppelbuchung"})
	req.Header.Set("Idempotency-Key", "corr-1")
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var adj report.Adjustment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adj))
	assert.Equal(t, "corr-1", adj.IdempotencyKey)
	assert.Equal(t, "-1.50", adj.Delta.String())

	// THEN: replaying the same key conflicts
	req = adjustmentRequest(t, run.ID, map[string]any{"entry_id": entryID, "delta_hours": "-1.5", "reason": "Doppelbuchung"})
	req.Header.Set("Idempotency-Key", "corr-1")
	rec = s.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: the adjusted view reflects the single correction
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+run.ID+"/adjusted", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var adjusted report.AdjustedReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adjusted))
	require.Len(t, adjusted.Entries, 1)
	assert.Equal(t, "6.50", adjusted.Entries[0].AdjustedHours.String())
	assert.Equal(t, "8.00", adjusted.Entries[0].BaseEligible.String())
	assert.Len(t, adjusted.Adjustments, 1)
}

func TestAdjustments_Errors(t *testing.T) {
	s := newTestServer(t)
	run := s.generate(t)
	entryID := run.Dataset.Ledger[0].ID

	tests := []struct {
		name   string
		runID  string
		body   map[string]any
		status int
	}{
		{"unknown run", "missing", map[string]any{"entry_id": entryID, "delta_hours": "1"}, http.StatusNotFound},
		{"unknown entry", run.ID, map[string]any{"entry_id": "nope", "delta_hours": "1"}, http.StatusBadRequest},
		{"zero delta", run.ID, map[string]any{"entry_id": entryID, "delta_hours": "0"}, http.StatusBadRequest},
		{"negative total", run.ID, map[string]any{"entry_id": entryID, "delta_hours": "-9"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(adjustmentRequest(t, tt.runID, tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/reports/"+run.ID+"/adjustments", strings.NewReader("{"))
		rec := s.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// ADMIN
// =============================================================================

func TestDefaultBudget(t *testing.T) {
	// GIVEN: no default budget
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/admin/budget", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// WHEN: an admin uploads one
	rec = s.do(multipartRequest(t, "/api/admin/budget", nil, map[string]string{"csv_file": budgetCSV}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dto api.BudgetFileDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "csv_file.dat", dto.Name)
	assert.Equal(t, 1, dto.Records)

	// THEN: reports without a CSV use it
	rec = s.do(multipartRequest(t, "/api/reports", quarterFields(), map[string]string{"xml_file": bookingsXML}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var run report.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, report.BudgetDefault, run.BudgetOrigin)
	assert.Equal(t, "csv_file.dat", run.BudgetName)
}

func TestDefaultBudget_RejectsInvalidCSV(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(multipartRequest(t, "/api/admin/budget", nil, map[string]string{"csv_file": "a;b\n1;2\n"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(multipartRequest(t, "/api/admin/budget", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
