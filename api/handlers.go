/*
handlers.go - HTTP API handlers for the report service

PURPOSE:
  Exposes report generation, stored runs and manual adjustments via REST.
  Handles HTTP request/response, multipart uploads and JSON serialization,
  and delegates to report.Service.

ENDPOINTS:
  Reports:
    POST   /api/reports                   Generate (multipart: xml_file, csv_file?, form fields)
    GET    /api/reports                   List stored runs (?limit=)
    GET    /api/reports/types             Report types and groupings
    GET    /api/reports/{id}              Run with dataset (?download=1 for attachment)
    POST   /api/reports/{id}/adjustments  Append a manual adjustment
    GET    /api/reports/{id}/adjusted     Run with adjustments applied

  Admin:
    POST   /api/admin/budget              Upload the default budget CSV (multipart: csv_file)
    GET    /api/admin/budget              Describe the default budget CSV

  Health:
    GET    /healthz

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (factory.ScopeFromForm)
  3. Call report.Service
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, missing sources
  - 404: Run not found
  - 409: Conflict (idempotency key reused)
  - 413: Upload too large
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Brottuetchen/Quartalsreport/factory"
	"github.com/Brottuetchen/Quartalsreport/generic"
	"github.com/Brottuetchen/Quartalsreport/report"
)

// DefaultMaxUploadBytes bounds a multipart request body.
const DefaultMaxUploadBytes = 100 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service        *report.Service
	Logger         *slog.Logger
	Health         Pinger // optional
	MaxUploadBytes int64
}

// NewHandler creates a handler for the given service.
func NewHandler(svc *report.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Service:        svc,
		Logger:         logger.With(report.FieldComponent, "api"),
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// GenerateReport runs the engine on uploaded files.
// POST /api/reports
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeUploadError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	params, err := factory.ScopeFromForm(r.MultipartForm.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report parameters", err)
		return
	}

	xmlFile, xmlHeader, err := r.FormFile("xml_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "xml_file is required", err)
		return
	}
	defer xmlFile.Close()

	req := report.GenerateRequest{
		Params:      params,
		Bookings:    xmlFile,
		BookingName: xmlHeader.Filename,
	}

	csvFile, csvHeader, err := r.FormFile("csv_file")
	switch {
	case err == nil:
		defer csvFile.Close()
		req.Budget, req.BudgetName = csvFile, csvHeader.Filename
	case errors.Is(err, http.ErrMissingFile):
		// default budget source
	default:
		writeError(w, http.StatusBadRequest, "Invalid csv_file", err)
		return
	}

	run, err := h.Service.Generate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Report generation failed", err)
		return
	}
	w.Header().Set("Location", "/api/reports/"+run.ID)
	writeJSON(w, http.StatusCreated, run)
}

// ListReports returns stored runs, newest first.
// GET /api/reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}

	runs, err := h.Service.List(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListDTO{Runs: runs})
}

// ReportTypes lists accepted report types and groupings.
// GET /api/reports/types
func (h *Handler) ReportTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toReportTypesDTO())
}

// GetReport returns a run with its dataset.
// GET /api/reports/{id}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Report not found", err)
		return
	}
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", run.FileName()))
	}
	writeJSON(w, http.StatusOK, run)
}

// CreateAdjustment appends a manual adjustment to a run.
// POST /api/reports/{id}/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	adj, err := h.Service.AddAdjustment(r.Context(), report.AdjustmentRequest{
		RunID:          chi.URLParam(r, "id"),
		EntryID:        req.EntryID,
		Delta:          req.Delta,
		Reason:         req.Reason,
		Actor:          req.Actor,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to record adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, adj)
}

// GetAdjustedReport returns the run with its adjustments applied.
// GET /api/reports/{id}/adjusted
func (h *Handler) GetAdjustedReport(w http.ResponseWriter, r *http.Request) {
	adjusted, err := h.Service.Adjusted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Report not found", err)
		return
	}
	writeJSON(w, http.StatusOK, adjusted)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// UploadDefaultBudget replaces the default budget CSV.
// POST /api/admin/budget
func (h *Handler) UploadDefaultBudget(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeUploadError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("csv_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "csv_file is required", err)
		return
	}
	defer file.Close()

	data, err := readUpload(file)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	saved, err := h.Service.SetDefaultBudget(r.Context(), report.SafeFileName(header.Filename, "budget.csv"), data)
	if err != nil {
		h.writeServiceError(w, "Invalid budget file", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetFileDTO(saved))
}

// GetDefaultBudget describes the default budget CSV.
// GET /api/admin/budget
func (h *Handler) GetDefaultBudget(w http.ResponseWriter, r *http.Request) {
	file, err := h.Service.DefaultBudget(r.Context())
	if errors.Is(err, generic.ErrNoDefaultBudget) {
		writeError(w, http.StatusNotFound, "No default budget uploaded", nil)
		return
	}
	if err != nil {
		h.writeServiceError(w, "Failed to load default budget", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetFileDTO(file))
}

// Healthz reports liveness and, when configured, storage health.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func readUpload(f multipart.File) ([]byte, error) {
	return io.ReadAll(f)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, report.FieldError, err)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Upload too large (max. %d MB)", tooLarge.Limit>>20), nil)
		return
	}
	if strings.Contains(err.Error(), "multipart") || errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Expected a multipart/form-data upload", err)
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid upload", err)
}
