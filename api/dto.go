/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not already
  carried by domain types. Runs, datasets and adjusted reports are served
  as their report package types; the types here cover requests and the
  small lookup responses.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - report/types.go: Run, RunSummary, AdjustedReport
*/
package api

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Brottuetchen/Quartalsreport/generic"
	"github.com/Brottuetchen/Quartalsreport/report"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AdjustmentRequestDTO is the body of POST /api/reports/{id}/adjustments.
type AdjustmentRequestDTO struct {
	EntryID        string        `json:"entry_id"`
	Delta          generic.Hours `json:"delta_hours"`
	Reason         string        `json:"reason"`
	Actor          string        `json:"actor,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

// OptionDTO is one selectable value with its display label.
type OptionDTO struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ReportTypesDTO lists the accepted report types and groupings.
type ReportTypesDTO struct {
	ReportTypes   []OptionDTO `json:"report_types"`
	TimeGroupings []OptionDTO `json:"time_groupings"`
}

// RunListDTO wraps the run list.
type RunListDTO struct {
	Runs []report.RunSummary `json:"runs"`
}

// BudgetFileDTO describes the stored default budget source.
type BudgetFileDTO struct {
	Name       string `json:"name"`
	Records    int    `json:"records"`
	UploadedAt string `json:"uploaded_at"`
}

// HealthDTO is the health check response.
type HealthDTO struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// optionLabel turns "custom_period" into "Custom Period". Casers keep
// state, so each call gets its own.
func optionLabel(value string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(value, "_", " "))
}

func toReportTypesDTO() ReportTypesDTO {
	dto := ReportTypesDTO{}
	for _, rt := range generic.ReportTypes {
		dto.ReportTypes = append(dto.ReportTypes, OptionDTO{Value: string(rt), Label: optionLabel(string(rt))})
	}
	for _, g := range generic.Groupings {
		dto.TimeGroupings = append(dto.TimeGroupings, OptionDTO{Value: string(g), Label: optionLabel(string(g))})
	}
	return dto
}

func toBudgetFileDTO(f report.BudgetFile) BudgetFileDTO {
	return BudgetFileDTO{
		Name:       f.Name,
		Records:    f.Records,
		UploadedAt: f.UploadedAt.Format(time.RFC3339),
	}
}
