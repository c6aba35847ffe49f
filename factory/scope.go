package factory

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// SCOPE REQUEST - API form fields / JSON body
// =============================================================================

// ScopeRequest carries the report parameters as submitted by a client.
// Toggles are pointers so that omitted fields keep their defaults.
type ScopeRequest struct {
	ReportType              string   `json:"report_type" yaml:"report_type"`
	StartDate               string   `json:"start_date" yaml:"start_date"`
	EndDate                 string   `json:"end_date" yaml:"end_date"`
	TimeGrouping            string   `json:"time_grouping,omitempty" yaml:"time_grouping,omitempty"`
	Projects                []string `json:"projects,omitempty" yaml:"projects,omitempty"`
	Employees               []string `json:"employees,omitempty" yaml:"employees,omitempty"`
	IncludeBonusCalc        *bool    `json:"include_bonus_calc,omitempty" yaml:"include_bonus_calc,omitempty"`
	IncludeBudgetOverview   *bool    `json:"include_budget_overview,omitempty" yaml:"include_budget_overview,omitempty"`
	IncludeSummarySheet     *bool    `json:"include_summary_sheet,omitempty" yaml:"include_summary_sheet,omitempty"`
	IncludeQuarterlySummary *bool    `json:"include_quarterly_summary,omitempty" yaml:"include_quarterly_summary,omitempty"`
	ExcludeSpecialProjects  *bool    `json:"exclude_special_projects,omitempty" yaml:"exclude_special_projects,omitempty"`
}

// ReportParams is a validated ScopeRequest.
type ReportParams struct {
	Scope   bonus.Scope   `json:"scope"`
	Filters bonus.Filters `json:"filters"`
	Toggles bonus.Toggles `json:"toggles"`
}

// Input combines the parameters with loaded records.
func (p ReportParams) Input(budgets []bonus.BudgetRecord, bookings []bonus.Booking) bonus.Input {
	return bonus.Input{Scope: p.Scope, Filters: p.Filters, Toggles: p.Toggles, Budgets: budgets, Bookings: bookings}
}

// ScopeFromJSON decodes a JSON request body.
func ScopeFromJSON(data []byte) (ReportParams, error) {
	var req ScopeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ReportParams{}, fmt.Errorf("failed to parse report request: %w", err)
	}
	return req.Build()
}

// ScopeFromForm reads the multipart/urlencoded form fields of the upload
// endpoint. Filters are comma-separated lists.
func ScopeFromForm(form url.Values) (ReportParams, error) {
	req := ScopeRequest{
		ReportType:   form.Get("report_type"),
		StartDate:    form.Get("start_date"),
		EndDate:      form.Get("end_date"),
		TimeGrouping: form.Get("time_grouping"),
		Projects:     splitList(form["projects"]),
		Employees:    splitList(form["employees"]),
	}

	toggles := []struct {
		field string
		dst   **bool
	}{
		{"include_bonus_calc", &req.IncludeBonusCalc},
		{"include_budget_overview", &req.IncludeBudgetOverview},
		{"include_summary_sheet", &req.IncludeSummarySheet},
		{"include_quarterly_summary", &req.IncludeQuarterlySummary},
		{"exclude_special_projects", &req.ExcludeSpecialProjects},
	}
	for _, tg := range toggles {
		raw, ok := form[tg.field]
		if !ok || len(raw) == 0 {
			continue
		}
		v, err := parseFormBool(raw[0])
		if err != nil {
			return ReportParams{}, &generic.ValidationError{Field: tg.field, Value: raw[0], Reason: "expected a boolean"}
		}
		*tg.dst = &v
	}
	return req.Build()
}

// Build validates the request and applies defaults: grouping "monthly",
// all toggles on except exclude_special_projects.
func (r ScopeRequest) Build() (ReportParams, error) {
	reportType, err := generic.ParseReportType(strings.TrimSpace(r.ReportType))
	if err != nil {
		return ReportParams{}, err
	}
	start, err := parseRequestDate("start_date", r.StartDate)
	if err != nil {
		return ReportParams{}, err
	}
	end, err := parseRequestDate("end_date", r.EndDate)
	if err != nil {
		return ReportParams{}, err
	}
	if start.After(end) {
		return ReportParams{}, &generic.ValidationError{
			Field: "start_date", Value: r.StartDate, Reason: "must not be after end_date", Err: generic.ErrInvalidPeriod,
		}
	}

	grouping := generic.GroupByMonth
	if g := strings.TrimSpace(r.TimeGrouping); g != "" {
		if grouping, err = generic.ParseGrouping(g); err != nil {
			return ReportParams{}, err
		}
	}

	toggles := bonus.DefaultToggles()
	setBool(&toggles.IncludeBonusCalc, r.IncludeBonusCalc)
	setBool(&toggles.IncludeBudgetOverview, r.IncludeBudgetOverview)
	setBool(&toggles.IncludeSummary, r.IncludeSummarySheet)
	setBool(&toggles.IncludeQuarterlySummary, r.IncludeQuarterlySummary)
	setBool(&toggles.ExcludeSpecialProjects, r.ExcludeSpecialProjects)

	return ReportParams{
		Scope: bonus.Scope{
			ReportType: reportType,
			Start:      start,
			End:        end,
			Grouping:   grouping,
		},
		Filters: bonus.Filters{
			Projects:  cleanList(r.Projects),
			Employees: cleanList(r.Employees),
		},
		Toggles: toggles,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRequestDate(field, s string) (generic.Date, error) {
	if strings.TrimSpace(s) == "" {
		return generic.Date{}, &generic.ValidationError{Field: field, Reason: "is required"}
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, &generic.ValidationError{Field: field, Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func parseFormBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "ja":
		return true, nil
	case "off", "no", "nein", "":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// splitList flattens repeated and comma-separated form values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return cleanList(out)
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
