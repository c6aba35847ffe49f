package generic

import "fmt"

// =============================================================================
// PERIOD - Closed date range [Start, End]
// =============================================================================

// Period is an inclusive range of calendar days.
//
// Examples:
//   - Q4 2025: Oct 1 - Dec 31
//   - A custom window: Aug 15 - Sep 15
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewPeriod validates start <= end. Start and end are never swapped.
func NewPeriod(start, end Date) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, &ValidationError{Field: "period", Value: fmt.Sprintf("%s..%s", start, end), Reason: "start and end are required", Err: ErrInvalidScope}
	}
	if start.After(end) {
		return Period{}, &ValidationError{Field: "period", Value: fmt.Sprintf("%s..%s", start, end), Reason: "start_date is after end_date", Err: ErrInvalidPeriod}
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns the number of days in the period, both ends included.
func (p Period) Days() int { return DaysBetween(p.Start, p.End) + 1 }

// IsWholeMonth reports whether the period is exactly one calendar month.
func (p Period) IsWholeMonth() bool {
	return p.Start.Day() == 1 &&
		p.Start.Year() == p.End.Year() && p.Start.Month() == p.End.Month() &&
		p.End.Equal(EndOfMonth(p.End.Year(), p.End.Month()))
}

// Intersect clips p to other. ok is false when they do not overlap.
func (p Period) Intersect(other Period) (Period, bool) {
	start := MaxDate(p.Start, other.Start)
	end := MinDate(p.End, other.End)
	if start.After(end) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// Quarters splits the period at calendar-quarter boundaries, in order.
func (p Period) Quarters() []Period {
	var out []Period
	cursor := p.Start
	for cursor.BeforeOrEqual(p.End) {
		end := MinDate(EndOfQuarter(cursor), p.End)
		out = append(out, Period{Start: cursor, End: end})
		cursor = end.AddDays(1)
	}
	return out
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// REPORT SCOPE - Requested window and its rounding rule
// =============================================================================

// ReportType defines how the requested dates are rounded.
type ReportType string

const (
	ReportQuarterly    ReportType = "quarterly"     // round outward to the calendar quarter
	ReportMonthly      ReportType = "monthly"       // round outward to the calendar month
	ReportYearly       ReportType = "yearly"        // round outward to the calendar year
	ReportCustomPeriod ReportType = "custom_period" // verbatim
	ReportProject      ReportType = "project"       // verbatim
	ReportEmployee     ReportType = "employee"      // verbatim
)

// ReportTypes lists every supported report type in display order.
var ReportTypes = []ReportType{
	ReportQuarterly, ReportCustomPeriod, ReportMonthly, ReportYearly, ReportProject, ReportEmployee,
}

// ParseReportType validates a report type string.
func ParseReportType(s string) (ReportType, error) {
	for _, rt := range ReportTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", &ValidationError{Field: "report_type", Value: s, Reason: "unknown report type", Err: ErrInvalidReportType}
}

// RoundScope applies the report type's rounding to [start, end].
// start > end is rejected before rounding.
func RoundScope(reportType ReportType, start, end Date) (Period, error) {
	requested, err := NewPeriod(start, end)
	if err != nil {
		return Period{}, err
	}

	switch reportType {
	case ReportQuarterly:
		return Period{Start: StartOfQuarter(requested.Start), End: EndOfQuarter(requested.End)}, nil
	case ReportMonthly:
		return Period{
			Start: StartOfMonth(requested.Start.Year(), requested.Start.Month()),
			End:   EndOfMonth(requested.End.Year(), requested.End.Month()),
		}, nil
	case ReportYearly:
		return Period{Start: StartOfYear(requested.Start.Year()), End: EndOfYear(requested.End.Year())}, nil
	case ReportCustomPeriod, ReportProject, ReportEmployee:
		return requested, nil
	default:
		return Period{}, &ValidationError{Field: "report_type", Value: string(reportType), Reason: "unknown report type", Err: ErrInvalidReportType}
	}
}
