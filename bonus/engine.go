package bonus

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// INPUT
// =============================================================================

// Scope is the requested report window and its slicing.
type Scope struct {
	ReportType generic.ReportType `json:"report_type"`
	Start      generic.Date       `json:"start_date"`
	End        generic.Date       `json:"end_date"`
	Grouping   generic.Grouping   `json:"time_grouping"`
}

// Filters are optional allow-lists. Empty means "everything".
type Filters struct {
	Projects  []string `json:"projects,omitempty"`  // normalized project key, exact or prefix
	Employees []string `json:"employees,omitempty"` // exact employee name
}

// Toggles switch optional parts of the dataset.
type Toggles struct {
	IncludeBonusCalc        bool `json:"include_bonus_calc"`
	IncludeBudgetOverview   bool `json:"include_budget_overview"`
	IncludeSummary          bool `json:"include_summary_sheet"`
	IncludeQuarterlySummary bool `json:"include_quarterly_summary"`
	ExcludeSpecialProjects  bool `json:"exclude_special_projects"`
}

// DefaultToggles matches the defaults of the upload form.
func DefaultToggles() Toggles {
	return Toggles{
		IncludeBonusCalc:        true,
		IncludeBudgetOverview:   true,
		IncludeSummary:          true,
		IncludeQuarterlySummary: true,
	}
}

// excludedProjectPattern catches the "0.000" spelling of internal projects
// next to the configured special prefix. Numbers such as "0012" are regular.
var excludedProjectPattern = regexp.MustCompile(`^0\.?000(\D|$)`)

// Input is one engine invocation. Budgets and Bookings are read, never written.
type Input struct {
	Scope    Scope
	Filters  Filters
	Toggles  Toggles
	Budgets  []BudgetRecord
	Bookings []Booking
}

// =============================================================================
// OUTPUT
// =============================================================================

// BudgetOverviewRow compares Soll and Ist of one budget record.
type BudgetOverviewRow struct {
	Project   string          `json:"project"`
	Milestone string          `json:"milestone"`
	Soll      generic.Hours   `json:"soll"`
	Ist       generic.Hours   `json:"ist"`
	Percent   decimal.Decimal `json:"percent"` // 999 when Soll is zero but Ist is not
}

// overBudgetMarker is reported as usage when Ist exists without any Soll.
var overBudgetMarker = decimal.NewFromInt(999)

// Dataset is the complete result of one run, handed to rendering.
type Dataset struct {
	ReportType     generic.ReportType  `json:"report_type"`
	Grouping       generic.Grouping    `json:"time_grouping"`
	Period         generic.Period      `json:"period"`
	Blocks         []generic.TimeBlock `json:"blocks"`
	Ledger         []EligibilityEntry  `json:"ledger"`
	Aggregates     Aggregates          `json:"aggregates"`
	BudgetOverview []BudgetOverviewRow `json:"budget_overview,omitempty"`
	RawHours       generic.Hours       `json:"raw_hours"`
	UnmatchedHours generic.Hours       `json:"unmatched_hours"`
	Diagnostics    []Diagnostic        `json:"diagnostics"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs the reconciliation pipeline against one fixed budget table.
// An Engine holds no per-run state and may be shared between goroutines.
type Engine struct {
	table BudgetTable
}

// NewEngine binds an engine to a budget table.
func NewEngine(table BudgetTable) *Engine {
	return &Engine{table: table}
}

// Table returns the engine's budget table.
func (e *Engine) Table() BudgetTable { return e.table }

// Run executes the pipeline. It either returns a complete dataset with
// diagnostics or a validation error before any output is produced.
func (e *Engine) Run(in Input) (Dataset, error) {
	period, err := generic.RoundScope(in.Scope.ReportType, in.Scope.Start, in.Scope.End)
	if err != nil {
		return Dataset{}, err
	}
	blocks, err := generic.Partition(period, in.Scope.Grouping)
	if err != nil {
		return Dataset{}, err
	}
	if err := validateRecords(in.Budgets, in.Bookings); err != nil {
		return Dataset{}, err
	}

	bookings := e.filterBookings(in)
	budgets := e.filterBudgets(in)

	var diags Diagnostics
	matched := Match(budgets, bookings)
	diags.merge(matched.Diagnostics)

	classified, classDiags := Classify(matched, e.table)
	diags.merge(classDiags)

	boundary := e.table.QuarterBoundary
	if boundary == "" {
		boundary = BoundaryInclusive
	}
	ledger, evalDiags := Evaluate(classified, blocks, e.windowUsage(in, budgets, blocks), boundary)
	diags.merge(evalDiags)

	if !in.Toggles.IncludeBonusCalc {
		for i := range ledger {
			ledger[i] = ledger[i].WithoutEligible()
		}
	}

	ds := Dataset{
		ReportType:     in.Scope.ReportType,
		Grouping:       in.Scope.Grouping,
		Period:         period,
		Blocks:         blocks,
		Ledger:         ledger,
		RawHours:       generic.ZeroHours(),
		UnmatchedHours: generic.ZeroHours(),
	}
	ds.Aggregates = Aggregate(ledger, blocks, AggregateOptions{
		Grouping:        in.Scope.Grouping,
		IncludeSummary:  in.Toggles.IncludeSummary,
		IncludeQuarters: in.Toggles.IncludeQuarterlySummary,
	})
	for _, entry := range ledger {
		ds.RawHours = ds.RawHours.Add(entry.BookedHours)
		if entry.Match == MatchNone {
			ds.UnmatchedHours = ds.UnmatchedHours.Add(entry.BookedHours)
		}
	}
	if in.Toggles.IncludeBudgetOverview {
		ds.BudgetOverview = budgetOverview(matched)
	}
	ds.Diagnostics = diags.List()
	return ds, nil
}

func validateRecords(budgets []BudgetRecord, bookings []Booking) error {
	for i, b := range bookings {
		if b.Hours.IsNegative() {
			return &generic.RowError{Source: "bookings", Row: i + 1, Err: &generic.ValidationError{
				Field: "hours", Value: b.Hours.String(), Reason: "must not be negative", Err: generic.ErrInvalidNumber,
			}}
		}
		if b.Date.IsZero() {
			return &generic.RowError{Source: "bookings", Row: i + 1, Err: &generic.ValidationError{
				Field: "date", Reason: "missing booking date",
			}}
		}
	}
	for i, r := range budgets {
		if r.Planned.IsNegative() || r.Consumed.IsNegative() {
			return &generic.RowError{Source: "budget", Row: i + 1, Err: &generic.ValidationError{
				Field: "hours", Value: r.Planned.String() + "/" + r.Consumed.String(), Reason: "must not be negative", Err: generic.ErrInvalidNumber,
			}}
		}
	}
	return nil
}

// =============================================================================
// FILTERS
// =============================================================================

func (e *Engine) filterBookings(in Input) []Booking {
	projects := normalizedFilter(in.Filters.Projects)
	employees := make(map[string]bool, len(in.Filters.Employees))
	for _, name := range in.Filters.Employees {
		if name = strings.TrimSpace(name); name != "" {
			employees[name] = true
		}
	}

	out := make([]Booking, 0, len(in.Bookings))
	for _, b := range in.Bookings {
		project := NormalizeText(b.ProjectRaw)
		if len(employees) > 0 && !employees[strings.TrimSpace(b.Employee)] {
			continue
		}
		if !projectAllowed(project, projects) {
			continue
		}
		if in.Toggles.ExcludeSpecialProjects && e.isExcluded(project) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// windowUsage is the G usage per budget key over the report window. It is
// taken from all in-window bookings before the employee filter, so the
// all-or-nothing verdict of a milestone does not depend on who is reported.
func (e *Engine) windowUsage(in Input, budgets []BudgetRecord, blocks []generic.TimeBlock) BudgetUsage {
	everyone := in
	everyone.Filters.Employees = nil
	return WindowUsage(Match(budgets, e.filterBookings(everyone)), blocks)
}

func (e *Engine) filterBudgets(in Input) []BudgetRecord {
	projects := normalizedFilter(in.Filters.Projects)
	out := make([]BudgetRecord, 0, len(in.Budgets))
	for _, r := range in.Budgets {
		project := NormalizeText(r.ProjectRaw)
		if !projectAllowed(project, projects) {
			continue
		}
		if in.Toggles.ExcludeSpecialProjects && e.isExcluded(project) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) isExcluded(project string) bool {
	return IsSpecialProject(project, e.table.SpecialPrefix) || excludedProjectPattern.MatchString(project)
}

func normalizedFilter(raw []string) []string {
	var out []string
	for _, p := range raw {
		if n := NormalizeText(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func projectAllowed(project string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if project == f || strings.HasPrefix(project, f) {
			return true
		}
	}
	return false
}

// =============================================================================
// BUDGET OVERVIEW
// =============================================================================

func budgetOverview(matched MatchResult) []BudgetOverviewRow {
	rows := make([]BudgetOverviewRow, 0, len(matched.BudgetOrder))
	for _, key := range matched.BudgetOrder {
		rec := matched.Budgets[key]
		row := BudgetOverviewRow{
			Project:   CleanText(rec.ProjectRaw),
			Milestone: CleanText(rec.MilestoneRaw),
			Soll:      rec.Planned,
			Ist:       rec.Consumed,
			Percent:   decimal.Zero,
		}
		if p, ok := rec.Consumed.Percent(rec.Planned); ok {
			row.Percent = p
		} else if rec.Consumed.IsPositive() {
			row.Percent = overBudgetMarker
		}
		rows = append(rows, row)
	}
	return rows
}
