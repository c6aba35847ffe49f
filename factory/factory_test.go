package factory_test

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/factory"
	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// BUDGET TABLE
// =============================================================================

func TestParseBudgetTable_YAML(t *testing.T) {
	doc := `
special_prefix: "0000"
quarter_boundary: exclusive
monthly:
  - name: "Einarbeitung neuer Mitarbeiter (max. 8h/Monat pro MA)"
    hours: 8
  - name: "Schulungen"
    hours: 6.5
quarterly:
  - name: "Messeauftritt (max. 4h/Quartal pro MA)"
    hours: 4
`
	table, err := factory.ParseBudgetTable([]byte(doc), factory.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "0000", table.SpecialPrefix)
	assert.Equal(t, bonus.BoundaryExclusive, table.QuarterBoundary)
	require.Len(t, table.Monthly, 2)
	assert.Equal(t, "6.50", table.Monthly[1].Hours.String())
	require.Len(t, table.Quarterly, 1)
	// Omitted keys keep their defaults
	assert.Equal(t, bonus.DefaultBudgetTable().QuarterTokens, table.QuarterTokens)
}

func TestParseBudgetTable_Malformed(t *testing.T) {
	_, err := factory.ParseBudgetTable([]byte("monthly: [unclosed"), factory.FormatYAML)
	assert.Error(t, err)

	_, err = factory.ParseBudgetTable([]byte("monthly:\n  - name: A\n"), factory.FormatJSON)
	assert.Error(t, err)
}

func TestParseBudgetTable_JSON(t *testing.T) {
	doc := `{"quarterly": [{"name": "Firmenlauf", "hours": 2}]}`
	table, err := factory.ParseBudgetTable([]byte(doc), factory.FormatJSON)
	require.NoError(t, err)

	require.Len(t, table.Quarterly, 1)
	assert.Equal(t, "Firmenlauf", table.Quarterly[0].Name)
	assert.Equal(t, bonus.DefaultBudgetTable().Monthly, table.Monthly)
	assert.Equal(t, bonus.BoundaryInclusive, table.QuarterBoundary)
}

func TestParseBudgetTable_Rejects(t *testing.T) {
	cases := map[string]string{
		"negative hours":   `{"monthly": [{"name": "A", "hours": -1}]}`,
		"empty name":       `{"monthly": [{"name": " ", "hours": 1}]}`,
		"duplicate entry":  `{"quarterly": [{"name": "A", "hours": 1}, {"name": " a ", "hours": 2}]}`,
		"unknown boundary": `{"quarter_boundary": "sometimes"}`,
	}
	for name, doc := range cases {
		_, err := factory.ParseBudgetTable([]byte(doc), factory.FormatJSON)
		require.Error(t, err, name)
		var verr *generic.ValidationError
		assert.ErrorAs(t, err, &verr, name)
	}
}

func TestLoadBudgetTable_RoundTripThroughFile(t *testing.T) {
	// GIVEN: the default table written to disk as JSON
	// WHEN: loading it back
	// THEN: the same entries come out

	original := bonus.DefaultBudgetTable()
	path := filepath.Join(t.TempDir(), "budgets.json")
	data, err := json.Marshal(factory.ToJSON(original))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := factory.LoadBudgetTable(path)
	require.NoError(t, err)
	require.Len(t, loaded.Monthly, len(original.Monthly))
	for i := range original.Monthly {
		assert.Equal(t, original.Monthly[i].Name, loaded.Monthly[i].Name)
		assert.True(t, original.Monthly[i].Hours.Equal(loaded.Monthly[i].Hours))
	}
}

func TestLoadBudgetTable_EmptyPathIsDefault(t *testing.T) {
	table, err := factory.LoadBudgetTable("")
	require.NoError(t, err)
	assert.Equal(t, "0000", table.SpecialPrefix)
}

// =============================================================================
// SCOPE
// =============================================================================

func TestScopeRequest_Build_Defaults(t *testing.T) {
	params, err := factory.ScopeRequest{
		ReportType: "quarterly",
		StartDate:  "2025-10-01",
		EndDate:    "2025-12-31",
	}.Build()
	require.NoError(t, err)

	assert.Equal(t, generic.ReportQuarterly, params.Scope.ReportType)
	assert.Equal(t, generic.GroupByMonth, params.Scope.Grouping)
	assert.Equal(t, bonus.DefaultToggles(), params.Toggles)
	assert.Empty(t, params.Filters.Projects)
}

func TestScopeFromJSON(t *testing.T) {
	body := `{
		"report_type": "custom_period",
		"start_date": "2025-08-15",
		"end_date": "2025-09-15",
		"time_grouping": "weekly",
		"projects": ["1234", " "],
		"include_bonus_calc": false,
		"exclude_special_projects": true
	}`
	params, err := factory.ScopeFromJSON([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, generic.GroupByWeek, params.Scope.Grouping)
	assert.Equal(t, []string{"1234"}, params.Filters.Projects)
	assert.False(t, params.Toggles.IncludeBonusCalc)
	assert.True(t, params.Toggles.ExcludeSpecialProjects)
	assert.True(t, params.Toggles.IncludeBudgetOverview)
}

func TestScopeFromForm(t *testing.T) {
	form := url.Values{
		"report_type":             {"monthly"},
		"start_date":              {"2025-10-01"},
		"end_date":                {"2025-10-31"},
		"time_grouping":           {"none"},
		"projects":                {"1234, 0000"},
		"employees":               {"Anna Muster,Ben Beispiel"},
		"include_budget_overview": {"off"},
		"include_summary_sheet":   {"true"},
	}
	params, err := factory.ScopeFromForm(form)
	require.NoError(t, err)

	assert.Equal(t, generic.GroupNone, params.Scope.Grouping)
	assert.Equal(t, []string{"1234", "0000"}, params.Filters.Projects)
	assert.Equal(t, []string{"Anna Muster", "Ben Beispiel"}, params.Filters.Employees)
	assert.False(t, params.Toggles.IncludeBudgetOverview)
	assert.True(t, params.Toggles.IncludeSummary)
}

func TestScopeRequest_Rejects(t *testing.T) {
	cases := []struct {
		name string
		req  factory.ScopeRequest
		want error
	}{
		{"unknown type", factory.ScopeRequest{ReportType: "daily", StartDate: "2025-01-01", EndDate: "2025-01-02"}, generic.ErrInvalidReportType},
		{"bad date", factory.ScopeRequest{ReportType: "monthly", StartDate: "01.10.2025", EndDate: "2025-10-31"}, generic.ErrInvalidScope},
		{"missing date", factory.ScopeRequest{ReportType: "monthly", StartDate: "2025-10-01"}, generic.ErrInvalidScope},
		{"start after end", factory.ScopeRequest{ReportType: "monthly", StartDate: "2025-11-01", EndDate: "2025-10-01"}, generic.ErrInvalidPeriod},
		{"bad grouping", factory.ScopeRequest{ReportType: "monthly", StartDate: "2025-10-01", EndDate: "2025-10-31", TimeGrouping: "daily"}, generic.ErrInvalidGrouping},
	}
	for _, tc := range cases {
		_, err := tc.req.Build()
		assert.ErrorIs(t, err, tc.want, tc.name)
		assert.True(t, generic.IsClientError(err), tc.name)
	}
}

func TestScopeFromForm_BadBoolean(t *testing.T) {
	_, err := factory.ScopeFromForm(url.Values{
		"report_type":        {"monthly"},
		"start_date":         {"2025-10-01"},
		"end_date":           {"2025-10-31"},
		"include_bonus_calc": {"vielleicht"},
	})
	assert.True(t, generic.IsClientError(err))
}
