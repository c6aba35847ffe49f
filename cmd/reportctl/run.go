package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/factory"
	"github.com/Brottuetchen/Quartalsreport/report"
	"github.com/Brottuetchen/Quartalsreport/store/memory"
)

var (
	runCSV       string
	runXML       string
	runScopeFile string
	runOut       string
	runRequest   factory.ScopeRequest

	runNoBonus        bool
	runNoOverview     bool
	runNoSummary      bool
	runNoQuarters     bool
	runExcludeSpecial bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a report dataset as JSON",
	Example: `  reportctl run --csv budget.csv --xml zeiten.xml --type quarterly --start 2025-10-01 --end 2025-12-31
  reportctl run --csv budget.csv --xml zeiten.xml --scope q4.yaml --out q4.json`,
	RunE: runReport,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runCSV, "csv", "", "Budget CSV (required)")
	f.StringVar(&runXML, "xml", "", "Timesheet XML (required)")
	f.StringVar(&runScopeFile, "scope", "", "YAML/JSON file with report_type, start_date, end_date, ...")
	f.StringVarP(&runOut, "out", "o", "", "Write JSON to this file instead of stdout")

	f.StringVar(&runRequest.ReportType, "type", "", "Report type: quarterly, monthly, yearly, custom_period, project, employee")
	f.StringVar(&runRequest.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&runRequest.EndDate, "end", "", "End date (YYYY-MM-DD)")
	f.StringVar(&runRequest.TimeGrouping, "grouping", "", "Time grouping: monthly, weekly, period, none")
	f.StringSliceVar(&runRequest.Projects, "project", nil, "Project filter (repeatable)")
	f.StringSliceVar(&runRequest.Employees, "employee", nil, "Employee filter (repeatable)")

	f.BoolVar(&runNoBonus, "no-bonus", false, "Skip bonus evaluation")
	f.BoolVar(&runNoOverview, "no-overview", false, "Skip the budget overview")
	f.BoolVar(&runNoSummary, "no-summary", false, "Skip the summary rollups")
	f.BoolVar(&runNoQuarters, "no-quarters", false, "Skip quarter rollups")
	f.BoolVar(&runExcludeSpecial, "exclude-special", false, "Drop bookings on special projects")

	_ = runCmd.MarkFlagRequired("csv")
	_ = runCmd.MarkFlagRequired("xml")
}

func runReport(cmd *cobra.Command, _ []string) error {
	req, err := scopeRequest(cmd)
	if err != nil {
		return err
	}
	params, err := req.Build()
	if err != nil {
		return err
	}

	table, err := factory.LoadBudgetTable(flagBudgetTable)
	if err != nil {
		return fmt.Errorf("load budget table: %w", err)
	}

	csvFile, err := os.Open(runCSV)
	if err != nil {
		return err
	}
	defer csvFile.Close()
	xmlFile, err := os.Open(runXML)
	if err != nil {
		return err
	}
	defer xmlFile.Close()

	svc := report.NewService(bonus.NewEngine(table), memory.New(), logger(), report.Options{})
	run, err := svc.Generate(cmd.Context(), report.GenerateRequest{
		Params:      params,
		Budget:      csvFile,
		BudgetName:  filepath.Base(runCSV),
		Bookings:    xmlFile,
		BookingName: filepath.Base(runXML),
	})
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if runOut != "" {
		f, err := os.Create(runOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run.Dataset); err != nil {
		return err
	}

	printSummary(cmd.ErrOrStderr(), run.Dataset)
	return nil
}

// scopeRequest merges the --scope file with explicit flags. Flags win.
func scopeRequest(cmd *cobra.Command) (factory.ScopeRequest, error) {
	req := factory.ScopeRequest{}
	if runScopeFile != "" {
		data, err := os.ReadFile(runScopeFile)
		if err != nil {
			return req, err
		}
		// YAML is a superset of JSON.
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parse %s: %w", runScopeFile, err)
		}
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("type", &req.ReportType, runRequest.ReportType)
	override("start", &req.StartDate, runRequest.StartDate)
	override("end", &req.EndDate, runRequest.EndDate)
	override("grouping", &req.TimeGrouping, runRequest.TimeGrouping)
	if flags.Changed("project") {
		req.Projects = runRequest.Projects
	}
	if flags.Changed("employee") {
		req.Employees = runRequest.Employees
	}

	toggle := func(name string, dst **bool, v bool) {
		if flags.Changed(name) {
			*dst = &v
		}
	}
	toggle("no-bonus", &req.IncludeBonusCalc, !runNoBonus)
	toggle("no-overview", &req.IncludeBudgetOverview, !runNoOverview)
	toggle("no-summary", &req.IncludeSummarySheet, !runNoSummary)
	toggle("no-quarters", &req.IncludeQuarterlySummary, !runNoQuarters)
	toggle("exclude-special", &req.ExcludeSpecialProjects, runExcludeSpecial)

	return req, nil
}

func printSummary(w io.Writer, ds bonus.Dataset) {
	fmt.Fprintf(w, "\n  %s  %s .. %s  (%s)\n", strings.ToUpper(string(ds.ReportType)), ds.Period.Start, ds.Period.End, ds.Grouping)
	fmt.Fprintf(w, "  Entries: %d   Raw hours: %s   Unmatched: %s\n", len(ds.Ledger), ds.RawHours, ds.UnmatchedHours)
	if c := ds.Aggregates.Company; c != nil {
		fmt.Fprintf(w, "  Eligible: %s regular, %s special of %s productive\n",
			c.Total.EligibleRegular, c.Total.EligibleSpecial, c.Total.Productive)
	}
	for _, d := range ds.Diagnostics {
		fmt.Fprintf(w, "  [%s] %s\n", d.Severity, d.Message)
	}
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
