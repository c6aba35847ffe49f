package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// BUDGET CSV
// =============================================================================

// Column headers of the budget export.
const (
	ColProject   = "Projekte"
	ColMilestone = "Arbeitspaket"
	ColPlanned   = "Sollstunden Budget"
	ColConsumed  = "Iststunden"
)

// headerCleaner removes the zero-width characters the export tool puts
// into header cells.
var headerCleaner = strings.NewReplacer("\u200b", "", "\ufeff", "")

// BudgetSource is the parsed budget file plus what was detected about it.
type BudgetSource struct {
	Records   []bonus.BudgetRecord
	Encoding  Encoding
	Delimiter rune
	Skipped   int // rows without a work package
}

// ReadBudgetCSV reads the budget export and returns its records in file order.
func ReadBudgetCSV(r io.Reader) ([]bonus.BudgetRecord, error) {
	src, err := ParseBudgetCSV(r)
	if err != nil {
		return nil, err
	}
	return src.Records, nil
}

// ParseBudgetCSV is ReadBudgetCSV with detection details.
//
// The project column is only filled on the first row of each project, so it
// is carried forward. Rows whose work package is empty or "-" are project
// header rows and are skipped. Empty hour cells count as zero; any other
// unparsable number fails the whole file.
func ParseBudgetCSV(r io.Reader) (BudgetSource, error) {
	data, err := readAll(r, "budget csv")
	if err != nil {
		return BudgetSource{}, err
	}
	text, enc, err := DecodeText(data)
	if err != nil {
		return BudgetSource{}, fmt.Errorf("budget csv: %w: %v", generic.ErrMissingSource, err)
	}

	delim := detectDelimiter(text)
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return BudgetSource{}, fmt.Errorf("budget csv header: %w: %v", generic.ErrMissingSource, err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return BudgetSource{}, err
	}

	src := BudgetSource{Encoding: enc, Delimiter: delim}
	project := ""
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return BudgetSource{}, &generic.RowError{Source: "csv", Row: row, Err: err}
		}
		if isBlank(fields) {
			continue
		}

		if p := strings.TrimSpace(cell(fields, cols.project)); p != "" {
			project = p
		}
		milestone := strings.TrimSpace(cell(fields, cols.milestone))
		if milestone == "" || milestone == "-" {
			src.Skipped++
			continue
		}

		planned, err := generic.ParseLocaleHours(cell(fields, cols.planned))
		if err != nil {
			return BudgetSource{}, &generic.RowError{Source: "csv", Row: row, Err: withField(err, ColPlanned)}
		}
		consumed := generic.ZeroHours()
		if cols.consumed >= 0 {
			if consumed, err = generic.ParseLocaleHours(cell(fields, cols.consumed)); err != nil {
				return BudgetSource{}, &generic.RowError{Source: "csv", Row: row, Err: withField(err, ColConsumed)}
			}
		}

		src.Records = append(src.Records, bonus.BudgetRecord{
			ProjectRaw:   project,
			MilestoneRaw: milestone,
			Planned:      planned,
			Consumed:     consumed,
		})
	}
	return src, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type columns struct {
	project, milestone, planned, consumed int
}

func indexColumns(header []string) (columns, error) {
	cols := columns{project: -1, milestone: -1, planned: -1, consumed: -1}
	for i, h := range header {
		switch strings.TrimSpace(headerCleaner.Replace(h)) {
		case ColProject:
			cols.project = i
		case ColMilestone:
			cols.milestone = i
		case ColPlanned:
			cols.planned = i
		case ColConsumed:
			cols.consumed = i
		}
	}

	var missing []string
	if cols.project < 0 {
		missing = append(missing, ColProject)
	}
	if cols.milestone < 0 {
		missing = append(missing, ColMilestone)
	}
	if cols.planned < 0 {
		missing = append(missing, ColPlanned)
	}
	if len(missing) > 0 {
		return cols, &generic.ValidationError{
			Field:  "budget csv",
			Value:  strings.Join(missing, ", "),
			Reason: "required columns missing",
			Err:    generic.ErrMissingSource,
		}
	}
	return cols, nil
}

// detectDelimiter looks at the header line. The export uses tabs; files
// re-saved by a spreadsheet usually come back with ';'.
func detectDelimiter(text string) rune {
	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	best, bestCount := '\t', strings.Count(line, "\t")
	for _, d := range []rune{';', ','} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// withField names the offending column on a number parse error.
func withField(err error, field string) error {
	var verr *generic.ValidationError
	if errors.As(err, &verr) {
		return &generic.ValidationError{Field: field, Value: verr.Value, Reason: verr.Reason, Err: verr.Err}
	}
	return err
}
