/*
Package report runs the reconciliation for uploaded sources and keeps the results.

PURPOSE:
  A report run is one engine invocation: the parsed scope, the dataset and
  where the budget came from. Runs are stored so that they can be downloaded
  later and so that reviewers can record manual bonus adjustments against
  individual ledger entries.

ADJUSTMENTS:
  The dataset of a run is never rewritten. Adjustments are appended to a
  per-run log and the adjusted view is computed on every read:

    adjusted(entry) = entry.BaseEligible + sum(adjustments on entry)

  The aggregates of the adjusted view are rebuilt from the adjusted ledger
  with the same aggregator the engine uses.

SEE ALSO:
  - service.go: Generate, Get, List, AddAdjustment, Adjusted, Sweep
  - ledger.go: append-only adjustment log
  - store/sqlite, store/memory: Store implementations
*/
package report

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/factory"
	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// RUN
// =============================================================================

// BudgetOrigin records which budget source a run used.
type BudgetOrigin string

const (
	BudgetUploaded BudgetOrigin = "upload"
	BudgetDefault  BudgetOrigin = "default"
)

// Run is a persisted report run.
type Run struct {
	ID           string               `json:"id"`
	CreatedAt    time.Time            `json:"created_at"`
	Params       factory.ReportParams `json:"params"`
	BudgetOrigin BudgetOrigin         `json:"budget_origin"`
	BudgetName   string               `json:"budget_name,omitempty"`
	BookingName  string               `json:"booking_name,omitempty"`
	Dataset      bonus.Dataset        `json:"dataset"`
}

// Summary is the list view of a run.
func (r Run) Summary() RunSummary {
	return RunSummary{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		ReportType:  r.Dataset.ReportType,
		Grouping:    r.Dataset.Grouping,
		Period:      r.Dataset.Period,
		Entries:     len(r.Dataset.Ledger),
		Diagnostics: len(r.Dataset.Diagnostics),
	}
}

func (r Run) entry(entryID string) (bonus.EligibilityEntry, bool) {
	for _, e := range r.Dataset.Ledger {
		if e.ID == entryID {
			return e, true
		}
	}
	return bonus.EligibilityEntry{}, false
}

// FileName is the download name of the run's JSON export: "Q4-2025.json"
// for quarterly runs, "Report_20251001-20251231.json" otherwise, prefixed
// with the stem of the uploaded timesheet.
func (r Run) FileName() string {
	p := r.Dataset.Period
	name := fmt.Sprintf("Report_%s-%s.json", p.Start.Time.Format("20060102"), p.End.Time.Format("20060102"))
	if r.Dataset.ReportType == generic.ReportQuarterly {
		name = fmt.Sprintf("Q%d-%d.json", p.Start.Quarter(), p.Start.Year())
	}
	stem := strings.TrimSuffix(SafeFileName(r.BookingName, ""), filepath.Ext(r.BookingName))
	if stem != "" {
		name = stem + "_" + name
	}
	return name
}

var unsafeFileChars = regexp.MustCompile(`[^\w.\-]`)

// SafeFileName strips directories and replaces everything but word
// characters, dots and dashes. Names are capped at 128 bytes.
func SafeFileName(name, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	safe := unsafeFileChars.ReplaceAllString(base, "_")
	if len(safe) > 128 {
		safe = safe[:128]
	}
	if safe == "" {
		return fallback
	}
	return safe
}

// RunSummary is a run without its dataset.
type RunSummary struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	ReportType  generic.ReportType `json:"report_type"`
	Grouping    generic.Grouping   `json:"time_grouping"`
	Period      generic.Period     `json:"period"`
	Entries     int                `json:"entries"`
	Diagnostics int                `json:"diagnostics"`
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// Adjustment is a manual change to the eligible hours of one ledger entry.
// Adjustments are immutable; a wrong one is corrected by a counter-adjustment.
type Adjustment struct {
	ID             string        `json:"id"`
	RunID          string        `json:"run_id"`
	EntryID        string        `json:"entry_id"`
	Delta          generic.Hours `json:"delta_hours"`
	Reason         string        `json:"reason"`
	Actor          string        `json:"actor,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// AdjustedEntry is a ledger entry with its adjustments applied.
type AdjustedEntry struct {
	bonus.EligibilityEntry
	AdjustmentHours generic.Hours `json:"adjustment_hours"`
	AdjustedHours   generic.Hours `json:"adjusted_eligible_hours"`
}

// AdjustedReport is the read-time view of a run with all adjustments applied.
type AdjustedReport struct {
	Run         RunSummary       `json:"run"`
	Entries     []AdjustedEntry  `json:"entries"`
	Aggregates  bonus.Aggregates `json:"aggregates"`
	Adjustments []Adjustment     `json:"adjustments"`
}

// =============================================================================
// DEFAULT BUDGET SOURCE
// =============================================================================

// BudgetFile is the admin-uploaded budget CSV used when a request has none.
type BudgetFile struct {
	Name       string    `json:"name"`
	Data       []byte    `json:"-"`
	Records    int       `json:"records"`
	UploadedAt time.Time `json:"uploaded_at"`
}
