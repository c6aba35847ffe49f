/*
Package bonus implements the budget reconciliation and bonus-eligibility engine.

PURPOSE:
  Joins a budget ledger (planned vs. consumed hours per project/milestone)
  with a time-booking ledger (hours per employee/project/milestone/date) and
  decides, per employee and time block, which booked hours qualify for the
  performance bonus.

PIPELINE:
  raw budget rows + raw bookings
    -> Normalize  (normalize.go)   canonical comparable keys
    -> Match      (match.go)       exact / first-token fallback / none
    -> Classify   (classify.go)    G / M / Q + effective Soll
    -> Partition  (generic)        ordered time blocks
    -> Evaluate   (eligibility.go) base eligible hours per block
    -> Aggregate  (aggregate.go)   per-employee, quarter, company, transfer rows

CLASSIFICATIONS:
  G: regular project, Soll/Ist from the budget source
  M: special project (prefix "0000"), monthly fixed budget
  Q: special project, quarterly fixed budget with a cumulative cursor

PURITY:
  Engine.Run never mutates its inputs, keeps no state between calls and
  returns either a complete Dataset with diagnostics or a validation error.

SEE ALSO:
  - budgets.go: fixed monthly/quarterly tables (injected, immutable)
  - engine.go: the single entry point
*/
package bonus

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// SOURCE RECORDS - Immutable once loaded
// =============================================================================

// BudgetRecord is one row of the budget source (Projekte / Arbeitspaket).
type BudgetRecord struct {
	ProjectRaw   string        `json:"project"`
	MilestoneRaw string        `json:"milestone"`
	Planned      generic.Hours `json:"soll"` // Sollstunden Budget
	Consumed     generic.Hours `json:"ist"`  // Iststunden
}

// HasValues reports whether the budget source supplies a nonzero Soll or Ist.
func (r BudgetRecord) HasValues() bool {
	return !r.Planned.IsZero() || !r.Consumed.IsZero()
}

// Booking is one time entry of the booking source.
type Booking struct {
	Employee     string        `json:"employee"`
	ProjectRaw   string        `json:"project"`
	MilestoneRaw string        `json:"milestone"`
	Date         generic.Date  `json:"date"`
	Hours        generic.Hours `json:"hours"`
}

// =============================================================================
// KEYS AND CLASSIFICATION
// =============================================================================

// NormalizedKey is the canonical (project, milestone) join key.
type NormalizedKey struct {
	Project   string `json:"project_key"`
	Milestone string `json:"milestone_key"`
}

func (k NormalizedKey) String() string { return k.Project + " / " + k.Milestone }

// Less orders keys by project then milestone.
func (k NormalizedKey) Less(o NormalizedKey) bool {
	if k.Project != o.Project {
		return k.Project < o.Project
	}
	return k.Milestone < o.Milestone
}

// Classification is the budget type of a milestone instance.
type Classification string

const (
	ClassRegular   Classification = "G" // regular project
	ClassMonthly   Classification = "M" // special project, monthly budget
	ClassQuarterly Classification = "Q" // special project, quarterly budget
)

// IsSpecial reports whether the classification belongs to a special project.
func (c Classification) IsSpecial() bool { return c == ClassMonthly || c == ClassQuarterly }

// SollSource records where an effective Soll came from.
type SollSource string

const (
	SollFromBudget   SollSource = "budget" // BudgetRecord values are authoritative
	SollFromTable    SollSource = "table"  // fixed monthly/quarterly table
	SollFromName     SollSource = "name"   // "(max. 4h/Quartal pro MA)" in the milestone name
	SollUnconfigured SollSource = "none"   // nothing configured, never eligible
)

// MatchKind is the confidence of a budget join.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchFallback MatchKind = "fallback"
	MatchNone     MatchKind = "none"
)

// =============================================================================
// LEDGER ENTRY - Produced by the evaluator, consumed by the aggregator
// =============================================================================

// EligibilityEntry is one (employee, milestone, block) row of the classified ledger.
// BaseEligible is always computed, never taken from input.
type EligibilityEntry struct {
	ID                       string            `json:"id"`
	Employee                 string            `json:"employee"`
	Classification           Classification    `json:"classification"`
	Key                      NormalizedKey     `json:"key"`
	Project                  string            `json:"project"`
	Milestone                string            `json:"milestone"`
	Block                    generic.TimeBlock `json:"block"`
	Match                    MatchKind         `json:"match"`
	SollSource               SollSource        `json:"soll_source"`
	BookedHours              generic.Hours     `json:"booked_hours"`
	EffectiveSoll            generic.Hours     `json:"effective_soll"`
	BudgetIst                generic.Hours     `json:"budget_ist"`
	CumulativeIstBeforeBlock generic.Hours     `json:"cumulative_ist_before_block"`
	UsagePercent             *decimal.Decimal  `json:"usage_percent,omitempty"` // nil when Soll is zero
	BaseEligible             generic.Hours     `json:"base_eligible_hours"`
	Quarters                 []QuarterShare    `json:"quarters,omitempty"` // split by booking date, oldest first
}

// QuarterShare is the part of an entry that falls into one calendar quarter.
// A block spanning several quarters has one share per booked quarter.
type QuarterShare struct {
	Quarter  string        `json:"quarter"` // "2025Q4"
	Booked   generic.Hours `json:"booked_hours"`
	Eligible generic.Hours `json:"eligible_hours"`
}

// AddEligible returns a copy with delta added to the base eligible hours.
// The delta is booked against the latest quarter share so quarter rollups
// keep summing to the entry total.
func (e EligibilityEntry) AddEligible(delta generic.Hours) EligibilityEntry {
	e.BaseEligible = e.BaseEligible.Add(delta)
	if n := len(e.Quarters); n > 0 {
		e.Quarters = slices.Clone(e.Quarters)
		e.Quarters[n-1].Eligible = e.Quarters[n-1].Eligible.Add(delta)
	}
	return e
}

// WithoutEligible returns a copy with no eligible hours at all.
func (e EligibilityEntry) WithoutEligible() EligibilityEntry {
	e.BaseEligible = generic.ZeroHours()
	e.Quarters = slices.Clone(e.Quarters)
	for i := range e.Quarters {
		e.Quarters[i].Eligible = generic.ZeroHours()
	}
	return e
}
