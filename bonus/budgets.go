package bonus

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// FIXED BUDGET TABLE - Injected into the classifier, never mutated
// =============================================================================

// QuarterBoundary decides whether a Q block that brings cumulative usage to
// exactly 100% of Soll still earns the bonus.
type QuarterBoundary string

const (
	BoundaryInclusive QuarterBoundary = "inclusive" // cumulative == Soll still earns
	BoundaryExclusive QuarterBoundary = "exclusive" // cumulative must stay < Soll
)

// FixedBudget is one entry of the fixed monthly or quarterly table.
type FixedBudget struct {
	Name  string        `json:"name"`
	Hours generic.Hours `json:"hours"`
}

// BudgetTable holds the fixed per-employee budgets of special projects.
// Treat values as read-only: Engine.Run copies nothing and shares the table
// between concurrent runs.
type BudgetTable struct {
	SpecialPrefix   string          `json:"special_prefix"`
	Monthly         []FixedBudget   `json:"monthly"`
	Quarterly       []FixedBudget   `json:"quarterly"`
	QuarterTokens   []string        `json:"quarter_tokens"`
	QuarterBoundary QuarterBoundary `json:"quarter_boundary"`
}

// DefaultBudgetTable returns the fixed budgets in use at the company.
func DefaultBudgetTable() BudgetTable {
	eight := generic.NewHoursFromInt(8)
	four := generic.NewHoursFromInt(4)
	return BudgetTable{
		SpecialPrefix: "0000",
		Monthly: []FixedBudget{
			{Name: "Einarbeitung neuer Mitarbeiter (max. 8h/Monat pro MA)", Hours: eight},
			{Name: "Angebote-Ausschreibungen-Kalkulationen (max. 8h/Monat pro MA)", Hours: eight},
			{Name: "Erstellung Vorlagen (übergreifend) (max. 8h/Monat pro MA)", Hours: eight},
		},
		Quarterly: []FixedBudget{
			{Name: "Firmenveranstaltungen (max. 4h/Quartal pro MA)", Hours: four},
			{Name: "Vorträge, Repräsentation (übergreifend) (max. 4h/Quartal pro MA)", Hours: four},
			{Name: "Messeauftritt (max. 4h/Quartal pro MA)", Hours: four},
		},
		QuarterTokens:   []string{"quartal", "quarter"},
		QuarterBoundary: BoundaryInclusive,
	}
}

// HasQuarterToken reports whether a normalized milestone names a quarter.
func (t BudgetTable) HasQuarterToken(milestoneKey string) bool {
	for _, tok := range t.QuarterTokens {
		if tok != "" && strings.Contains(milestoneKey, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// tableHit is the result of looking a milestone up in one table.
type tableHit struct {
	Entry FixedBudget
	Exact bool
}

// budgetAnnotation is the "(max. 4h/Quartal pro MA)" suffix of a table name.
var budgetAnnotation = regexp.MustCompile(`\s*\(\s*max\..*\)\s*$`)

// baseName is the normalized table name without its budget annotation.
func baseName(name string) string {
	return strings.TrimSpace(budgetAnnotation.ReplaceAllString(NormalizeText(name), ""))
}

// words splits a normalized string on everything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsWords reports whether needle occurs in haystack as a contiguous
// run of whole words.
func containsWords(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

// lookup matches a normalized milestone against entries. An exact match on
// the full or annotation-free name wins. Otherwise the milestone must contain
// the base name as whole words ("Messeauftritt Hannover") or be a whole-word
// prefix of it ("Vorträge" for "Vorträge, Repräsentation (übergreifend)").
// The annotation never takes part in the comparison, so "MA" or "4h" match
// nothing. The first entry wins.
func lookup(entries []FixedBudget, milestoneKey string) (tableHit, bool) {
	if milestoneKey == "" {
		return tableHit{}, false
	}
	for _, e := range entries {
		if NormalizeText(e.Name) == milestoneKey || baseName(e.Name) == milestoneKey {
			return tableHit{Entry: e, Exact: true}, true
		}
	}
	ms := words(milestoneKey)
	if len(ms) == 0 {
		return tableHit{}, false
	}
	for _, e := range entries {
		base := words(baseName(e.Name))
		if len(base) == 0 {
			continue
		}
		if containsWords(ms, base) || (len(ms) <= len(base) && slices.Equal(base[:len(ms)], ms)) {
			return tableHit{Entry: e}, true
		}
	}
	return tableHit{}, false
}

// =============================================================================
// BUDGET IN THE MILESTONE NAME - "(max. 4h/Quartal pro MA)"
// =============================================================================

var nameBudgetPattern = regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*h\s*(?:/|pro\s+)(monat|quartal)`)

// NameBudgetUnit is the period named in a milestone budget annotation.
type NameBudgetUnit string

const (
	UnitMonth   NameBudgetUnit = "monat"
	UnitQuarter NameBudgetUnit = "quartal"
)

// ExtractBudgetFromName reads an hour budget written into a milestone name,
// e.g. "Einarbeitung (max. 8h/Monat pro MA)" -> 8, monat.
func ExtractBudgetFromName(name string) (generic.Hours, NameBudgetUnit, bool) {
	m := nameBudgetPattern.FindStringSubmatch(name)
	if m == nil {
		return generic.Hours{}, "", false
	}
	d, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
	if err != nil {
		return generic.Hours{}, "", false
	}
	return generic.HoursOf(d), NameBudgetUnit(strings.ToLower(m[2])), true
}
