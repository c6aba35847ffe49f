/*
Package factory converts configuration documents into engine values.

PURPOSE:
  Builds a bonus.BudgetTable from a JSON or YAML document and a report
  scope from an API request. The fixed special-project budgets change a few
  times a year; keeping them in a file means no release is needed when the
  company adds a new 0000 milestone.

BUDGET TABLE SCHEMA (YAML):
  special_prefix: "0000"
  quarter_boundary: inclusive      # or exclusive
  quarter_tokens: [quartal, quarter]
  monthly:
    - name: "Einarbeitung neuer Mitarbeiter (max. 8h/Monat pro MA)"
      hours: 8
  quarterly:
    - name: "Messeauftritt (max. 4h/Quartal pro MA)"
      hours: 4

  The JSON form uses the same keys. Omitted keys fall back to
  bonus.DefaultBudgetTable().

USAGE:
  table, err := factory.LoadBudgetTable("budgets.yaml")
  engine := bonus.NewEngine(table)

SEE ALSO:
  - bonus/budgets.go: BudgetTable
  - scope.go: request -> bonus.Input
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// BudgetTableJSON is the document form of a bonus.BudgetTable.
type BudgetTableJSON struct {
	SpecialPrefix   string            `json:"special_prefix,omitempty" yaml:"special_prefix,omitempty"`
	QuarterBoundary string            `json:"quarter_boundary,omitempty" yaml:"quarter_boundary,omitempty"`
	QuarterTokens   []string          `json:"quarter_tokens,omitempty" yaml:"quarter_tokens,omitempty"`
	Monthly         []FixedBudgetJSON `json:"monthly,omitempty" yaml:"monthly,omitempty"`
	Quarterly       []FixedBudgetJSON `json:"quarterly,omitempty" yaml:"quarterly,omitempty"`
}

// FixedBudgetJSON is one table entry.
type FixedBudgetJSON struct {
	Name  string  `json:"name" yaml:"name"`
	Hours float64 `json:"hours" yaml:"hours"`
}

// =============================================================================
// PARSING
// =============================================================================

// Format of a budget table document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Unknown
// extensions are read as YAML, which also accepts plain JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadBudgetTable reads a budget table file. An empty path returns the default table.
func LoadBudgetTable(path string) (bonus.BudgetTable, error) {
	if path == "" {
		return bonus.DefaultBudgetTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return bonus.BudgetTable{}, fmt.Errorf("read budget table %s: %w", path, err)
	}
	return ParseBudgetTable(data, FormatFromPath(path))
}

// ParseBudgetTable decodes and validates a budget table document.
func ParseBudgetTable(data []byte, format Format) (bonus.BudgetTable, error) {
	var doc BudgetTableJSON
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return bonus.BudgetTable{}, fmt.Errorf("failed to parse budget table: %w", err)
	}
	return FromJSON(doc)
}

// FromJSON converts the document form, filling omitted keys from the default table.
func FromJSON(doc BudgetTableJSON) (bonus.BudgetTable, error) {
	table := bonus.DefaultBudgetTable()

	if doc.SpecialPrefix != "" {
		table.SpecialPrefix = doc.SpecialPrefix
	}
	if len(doc.QuarterTokens) > 0 {
		table.QuarterTokens = doc.QuarterTokens
	}
	if doc.QuarterBoundary != "" {
		b, err := parseBoundary(doc.QuarterBoundary)
		if err != nil {
			return bonus.BudgetTable{}, err
		}
		table.QuarterBoundary = b
	}

	var err error
	if doc.Monthly != nil {
		if table.Monthly, err = parseEntries("monthly", doc.Monthly); err != nil {
			return bonus.BudgetTable{}, err
		}
	}
	if doc.Quarterly != nil {
		if table.Quarterly, err = parseEntries("quarterly", doc.Quarterly); err != nil {
			return bonus.BudgetTable{}, err
		}
	}
	return table, nil
}

// ToJSON converts a table back to its document form.
func ToJSON(table bonus.BudgetTable) BudgetTableJSON {
	doc := BudgetTableJSON{
		SpecialPrefix:   table.SpecialPrefix,
		QuarterBoundary: string(table.QuarterBoundary),
		QuarterTokens:   table.QuarterTokens,
	}
	for _, e := range table.Monthly {
		doc.Monthly = append(doc.Monthly, FixedBudgetJSON{Name: e.Name, Hours: e.Hours.Float64()})
	}
	for _, e := range table.Quarterly {
		doc.Quarterly = append(doc.Quarterly, FixedBudgetJSON{Name: e.Name, Hours: e.Hours.Float64()})
	}
	return doc
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseBoundary(s string) (bonus.QuarterBoundary, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inclusive":
		return bonus.BoundaryInclusive, nil
	case "exclusive":
		return bonus.BoundaryExclusive, nil
	}
	return "", &generic.ValidationError{Field: "quarter_boundary", Value: s, Reason: "must be inclusive or exclusive"}
}

func parseEntries(table string, entries []FixedBudgetJSON) ([]bonus.FixedBudget, error) {
	out := make([]bonus.FixedBudget, 0, len(entries))
	seen := make(map[string]bool)
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, &generic.ValidationError{Field: fmt.Sprintf("%s[%d].name", table, i), Reason: "must not be empty"}
		}
		if e.Hours < 0 {
			return nil, &generic.ValidationError{
				Field: fmt.Sprintf("%s[%d].hours", table, i), Value: fmt.Sprint(e.Hours),
				Reason: "must not be negative", Err: generic.ErrInvalidNumber,
			}
		}
		key := bonus.NormalizeText(name)
		if seen[key] {
			return nil, &generic.ValidationError{Field: table, Value: name, Reason: "duplicate entry"}
		}
		seen[key] = true
		out = append(out, bonus.FixedBudget{Name: name, Hours: generic.NewHours(e.Hours)})
	}
	return out, nil
}
