package bonus

import (
	"sort"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// TOTALS
// =============================================================================

// Totals are the three figures every rollup carries. Values are base values:
// manual adjustments are applied on read by the report package.
type Totals struct {
	Productive      generic.Hours `json:"productive_hours"`
	EligibleRegular generic.Hours `json:"eligible_regular"`
	EligibleSpecial generic.Hours `json:"eligible_special"`
}

// ZeroTotals returns totals with every figure set to zero.
func ZeroTotals() Totals {
	return Totals{
		Productive:      generic.ZeroHours(),
		EligibleRegular: generic.ZeroHours(),
		EligibleSpecial: generic.ZeroHours(),
	}
}

// Add returns t + o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Productive:      t.Productive.Add(o.Productive),
		EligibleRegular: t.EligibleRegular.Add(o.EligibleRegular),
		EligibleSpecial: t.EligibleSpecial.Add(o.EligibleSpecial),
	}
}

// EligibleTotal is regular plus special eligible hours.
func (t Totals) EligibleTotal() generic.Hours { return t.EligibleRegular.Add(t.EligibleSpecial) }

func totalsOf(e EligibilityEntry) Totals {
	return splitTotals(e.Classification, e.BookedHours, e.BaseEligible)
}

func splitTotals(class Classification, booked, eligible generic.Hours) Totals {
	t := ZeroTotals()
	t.Productive = booked
	if class.IsSpecial() {
		t.EligibleSpecial = eligible
	} else {
		t.EligibleRegular = eligible
	}
	return t
}

// quarterTotalsOf splits an entry over the quarters its bookings fall in.
// Entries without a split count for the quarter of their block start.
func quarterTotalsOf(e EligibilityEntry) map[string]Totals {
	if len(e.Quarters) == 0 {
		return map[string]Totals{e.Block.Start.QuarterKey(): totalsOf(e)}
	}
	out := make(map[string]Totals, len(e.Quarters))
	for _, q := range e.Quarters {
		out[q.Quarter] = out[q.Quarter].Add(splitTotals(e.Classification, q.Booked, q.Eligible))
	}
	return out
}

// =============================================================================
// ROWS
// =============================================================================

// EmployeeBlock is the per-employee, per-block total.
type EmployeeBlock struct {
	Employee string            `json:"employee"`
	Block    generic.TimeBlock `json:"block"`
	Totals
	EntryIDs []string `json:"entry_ids"` // ledger rows adjustments may target
}

// EmployeeSummary is one employee over the whole window plus per quarter.
type EmployeeSummary struct {
	Employee string `json:"employee"`
	Totals
	Quarters []QuarterTotals `json:"quarters,omitempty"`
}

// QuarterTotals rolls entries up by the calendar quarter of their bookings.
type QuarterTotals struct {
	Quarter string `json:"quarter"` // "2025Q4"
	Totals
}

// CompanyBlock is the company-wide total for one block.
type CompanyBlock struct {
	Block     generic.TimeBlock `json:"block"`
	Employees int               `json:"employees"`
	Totals
}

// CompanySummary is the company-wide overview.
type CompanySummary struct {
	Blocks   []CompanyBlock  `json:"blocks,omitempty"`
	Quarters []QuarterTotals `json:"quarters,omitempty"`
	Total    Totals          `json:"total"`
}

// TransferRow is the flat per-(block, employee) row copied into the
// external bonus template.
type TransferRow struct {
	Block           string        `json:"block"`
	Ordinal         int           `json:"ordinal"`
	Employee        string        `json:"employee"`
	Productive      generic.Hours `json:"productive_hours"`
	EligibleRegular generic.Hours `json:"eligible_hours_regular"`
	EligibleSpecial generic.Hours `json:"eligible_hours_special"`
}

// Aggregates is everything the Aggregator derives from the ledger.
type Aggregates struct {
	EmployeeBlocks []EmployeeBlock   `json:"employee_blocks,omitempty"`
	Employees      []EmployeeSummary `json:"employees"`
	Company        *CompanySummary   `json:"company,omitempty"`
	Transfer       []TransferRow     `json:"transfer"`
}

// AggregateOptions control which rollups are emitted.
type AggregateOptions struct {
	Grouping        generic.Grouping
	IncludeSummary  bool
	IncludeQuarters bool
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate rolls the ledger up. In GroupNone mode the per-block employee
// and company rows are suppressed; the transfer table keeps its single row
// per employee.
func Aggregate(entries []EligibilityEntry, blocks []generic.TimeBlock, opts AggregateOptions) Aggregates {
	type ebKey struct {
		employee string
		ordinal  int
	}

	perBlock := make(map[ebKey]*EmployeeBlock)
	perEmployee := make(map[string]Totals)
	perEmployeeQuarter := make(map[string]map[string]Totals)
	perCompanyBlock := make(map[int]Totals)
	employeesPerBlock := make(map[int]map[string]bool)
	perCompanyQuarter := make(map[string]Totals)
	companyTotal := ZeroTotals()

	for _, e := range entries {
		t := totalsOf(e)
		k := ebKey{e.Employee, e.Block.Ordinal}
		eb := perBlock[k]
		if eb == nil {
			eb = &EmployeeBlock{Employee: e.Employee, Block: e.Block, Totals: ZeroTotals()}
			perBlock[k] = eb
		}
		eb.Totals = eb.Totals.Add(t)
		eb.EntryIDs = append(eb.EntryIDs, e.ID)

		perEmployee[e.Employee] = perEmployee[e.Employee].Add(t)

		if perEmployeeQuarter[e.Employee] == nil {
			perEmployeeQuarter[e.Employee] = make(map[string]Totals)
		}
		for q, qt := range quarterTotalsOf(e) {
			perEmployeeQuarter[e.Employee][q] = perEmployeeQuarter[e.Employee][q].Add(qt)
			perCompanyQuarter[q] = perCompanyQuarter[q].Add(qt)
		}

		perCompanyBlock[e.Block.Ordinal] = perCompanyBlock[e.Block.Ordinal].Add(t)
		if employeesPerBlock[e.Block.Ordinal] == nil {
			employeesPerBlock[e.Block.Ordinal] = make(map[string]bool)
		}
		employeesPerBlock[e.Block.Ordinal][e.Employee] = true
		companyTotal = companyTotal.Add(t)
	}

	var out Aggregates

	// Employee-block rows and transfer rows, ordered by block then employee.
	ebKeys := make([]ebKey, 0, len(perBlock))
	for k := range perBlock {
		ebKeys = append(ebKeys, k)
	}
	sort.Slice(ebKeys, func(i, j int) bool {
		if ebKeys[i].ordinal != ebKeys[j].ordinal {
			return ebKeys[i].ordinal < ebKeys[j].ordinal
		}
		return ebKeys[i].employee < ebKeys[j].employee
	})
	for _, k := range ebKeys {
		eb := perBlock[k]
		sort.Strings(eb.EntryIDs)
		if opts.Grouping != generic.GroupNone {
			out.EmployeeBlocks = append(out.EmployeeBlocks, *eb)
		}
		out.Transfer = append(out.Transfer, TransferRow{
			Block:           eb.Block.Label,
			Ordinal:         eb.Block.Ordinal,
			Employee:        eb.Employee,
			Productive:      eb.Productive,
			EligibleRegular: eb.EligibleRegular,
			EligibleSpecial: eb.EligibleSpecial,
		})
	}

	// Employee summaries with quarter rollups.
	employees := make([]string, 0, len(perEmployee))
	for name := range perEmployee {
		employees = append(employees, name)
	}
	sort.Strings(employees)
	for _, name := range employees {
		out.Employees = append(out.Employees, EmployeeSummary{
			Employee: name,
			Totals:   perEmployee[name],
		})
		if opts.IncludeQuarters {
			out.Employees[len(out.Employees)-1].Quarters = sortedQuarters(perEmployeeQuarter[name])
		}
	}

	if opts.IncludeSummary {
		company := &CompanySummary{Total: companyTotal}
		if opts.IncludeQuarters {
			company.Quarters = sortedQuarters(perCompanyQuarter)
		}
		if opts.Grouping != generic.GroupNone {
			for _, b := range blocks {
				t, ok := perCompanyBlock[b.Ordinal]
				if !ok {
					t = ZeroTotals()
				}
				company.Blocks = append(company.Blocks, CompanyBlock{
					Block:     b,
					Employees: len(employeesPerBlock[b.Ordinal]),
					Totals:    t,
				})
			}
		}
		out.Company = company
	}

	return out
}

func sortedQuarters(m map[string]Totals) []QuarterTotals {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]QuarterTotals, 0, len(keys))
	for _, k := range keys {
		out = append(out, QuarterTotals{Quarter: k, Totals: m[k]})
	}
	return out
}
