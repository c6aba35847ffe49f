/*
classify.go - Milestone classification and effective Soll

PURPOSE:
  Assigns every matched booking group a Classification (G, M or Q) and the
  Soll its eligibility is evaluated against.

DECISION ORDER (per key):
  1. Special-project flag from the project key prefix (BudgetTable.SpecialPrefix)
  2. Not special -> G, Soll = BudgetRecord.Planned (0 when unmatched)
  3. Special -> fixed tables:
       quarter token in the name or quarterly hit  -> Q
       monthly hit                                 -> M
       budget written in the name ("8h/Monat")     -> M or Q
       nothing                                     -> M (or Q with a token), Soll 0
  4. CSV override: a matched BudgetRecord with nonzero Soll or Ist replaces
     the fixed constant. Both zero (or no record) keeps the constant.

PRORATION:
  Monthly constants are per calendar month. A block shorter than its month
  (week grouping, clipped custom ranges) gets
  constant * block_days / days_in_month(block.start). Overrides from the
  budget source are never prorated.

SEE ALSO:
  - budgets.go: the injected table
  - eligibility.go: consumes Classified
*/
package bonus

import (
	"github.com/shopspring/decimal"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// Classified is a MatchGroup with its classification and effective Soll.
type Classified struct {
	MatchGroup
	Classification Classification
	Soll           generic.Hours // per month for table M, per quarter for Q, whole unit for G
	SollSource     SollSource
	BudgetIst      generic.Hours
	Special        bool
	Project        string // display name
	Milestone      string // display name
}

// Prorated reports whether Soll scales with block length.
func (c Classified) Prorated() bool {
	return c.Classification == ClassMonthly && (c.SollSource == SollFromTable || c.SollSource == SollFromName)
}

// SollForBlock returns the Soll applicable to one block. For M milestones
// with a table constant the value is prorated; everything else is returned
// unchanged.
func (c Classified) SollForBlock(block generic.TimeBlock) generic.Hours {
	if !c.Prorated() || block.Period().IsWholeMonth() {
		return c.Soll
	}
	days := decimal.NewFromInt(int64(block.Period().Days()))
	monthDays := decimal.NewFromInt(int64(generic.DaysInMonth(block.Start.Year(), block.Start.Month())))
	return generic.HoursOf(c.Soll.Value.Mul(days).Div(monthDays).Round(4))
}

// Classify runs the decision order above over every group of a MatchResult.
// The result follows the order of matched.Groups.
func Classify(matched MatchResult, table BudgetTable) ([]Classified, Diagnostics) {
	var diags Diagnostics
	out := make([]Classified, 0, len(matched.Groups))

	for _, group := range matched.Groups {
		c := Classified{
			MatchGroup: group,
			Soll:       generic.ZeroHours(),
			BudgetIst:  generic.ZeroHours(),
			SollSource: SollUnconfigured,
			Special:    IsSpecialProject(group.Key.Project, table.SpecialPrefix),
		}
		c.Project, c.Milestone = displayNames(group)
		if group.Record != nil {
			c.BudgetIst = group.Record.Consumed
		}

		if !c.Special {
			c.Classification = ClassRegular
			if group.Record != nil {
				c.Soll = group.Record.Planned
				c.SollSource = SollFromBudget
			}
			out = append(out, c)
			continue
		}

		classifySpecial(&c, table, &diags)

		// CSV override: a nonzero Soll or Ist from the budget source wins.
		if group.Record != nil && group.Record.HasValues() {
			c.Soll = group.Record.Planned
			c.SollSource = SollFromBudget
		}

		if c.SollSource == SollUnconfigured {
			diags.warn(DiagUnconfiguredSpecial, group.Key,
				"special project milestone %q has no fixed budget configured, never eligible", c.Milestone)
		}
		out = append(out, c)
	}

	return out, diags
}

func classifySpecial(c *Classified, table BudgetTable, diags *Diagnostics) {
	ms := c.Key.Milestone
	token := table.HasQuarterToken(ms)
	monthly, mHit := lookup(table.Monthly, ms)
	quarterly, qHit := lookup(table.Quarterly, ms)

	switch {
	case mHit && qHit:
		diags.info(DiagAmbiguousClass, c.Key,
			"milestone %q matches both %q and %q", c.Milestone, monthly.Entry.Name, quarterly.Entry.Name)
		if token || !monthly.Exact {
			setTable(c, ClassQuarterly, quarterly.Entry.Hours)
		} else {
			setTable(c, ClassMonthly, monthly.Entry.Hours)
		}
		return

	case qHit:
		setTable(c, ClassQuarterly, quarterly.Entry.Hours)
		return

	case mHit && token:
		diags.info(DiagAmbiguousClass, c.Key,
			"milestone %q names a quarter but matches monthly entry %q, classified as quarterly", c.Milestone, monthly.Entry.Name)
		c.Classification = ClassQuarterly
		if h, unit, ok := ExtractBudgetFromName(ms); ok && unit == UnitQuarter {
			c.Soll, c.SollSource = h, SollFromName
		}
		return

	case mHit:
		setTable(c, ClassMonthly, monthly.Entry.Hours)
		return
	}

	if h, unit, ok := ExtractBudgetFromName(ms); ok {
		c.Classification = ClassMonthly
		if unit == UnitQuarter {
			c.Classification = ClassQuarterly
		}
		c.Soll, c.SollSource = h, SollFromName
		return
	}

	c.Classification = ClassMonthly
	if token {
		c.Classification = ClassQuarterly
	}
}

func setTable(c *Classified, class Classification, hours generic.Hours) {
	c.Classification = class
	c.Soll = hours
	c.SollSource = SollFromTable
}

// displayNames prefers the budget source spelling, then the first booking.
func displayNames(group MatchGroup) (string, string) {
	if group.Record != nil && group.Kind == MatchExact {
		return CleanText(group.Record.ProjectRaw), CleanText(group.Record.MilestoneRaw)
	}
	if len(group.Bookings) > 0 {
		b := group.Bookings[0]
		return CleanText(b.ProjectRaw), CleanText(b.MilestoneRaw)
	}
	return group.Key.Project, group.Key.Milestone
}
