/*
eligibility.go - Base bonus-eligible hours per (employee, milestone, block)

PURPOSE:
  Turns classified booking groups and the ordered time blocks into the
  classified ledger (EligibilityEntry rows). Base eligible hours are always
  computed here and never taken from input.

RULES:
  G: usage = budget Ist (or booked hours of all employees on the budget key
     over the whole window when Ist is zero). usage/Soll < 1 -> every block
     earns its booked hours, otherwise no block earns anything. All or nothing.
  M: per block, booked/Soll(block) < 1 -> booked hours, else 0. No carry.
  Q: per employee and milestone a cursor runs through the blocks in order
     and resets at every calendar quarter. A block earns its booked hours
     while the cursor (including the block) stays within Soll; see
     QuarterBoundary for the exact-100% case.
  Soll = 0 -> 0, always.

QUARTER SEGMENTS:
  Blocks may cross quarter boundaries (a week spanning Sep/Oct, one block for
  a whole year). Q bookings are therefore evaluated per block-quarter segment
  and the segment results are summed into the block's entry. Every entry
  keeps its per-quarter split in Quarters for the quarter rollups.

SEE ALSO:
  - classify.go: Classified input
  - aggregate.go: consumes the ledger
*/
package bonus

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// entryNamespace scopes deterministic entry IDs.
var entryNamespace = uuid.MustParse("6f1c1e4a-5d0b-4b44-9a3e-3f2f5b0f7c21")

// EntryID is the deterministic ID of a ledger row. The same inputs always
// produce the same ID, so adjustments can reference entries across reruns.
func EntryID(employee string, key NormalizedKey, block generic.TimeBlock) string {
	name := fmt.Sprintf("%s|%s|%s|%s|%s", employee, key.Project, key.Milestone, block.Start, block.End)
	return uuid.NewSHA1(entryNamespace, []byte(name)).String()
}

// BudgetUsage is the booked hours per budget key across the report window.
type BudgetUsage map[NormalizedKey]generic.Hours

// WindowUsage sums the in-window bookings of every matched group onto the
// key of its budget record.
func WindowUsage(matched MatchResult, blocks []generic.TimeBlock) BudgetUsage {
	usage := make(BudgetUsage)
	for _, g := range matched.Groups {
		if g.Record == nil {
			continue
		}
		for _, b := range g.Bookings {
			if generic.BlockIndex(blocks, b.Date) >= 0 {
				usage[g.BudgetKey] = usage[g.BudgetKey].Add(b.Hours)
			}
		}
	}
	return usage
}

// Evaluate builds the classified ledger. usage is the G fallback when a
// budget record has no Ist; nil derives it from the classified bookings.
// Bookings dated outside the blocks are ignored and reported once per key.
func Evaluate(classified []Classified, blocks []generic.TimeBlock, usage BudgetUsage, boundary QuarterBoundary) ([]EligibilityEntry, Diagnostics) {
	var diags Diagnostics
	var entries []EligibilityEntry

	if usage == nil {
		groups := make([]MatchGroup, len(classified))
		for i, c := range classified {
			groups[i] = c.MatchGroup
		}
		usage = WindowUsage(MatchResult{Groups: groups}, blocks)
	}

	for _, c := range classified {
		perEmployee := bucketBookings(c, blocks, &diags)

		employees := make([]string, 0, len(perEmployee))
		for e := range perEmployee {
			employees = append(employees, e)
		}
		sort.Strings(employees)

		for _, employee := range employees {
			buckets := perEmployee[employee]
			switch c.Classification {
			case ClassRegular:
				entries = append(entries, evaluateRegular(c, employee, buckets, blocks, usage, &diags)...)
			case ClassMonthly:
				entries = append(entries, evaluateMonthly(c, employee, buckets, blocks)...)
			case ClassQuarterly:
				entries = append(entries, evaluateQuarterly(c, employee, buckets, blocks, boundary)...)
			}
		}
	}

	SortEntries(entries)
	return entries, diags
}

// SortEntries orders ledger rows by block, employee and key.
func SortEntries(entries []EligibilityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Block.Ordinal != b.Block.Ordinal {
			return a.Block.Ordinal < b.Block.Ordinal
		}
		if a.Employee != b.Employee {
			return a.Employee < b.Employee
		}
		return a.Key.Less(b.Key)
	})
}

// =============================================================================
// BUCKETING
// =============================================================================

// blockBucket is the bookings of one employee in one block.
type blockBucket struct {
	booked generic.Hours
	byDay  []Booking
}

// bucketBookings assigns every booking of a group to exactly one block.
func bucketBookings(c Classified, blocks []generic.TimeBlock, diags *Diagnostics) map[string]map[int]*blockBucket {
	out := make(map[string]map[int]*blockBucket)
	for _, b := range c.Bookings {
		idx := generic.BlockIndex(blocks, b.Date)
		if idx < 0 {
			diags.info(DiagBookingOutsideScope, c.Key, "bookings on %q outside the report window were ignored", c.Key.String())
			continue
		}
		if out[b.Employee] == nil {
			out[b.Employee] = make(map[int]*blockBucket)
		}
		bucket := out[b.Employee][idx]
		if bucket == nil {
			bucket = &blockBucket{booked: generic.ZeroHours()}
			out[b.Employee][idx] = bucket
		}
		bucket.booked = bucket.booked.Add(b.Hours)
		bucket.byDay = append(bucket.byDay, b)
	}
	return out
}

func sortedBlockIndexes(buckets map[int]*blockBucket) []int {
	idx := make([]int, 0, len(buckets))
	for i := range buckets {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func newEntry(c Classified, employee string, block generic.TimeBlock, booked generic.Hours) EligibilityEntry {
	return EligibilityEntry{
		ID:                       EntryID(employee, c.Key, block),
		Employee:                 employee,
		Classification:           c.Classification,
		Key:                      c.Key,
		Project:                  c.Project,
		Milestone:                c.Milestone,
		Block:                    block,
		Match:                    c.Kind,
		SollSource:               c.SollSource,
		BookedHours:              booked,
		EffectiveSoll:            c.Soll,
		BudgetIst:                c.BudgetIst,
		CumulativeIstBeforeBlock: generic.ZeroHours(),
		BaseEligible:             generic.ZeroHours(),
	}
}

// quarterShares splits bookings by the calendar quarter of their date.
// When eligible is set every share earns its booked hours.
func quarterShares(bookings []Booking, eligible bool) []QuarterShare {
	var out []QuarterShare
	index := make(map[string]int)
	for _, b := range bookings {
		qk := b.Date.QuarterKey()
		i, ok := index[qk]
		if !ok {
			i = len(out)
			index[qk] = i
			out = append(out, QuarterShare{Quarter: qk, Booked: generic.ZeroHours(), Eligible: generic.ZeroHours()})
		}
		out[i].Booked = out[i].Booked.Add(b.Hours)
		if eligible {
			out[i].Eligible = out[i].Eligible.Add(b.Hours)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quarter < out[j].Quarter })
	return out
}

func percent(usage, soll generic.Hours) *decimal.Decimal {
	p, ok := usage.Percent(soll)
	if !ok {
		return nil
	}
	return &p
}

// =============================================================================
// G - all or nothing over the whole unit
// =============================================================================

func evaluateRegular(c Classified, employee string, buckets map[int]*blockBucket, blocks []generic.TimeBlock, window BudgetUsage, diags *Diagnostics) []EligibilityEntry {
	usage := c.BudgetIst
	if usage.IsZero() && c.Record != nil {
		usage = window[c.BudgetKey]
	}

	eligible := false
	if ratio, ok := usage.Ratio(c.Soll); ok {
		eligible = ratio.LessThan(decimal.NewFromInt(1))
		if !eligible {
			diags.info(DiagOverBudget, c.Key, "%q used %s of %s hours, no bonus for this milestone", c.Key.String(), usage, c.Soll)
		}
	}

	var out []EligibilityEntry
	for _, i := range sortedBlockIndexes(buckets) {
		e := newEntry(c, employee, blocks[i], buckets[i].booked)
		e.UsagePercent = percent(usage, c.Soll)
		if eligible {
			e.BaseEligible = buckets[i].booked
		}
		e.Quarters = quarterShares(buckets[i].byDay, eligible)
		out = append(out, e)
	}
	return out
}

// =============================================================================
// M - independent per block
// =============================================================================

func evaluateMonthly(c Classified, employee string, buckets map[int]*blockBucket, blocks []generic.TimeBlock) []EligibilityEntry {
	var out []EligibilityEntry
	for _, i := range sortedBlockIndexes(buckets) {
		block := blocks[i]
		booked := buckets[i].booked
		soll := c.SollForBlock(block)

		e := newEntry(c, employee, block, booked)
		e.EffectiveSoll = soll
		e.UsagePercent = percent(booked, soll)
		eligible := false
		if ratio, ok := booked.Ratio(soll); ok && ratio.LessThan(decimal.NewFromInt(1)) {
			e.BaseEligible = booked
			eligible = true
		}
		e.Quarters = quarterShares(buckets[i].byDay, eligible)
		out = append(out, e)
	}
	return out
}

// =============================================================================
// Q - cumulative cursor, reset per calendar quarter
// =============================================================================

func evaluateQuarterly(c Classified, employee string, buckets map[int]*blockBucket, blocks []generic.TimeBlock, boundary QuarterBoundary) []EligibilityEntry {
	cursor := make(map[string]generic.Hours) // quarter key -> booked so far
	var out []EligibilityEntry

	// Walk every block, not only booked ones, so the cursor sees the
	// chronological order even when an employee skips a block.
	for i, block := range blocks {
		bucket := buckets[i]
		if bucket == nil {
			continue
		}

		e := newEntry(c, employee, block, bucket.booked)
		e.CumulativeIstBeforeBlock = cursor[block.Start.QuarterKey()]
		base := generic.ZeroHours()
		var last generic.Hours

		for _, seg := range block.Period().Quarters() {
			qk := seg.Start.QuarterKey()
			segBooked := generic.ZeroHours()
			for _, b := range bucket.byDay {
				if seg.Contains(b.Date) {
					segBooked = segBooked.Add(b.Hours)
				}
			}
			if segBooked.IsZero() {
				continue
			}
			next := cursor[qk].Add(segBooked)
			share := QuarterShare{Quarter: qk, Booked: segBooked, Eligible: generic.ZeroHours()}
			if withinQuarterBudget(next, c.Soll, boundary) {
				base = base.Add(segBooked)
				share.Eligible = segBooked
			}
			e.Quarters = append(e.Quarters, share)
			cursor[qk] = next
			last = next
		}

		if last.Value.IsZero() {
			last = e.CumulativeIstBeforeBlock
		}
		e.UsagePercent = percent(last, c.Soll)
		e.BaseEligible = base
		out = append(out, e)
	}
	return out
}

func withinQuarterBudget(cumulative, soll generic.Hours, boundary QuarterBoundary) bool {
	if !soll.IsPositive() {
		return false
	}
	if boundary == BoundaryExclusive {
		return cumulative.LessThan(soll)
	}
	return cumulative.LessThanOrEqual(soll)
}
