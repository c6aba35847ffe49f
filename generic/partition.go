/*
partition.go - Time-window partitioning

PURPOSE:
  Slices a report period into an ordered sequence of TimeBlocks and assigns
  dated items to exactly one block.

GROUPING MODES:
  by-month:  one block per calendar month, boundary months clipped
  by-week:   one block per Monday-Sunday week, clipped at the range ends
  by-period: one block spanning the whole range
  none:      one block spanning the whole range; downstream consumers use
             the mode to suppress per-block rows

INVARIANTS:
  - Blocks are ordered by Ordinal (1-based) and never overlap
  - The union of blocks is exactly [period.Start, period.End]
  - The number of blocks is bounded by the number of days in the range

SEE ALSO:
  - period.go: RoundScope produces the period partitioned here
  - bonus/eligibility.go: consumes blocks
*/
package generic

import (
	"fmt"
	"sort"
	"time"
)

// Grouping selects how a period is sliced.
type Grouping string

const (
	GroupByMonth  Grouping = "monthly"
	GroupByWeek   Grouping = "weekly"
	GroupByPeriod Grouping = "period"
	GroupNone     Grouping = "none"
)

// Groupings lists every supported grouping in display order.
var Groupings = []Grouping{GroupByMonth, GroupByPeriod, GroupByWeek, GroupNone}

// ParseGrouping validates a grouping string. Aliases "by-month", "by-week"
// and "by-period" are accepted.
func ParseGrouping(s string) (Grouping, error) {
	switch s {
	case "monthly", "by-month", "month":
		return GroupByMonth, nil
	case "weekly", "by-week", "week":
		return GroupByWeek, nil
	case "period", "by-period":
		return GroupByPeriod, nil
	case "none":
		return GroupNone, nil
	}
	return "", &ValidationError{Field: "grouping", Value: s, Reason: "unknown grouping mode", Err: ErrInvalidGrouping}
}

// MonthNames are the German labels used for month blocks.
var MonthNames = map[time.Month]string{
	time.January: "Januar", time.February: "Februar", time.March: "März",
	time.April: "April", time.May: "Mai", time.June: "Juni",
	time.July: "Juli", time.August: "August", time.September: "September",
	time.October: "Oktober", time.November: "November", time.December: "Dezember",
}

// =============================================================================
// TIME BLOCK
// =============================================================================

// TimeBlock is one grouping unit of a report.
type TimeBlock struct {
	Label   string `json:"label"`
	Start   Date   `json:"start"`
	End     Date   `json:"end"`
	Ordinal int    `json:"ordinal"`
}

// Period returns the block as a Period.
func (b TimeBlock) Period() Period { return Period{Start: b.Start, End: b.End} }

// Contains reports whether d falls into the block.
func (b TimeBlock) Contains(d Date) bool { return b.Period().Contains(d) }

// =============================================================================
// PARTITION
// =============================================================================

// Partition slices period into blocks according to grouping.
func Partition(period Period, grouping Grouping) ([]TimeBlock, error) {
	if period.Start.After(period.End) {
		return nil, &ValidationError{Field: "period", Value: period.String(), Reason: "start_date is after end_date", Err: ErrInvalidPeriod}
	}

	var blocks []TimeBlock
	switch grouping {
	case GroupByMonth:
		cursor := period.Start
		for cursor.BeforeOrEqual(period.End) {
			end := MinDate(EndOfMonth(cursor.Year(), cursor.Month()), period.End)
			blocks = append(blocks, TimeBlock{
				Label: fmt.Sprintf("%s %d", MonthNames[cursor.Month()], cursor.Year()),
				Start: cursor,
				End:   end,
			})
			cursor = end.AddDays(1)
		}

	case GroupByWeek:
		cursor := period.Start
		for cursor.BeforeOrEqual(period.End) {
			end := MinDate(EndOfWeek(cursor), period.End)
			_, week := cursor.ISOWeek()
			blocks = append(blocks, TimeBlock{
				Label: fmt.Sprintf("KW %d (%s - %s)", week, cursor.Time.Format("02.01"), end.Time.Format("02.01.2006")),
				Start: cursor,
				End:   end,
			})
			cursor = end.AddDays(1)
		}

	case GroupByPeriod:
		blocks = []TimeBlock{{
			Label: fmt.Sprintf("%s - %s", period.Start.Time.Format("02.01.2006"), period.End.Time.Format("02.01.2006")),
			Start: period.Start,
			End:   period.End,
		}}

	case GroupNone:
		blocks = []TimeBlock{{Label: "Gesamt", Start: period.Start, End: period.End}}

	default:
		return nil, &ValidationError{Field: "grouping", Value: string(grouping), Reason: "unknown grouping mode", Err: ErrInvalidGrouping}
	}

	for i := range blocks {
		blocks[i].Ordinal = i + 1
	}
	return blocks, nil
}

// BlockIndex finds the block containing d by binary search.
// Returns -1 when d lies outside every block.
func BlockIndex(blocks []TimeBlock, d Date) int {
	i := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].End.AfterOrEqual(d)
	})
	if i < len(blocks) && blocks[i].Contains(d) {
		return i
	}
	return -1
}
