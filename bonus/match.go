/*
match.go - Two-pass join between budget records and bookings

PURPOSE:
  Joins the budget ledger and the booking ledger on NormalizedKey. The join
  is heuristic, so every result carries its confidence:

    MatchExact:    full normalized (project, milestone) keys are equal
    MatchFallback: only the first token of each side matches
    MatchNone:     no budget record; hours count for raw totals only

DUPLICATES:
  If several budget records share a key, the last one loaded wins and a
  duplicate_budget_key diagnostic is emitted. The same rule applies to the
  fallback index (ambiguous_fallback).

SEE ALSO:
  - normalize.go: key construction
  - classify.go: consumes MatchGroups
*/
package bonus

import "sort"

// MatchGroup is all bookings sharing one full normalized key, joined to at
// most one budget record.
type MatchGroup struct {
	Key       NormalizedKey
	Kind      MatchKind
	Record    *BudgetRecord // nil when Kind == MatchNone
	BudgetKey NormalizedKey // key of Record on the budget side
	Bookings  []Booking
}

// MatchResult is the output of Match.
type MatchResult struct {
	// Budgets is the exact-key index of budget records (last loaded wins).
	Budgets map[NormalizedKey]BudgetRecord
	// BudgetOrder lists the budget keys in first-seen order.
	BudgetOrder []NormalizedKey
	// Groups holds one entry per distinct booking key, sorted by key.
	Groups      []MatchGroup
	Diagnostics Diagnostics
}

// Match joins records and bookings. Neither input slice is modified.
func Match(records []BudgetRecord, bookings []Booking) MatchResult {
	result := MatchResult{Budgets: make(map[NormalizedKey]BudgetRecord)}

	// Pass 0: index budget records by full key and by fallback key.
	fallback := make(map[NormalizedKey]NormalizedKey)
	fallbackCount := make(map[NormalizedKey]map[NormalizedKey]bool)
	for _, rec := range records {
		key := Normalize(rec.ProjectRaw, rec.MilestoneRaw)
		if _, dup := result.Budgets[key]; dup {
			result.Diagnostics.warn(DiagDuplicateBudgetKey, key,
				"budget key %q appears more than once, the last row wins", key.String())
		} else {
			result.BudgetOrder = append(result.BudgetOrder, key)
		}
		result.Budgets[key] = rec

		fb := key.FallbackKey()
		fallback[fb] = key
		if fallbackCount[fb] == nil {
			fallbackCount[fb] = make(map[NormalizedKey]bool)
		}
		fallbackCount[fb][key] = true
	}

	// Group bookings by their own full key.
	grouped := make(map[NormalizedKey][]Booking)
	for _, b := range bookings {
		key := Normalize(b.ProjectRaw, b.MilestoneRaw)
		grouped[key] = append(grouped[key], b)
	}

	keys := make([]NormalizedKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, key := range keys {
		group := MatchGroup{Key: key, Kind: MatchNone, Bookings: grouped[key]}

		// Pass 1: exact.
		if rec, ok := result.Budgets[key]; ok {
			rec := rec
			group.Kind = MatchExact
			group.Record = &rec
			group.BudgetKey = key
			result.Groups = append(result.Groups, group)
			continue
		}

		// Pass 2: first token on both sides.
		fb := key.FallbackKey()
		if budgetKey, ok := fallback[fb]; ok {
			rec := result.Budgets[budgetKey]
			group.Kind = MatchFallback
			group.Record = &rec
			group.BudgetKey = budgetKey
			result.Diagnostics.info(DiagFallbackMatch, key,
				"booking key %q matched budget key %q by first token", key.String(), budgetKey.String())
			if len(fallbackCount[fb]) > 1 {
				result.Diagnostics.warn(DiagAmbiguousFallback, key,
					"%d budget keys share first tokens %q, using %q", len(fallbackCount[fb]), fb.String(), budgetKey.String())
			}
			result.Groups = append(result.Groups, group)
			continue
		}

		result.Diagnostics.warn(DiagUnmatchedBooking, key,
			"no budget record for %q, hours count only towards raw totals", key.String())
		result.Groups = append(result.Groups, group)
	}

	return result
}
