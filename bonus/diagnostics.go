/*
diagnostics.go - Non-fatal findings returned next to the dataset

PURPOSE:
  The engine never aborts on data quality problems. Unmatched bookings,
  duplicate budget keys, ambiguous classifications and special projects
  without a configured budget are collected here so the caller can show
  them as warnings.

ORDERING:
  Diagnostics are sorted by (Kind, Key, Message) before they leave the
  engine so two runs on the same input produce the same list.

SEE ALSO:
  - generic/errors.go: fatal validation errors
*/
package bonus

import (
	"fmt"
	"sort"
)

// DiagnosticKind names the category of a finding.
type DiagnosticKind string

const (
	DiagUnmatchedBooking    DiagnosticKind = "unmatched_booking"
	DiagFallbackMatch       DiagnosticKind = "fallback_match"
	DiagAmbiguousFallback   DiagnosticKind = "ambiguous_fallback"
	DiagDuplicateBudgetKey  DiagnosticKind = "duplicate_budget_key"
	DiagAmbiguousClass      DiagnosticKind = "ambiguous_classification"
	DiagUnconfiguredSpecial DiagnosticKind = "unconfigured_special_project"
	DiagBookingOutsideScope DiagnosticKind = "booking_outside_scope"
	DiagOverBudget          DiagnosticKind = "over_budget"
)

// Severity of a diagnostic. Nothing in the engine is fatal.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one non-fatal finding.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Severity Severity       `json:"severity"`
	Key      string         `json:"key,omitempty"`
	Message  string         `json:"message"`
}

// Diagnostics collects findings, deduplicating on (kind, key).
type Diagnostics struct {
	items []Diagnostic
	seen  map[string]bool
}

func (d *Diagnostics) add(kind DiagnosticKind, sev Severity, key NormalizedKey, format string, args ...any) {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	id := string(kind) + "|" + key.String()
	if d.seen[id] {
		return
	}
	d.seen[id] = true
	d.items = append(d.items, Diagnostic{
		Kind:     kind,
		Severity: sev,
		Key:      key.String(),
		Message:  fmt.Sprintf(format, args...),
	})
}

func (d *Diagnostics) warn(kind DiagnosticKind, key NormalizedKey, format string, args ...any) {
	d.add(kind, SeverityWarning, key, format, args...)
}

func (d *Diagnostics) info(kind DiagnosticKind, key NormalizedKey, format string, args ...any) {
	d.add(kind, SeverityInfo, key, format, args...)
}

func (d *Diagnostics) merge(other Diagnostics) {
	for _, item := range other.items {
		id := string(item.Kind) + "|" + item.Key
		if d.seen == nil {
			d.seen = make(map[string]bool)
		}
		if d.seen[id] {
			continue
		}
		d.seen[id] = true
		d.items = append(d.items, item)
	}
}

// List returns the findings in deterministic order.
func (d *Diagnostics) List() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Len returns the number of collected findings.
func (d *Diagnostics) Len() int { return len(d.items) }
