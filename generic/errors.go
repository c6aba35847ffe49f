/*
errors.go - Centralized error types for the report engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - malformed scope, grouping or numbers (fatal)
  2. Lookup errors - missing runs or sources
  Non-fatal findings (unmatched bookings, ambiguous classification) are NOT
  errors: they are returned as diagnostics by the bonus package.

USAGE:
  if errors.Is(err, generic.ErrInvalidPeriod) {
      // start_date > end_date
  }

SEE ALSO:
  - bonus/diagnostics.go: non-fatal findings
  - api/handlers.go: maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidScope is returned when the requested report scope is malformed.
	ErrInvalidScope = errors.New("invalid report scope")

	// ErrInvalidPeriod is returned when a period is malformed (start after end).
	ErrInvalidPeriod = errors.New("invalid period: start after end")

	// ErrInvalidNumber is returned when a numeric field cannot be parsed.
	ErrInvalidNumber = errors.New("invalid number")

	// ErrInvalidGrouping is returned for an unknown grouping mode.
	ErrInvalidGrouping = errors.New("invalid grouping mode")

	// ErrInvalidReportType is returned for an unknown report type.
	ErrInvalidReportType = errors.New("invalid report type")

	// ErrMissingSource is returned when a required input (CSV or XML) is absent or unreadable.
	ErrMissingSource = errors.New("missing or unreadable source")

	// ErrRunNotFound is returned when a referenced report run doesn't exist.
	ErrRunNotFound = errors.New("report run not found")

	// ErrNoDefaultBudget is returned when no budget file was uploaded and no
	// default budget source is stored.
	ErrNoDefaultBudget = errors.New("no default budget source")

	// ErrDuplicateIdempotencyKey is returned when an adjustment with the same
	// idempotency key was already recorded.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes why an input was rejected.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error // sentinel, for errors.Is
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidScope
	}
	return e.Err
}

// RowError locates a validation failure inside a source file.
type RowError struct {
	Source string // "csv" or "xml"
	Row    int    // 1-based data row
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Source, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScope) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidNumber) ||
		errors.Is(err, ErrInvalidGrouping) ||
		errors.Is(err, ErrInvalidReportType) ||
		errors.Is(err, ErrMissingSource) ||
		errors.Is(err, ErrNoDefaultBudget)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsConflict returns true if the write was rejected as a duplicate.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}
