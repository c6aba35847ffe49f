package report

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Persistence of runs, adjustments and the default budget
// =============================================================================

// Store persists report runs.
//
// Runs are written once and never updated. Adjustments are append-only:
// there is no update and no delete for a single adjustment. The only
// removal is DeleteRunsBefore, which drops whole runs together with their
// adjustment log once they fall out of retention.
type Store interface {
	// SaveRun persists a finished run.
	SaveRun(ctx context.Context, run Run) error

	// GetRun returns a run or generic.ErrRunNotFound.
	GetRun(ctx context.Context, id string) (Run, error)

	// ListRuns returns run summaries, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// DeleteRunsBefore removes runs created before cutoff and their
	// adjustments. Returns the number of runs removed.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)

	AdjustmentStore

	// SaveBudgetFile replaces the default budget source.
	SaveBudgetFile(ctx context.Context, file BudgetFile) error

	// BudgetFile returns the default budget source, if one was uploaded.
	BudgetFile(ctx context.Context) (BudgetFile, bool, error)
}

// AdjustmentStore is the append-only part of the Store.
type AdjustmentStore interface {
	// AppendAdjustment persists an adjustment. Returns
	// generic.ErrDuplicateIdempotencyKey if the key exists.
	AppendAdjustment(ctx context.Context, adj Adjustment) error

	// Adjustments returns the adjustments of a run in creation order.
	Adjustments(ctx context.Context, runID string) ([]Adjustment, error)

	// AdjustmentExists checks if an idempotency key was already used.
	AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error)
}
