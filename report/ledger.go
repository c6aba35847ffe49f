package report

import (
	"context"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// ADJUSTMENT LOG - Append-only, replayed on read
// =============================================================================

// AdjustmentLog is the source of truth for manual bonus corrections.
//
// INVARIANTS:
//   - Append-only: no update, no delete of a single adjustment.
//   - Idempotent: the same idempotency key is recorded once.
//   - The adjusted value of an entry is always replayed from the log.
type AdjustmentLog struct {
	Store AdjustmentStore
}

// NewAdjustmentLog wraps a store.
func NewAdjustmentLog(store AdjustmentStore) *AdjustmentLog {
	return &AdjustmentLog{Store: store}
}

// Append records an adjustment. Fails if the idempotency key exists.
func (l *AdjustmentLog) Append(ctx context.Context, adj Adjustment) error {
	if adj.IdempotencyKey != "" {
		exists, err := l.Store.AdjustmentExists(ctx, adj.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return generic.ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendAdjustment(ctx, adj)
}

// Adjustments returns the log of a run.
func (l *AdjustmentLog) Adjustments(ctx context.Context, runID string) ([]Adjustment, error) {
	return l.Store.Adjustments(ctx, runID)
}

// Deltas replays the log of a run into the summed delta per entry.
func (l *AdjustmentLog) Deltas(ctx context.Context, runID string) (map[string]generic.Hours, error) {
	adjs, err := l.Store.Adjustments(ctx, runID)
	if err != nil {
		return nil, err
	}
	return sumDeltas(adjs), nil
}

func sumDeltas(adjs []Adjustment) map[string]generic.Hours {
	deltas := make(map[string]generic.Hours)
	for _, a := range adjs {
		deltas[a.EntryID] = deltas[a.EntryID].Add(a.Delta)
	}
	return deltas
}
