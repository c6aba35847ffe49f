// Package memory provides an in-memory report.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Brottuetchen/Quartalsreport/generic"
	"github.com/Brottuetchen/Quartalsreport/report"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps everything in maps guarded by one RWMutex. Stored runs share
// their slices with the caller and must be treated as read-only.
type Store struct {
	mu          sync.RWMutex
	runs        map[string]report.Run
	adjustments map[string][]report.Adjustment // by run ID, append order
	idempotency map[string]bool
	budget      *report.BudgetFile
}

var _ report.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		runs:        make(map[string]report.Run),
		adjustments: make(map[string][]report.Adjustment),
		idempotency: make(map[string]bool),
	}
}

func (m *Store) SaveRun(_ context.Context, run report.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Store) GetRun(_ context.Context, id string) (report.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return report.Run{}, generic.ErrRunNotFound
	}
	return run, nil
}

func (m *Store) ListRuns(_ context.Context, limit int) ([]report.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]report.RunSummary, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, run := range m.runs {
		if !run.CreatedAt.Before(cutoff) {
			continue
		}
		for _, adj := range m.adjustments[id] {
			delete(m.idempotency, adj.IdempotencyKey)
		}
		delete(m.adjustments, id)
		delete(m.runs, id)
		n++
	}
	return n, nil
}

// AppendAdjustment adds an adjustment. Append-only.
func (m *Store) AppendAdjustment(_ context.Context, adj report.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[adj.RunID]; !ok {
		return generic.ErrRunNotFound
	}
	if adj.IdempotencyKey != "" {
		if m.idempotency[adj.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		m.idempotency[adj.IdempotencyKey] = true
	}
	m.adjustments[adj.RunID] = append(m.adjustments[adj.RunID], adj)
	return nil
}

func (m *Store) Adjustments(_ context.Context, runID string) ([]report.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]report.Adjustment, len(m.adjustments[runID]))
	copy(result, m.adjustments[runID])
	return result, nil
}

func (m *Store) AdjustmentExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Store) SaveBudgetFile(_ context.Context, file report.BudgetFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file.Data = append([]byte(nil), file.Data...)
	m.budget = &file
	return nil
}

func (m *Store) BudgetFile(_ context.Context) (report.BudgetFile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.budget == nil {
		return report.BudgetFile{}, false, nil
	}
	return *m.budget, true, nil
}
