package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/factory"
	"github.com/Brottuetchen/Quartalsreport/generic"
	"github.com/Brottuetchen/Quartalsreport/ingest"
)

// Log field names shared by the service and the HTTP layer.
const (
	FieldComponent   = "component"
	FieldRunID       = "run_id"
	FieldReportType  = "report_type"
	FieldGrouping    = "grouping"
	FieldDiagnostics = "diagnostics"
	FieldEntries     = "entries"
	FieldError       = "error"
)

// =============================================================================
// SERVICE
// =============================================================================

// Options tune a Service. Zero values are usable.
type Options struct {
	// Retention is how long runs are kept before Sweep removes them.
	// Zero keeps runs forever.
	Retention time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service ties ingest, engine and persistence together.
type Service struct {
	engine      *bonus.Engine
	store       Store
	adjustments *AdjustmentLog
	logger      *slog.Logger
	retention   time.Duration
	now         func() time.Time

	adjustMu sync.Mutex // serializes the read-check-append of AddAdjustment
}

// NewService creates a service. A nil logger discards log output.
func NewService(engine *bonus.Engine, store Store, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		engine:      engine,
		store:       store,
		adjustments: NewAdjustmentLog(store),
		logger:      logger.With(FieldComponent, "report"),
		retention:   opts.Retention,
		now:         now,
	}
}

// Engine returns the engine the service runs.
func (s *Service) Engine() *bonus.Engine { return s.engine }

// =============================================================================
// GENERATE
// =============================================================================

// GenerateRequest is one report request with its source files.
type GenerateRequest struct {
	Params factory.ReportParams

	// Budget is the budget CSV. Nil falls back to the default budget source.
	Budget     io.Reader
	BudgetName string

	// Bookings is the timesheet XML. Required.
	Bookings    io.Reader
	BookingName string
}

// Generate parses both sources concurrently, runs the engine and stores the run.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (Run, error) {
	if req.Bookings == nil {
		return Run{}, fmt.Errorf("booking xml: %w", generic.ErrMissingSource)
	}

	var (
		budgets  []bonus.BudgetRecord
		bookings []bonus.Booking
		origin   = BudgetUploaded
		name     = SafeFileName(req.BudgetName, "budget.csv")
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		src := req.Budget
		if src == nil {
			file, err := s.DefaultBudget(gctx)
			if err != nil {
				return err
			}
			src, origin, name = bytes.NewReader(file.Data), BudgetDefault, file.Name
		}
		var err error
		budgets, err = ingest.ReadBudgetCSV(src)
		return err
	})
	g.Go(func() error {
		var err error
		bookings, err = ingest.ReadBookingsXML(req.Bookings)
		return err
	})
	if err := g.Wait(); err != nil {
		return Run{}, err
	}

	ds, err := s.engine.Run(req.Params.Input(budgets, bookings))
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:           uuid.NewString(),
		CreatedAt:    s.now().UTC(),
		Params:       req.Params,
		BudgetOrigin: origin,
		BudgetName:   name,
		BookingName:  SafeFileName(req.BookingName, "timesheets.xml"),
		Dataset:      ds,
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return Run{}, fmt.Errorf("save run: %w", err)
	}

	s.logger.Info("report generated",
		FieldRunID, run.ID,
		FieldReportType, ds.ReportType,
		FieldGrouping, ds.Grouping,
		FieldEntries, len(ds.Ledger),
		FieldDiagnostics, len(ds.Diagnostics),
		"budget_origin", origin,
	)
	for _, d := range ds.Diagnostics {
		if d.Severity == bonus.SeverityWarning {
			s.logger.Warn(d.Message, FieldRunID, run.ID, "kind", d.Kind, "key", d.Key)
		}
	}
	return run, nil
}

// Get returns a stored run.
func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	return s.store.GetRun(ctx, id)
}

// List returns stored runs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.store.ListRuns(ctx, limit)
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// AdjustmentRequest asks for a manual change of one entry's eligible hours.
type AdjustmentRequest struct {
	RunID          string
	EntryID        string
	Delta          generic.Hours
	Reason         string
	Actor          string
	IdempotencyKey string
}

// AddAdjustment appends an adjustment to a run's log. The entry must exist
// and its adjusted eligible hours must not become negative.
func (s *Service) AddAdjustment(ctx context.Context, req AdjustmentRequest) (Adjustment, error) {
	if req.Delta.IsZero() {
		return Adjustment{}, &generic.ValidationError{Field: "delta_hours", Reason: "must not be zero", Err: generic.ErrInvalidNumber}
	}

	s.adjustMu.Lock()
	defer s.adjustMu.Unlock()

	run, err := s.store.GetRun(ctx, req.RunID)
	if err != nil {
		return Adjustment{}, err
	}
	entry, ok := run.entry(req.EntryID)
	if !ok {
		return Adjustment{}, &generic.ValidationError{Field: "entry_id", Value: req.EntryID, Reason: "not in this run"}
	}

	deltas, err := s.adjustments.Deltas(ctx, run.ID)
	if err != nil {
		return Adjustment{}, err
	}
	adjusted := entry.BaseEligible.Add(deltas[entry.ID]).Add(req.Delta)
	if adjusted.IsNegative() {
		return Adjustment{}, &generic.ValidationError{
			Field: "delta_hours", Value: req.Delta.String(),
			Reason: fmt.Sprintf("adjusted eligible hours would be %s", adjusted), Err: generic.ErrInvalidNumber,
		}
	}

	adj := Adjustment{
		ID:             uuid.NewString(),
		RunID:          run.ID,
		EntryID:        entry.ID,
		Delta:          req.Delta,
		Reason:         strings.TrimSpace(req.Reason),
		Actor:          strings.TrimSpace(req.Actor),
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.adjustments.Append(ctx, adj); err != nil {
		return Adjustment{}, err
	}
	s.logger.Info("adjustment recorded", FieldRunID, run.ID, "entry_id", entry.ID, "delta", adj.Delta.String())
	return adj, nil
}

// Adjusted returns the run with its adjustment log replayed over the ledger.
func (s *Service) Adjusted(ctx context.Context, runID string) (AdjustedReport, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return AdjustedReport{}, err
	}
	adjs, err := s.adjustments.Adjustments(ctx, run.ID)
	if err != nil {
		return AdjustedReport{}, err
	}
	return BuildAdjusted(run, adjs), nil
}

// BuildAdjusted applies adjustments to a run. The run itself is not modified.
func BuildAdjusted(run Run, adjs []Adjustment) AdjustedReport {
	deltas := sumDeltas(adjs)
	ds := run.Dataset

	entries := make([]AdjustedEntry, len(ds.Ledger))
	ledger := make([]bonus.EligibilityEntry, len(ds.Ledger))
	for i, e := range ds.Ledger {
		delta := generic.ZeroHours().Add(deltas[e.ID])
		adjusted := e.BaseEligible.Add(delta)
		entries[i] = AdjustedEntry{EligibilityEntry: e, AdjustmentHours: delta, AdjustedHours: adjusted}

		ledger[i] = e.AddEligible(delta)
	}

	if adjs == nil {
		adjs = []Adjustment{}
	}
	return AdjustedReport{
		Run:     run.Summary(),
		Entries: entries,
		Aggregates: bonus.Aggregate(ledger, ds.Blocks, bonus.AggregateOptions{
			Grouping:        ds.Grouping,
			IncludeSummary:  run.Params.Toggles.IncludeSummary,
			IncludeQuarters: run.Params.Toggles.IncludeQuarterlySummary,
		}),
		Adjustments: adjs,
	}
}

// =============================================================================
// DEFAULT BUDGET SOURCE
// =============================================================================

// SetDefaultBudget validates a budget CSV and stores it as the default source.
func (s *Service) SetDefaultBudget(ctx context.Context, name string, data []byte) (BudgetFile, error) {
	records, err := ingest.ReadBudgetCSV(bytes.NewReader(data))
	if err != nil {
		return BudgetFile{}, err
	}
	file := BudgetFile{
		Name:       strings.TrimSpace(name),
		Data:       data,
		Records:    len(records),
		UploadedAt: s.now().UTC(),
	}
	if file.Name == "" {
		file.Name = "budget.csv"
	}
	if err := s.store.SaveBudgetFile(ctx, file); err != nil {
		return BudgetFile{}, fmt.Errorf("save budget file: %w", err)
	}
	s.logger.Info("default budget replaced", "name", file.Name, "records", file.Records)
	return file, nil
}

// DefaultBudget returns the stored default budget source or generic.ErrNoDefaultBudget.
func (s *Service) DefaultBudget(ctx context.Context) (BudgetFile, error) {
	file, ok, err := s.store.BudgetFile(ctx)
	if err != nil {
		return BudgetFile{}, err
	}
	if !ok {
		return BudgetFile{}, generic.ErrNoDefaultBudget
	}
	return file, nil
}

// =============================================================================
// RETENTION
// =============================================================================

// Sweep removes runs older than the retention window.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep runs: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired runs removed", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
