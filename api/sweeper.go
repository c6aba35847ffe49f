/*
sweeper.go - Periodic removal of expired report runs

PURPOSE:
  Stored report runs carry full datasets and are only needed until the
  reviewers have downloaded and adjusted them. The sweeper deletes runs
  older than the configured retention window, together with their
  adjustment logs.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Sweeps once immediately on start
  - The retention window itself lives in report.Service; a service without
    retention makes every sweep a no-op

USAGE:
  sweeper := NewRetentionSweeper(svc, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - report/service.go: Sweep
*/
package api

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Brottuetchen/Quartalsreport/report"
)

// Sweeper is the part of report.Service the sweeper needs.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RetentionSweeper periodically calls Sweep.
type RetentionSweeper struct {
	Service  Sweeper
	Logger   *slog.Logger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetentionSweeper creates a sweeper with a one hour interval.
func NewRetentionSweeper(svc Sweeper, logger *slog.Logger) *RetentionSweeper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RetentionSweeper{
		Service:  svc,
		Logger:   logger.With(report.FieldComponent, "sweeper"),
		Interval: time.Hour,
		Enabled:  true,
	}
}

// Start begins the sweeper. Calling Start twice is a no-op.
func (rs *RetentionSweeper) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.Interval <= 0 {
		rs.Logger.Info("sweeper disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("sweeper started", "interval", rs.Interval.String())
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (rs *RetentionSweeper) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("sweeper stopped")
	}
}

func (rs *RetentionSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	rs.RunNow()

	for {
		select {
		case <-ticker.C:
			rs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow sweeps immediately and returns the number of removed runs.
func (rs *RetentionSweeper) RunNow() int {
	n, err := rs.Service.Sweep(context.Background())
	if err != nil {
		rs.Logger.Error("sweep failed", report.FieldError, err)
		return 0
	}
	return n
}
