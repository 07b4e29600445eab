// Package jobs runs the ledger's background work on cron schedules: marking
// past-due invoices overdue and reconciling balances with their history.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ahakem/bluemind-members-sub000/internal/ledger"
)

// OverdueSweeper marks past-due invoices overdue.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// Reconciler compares stored balances with the transaction history.
type Reconciler interface {
	Reconcile(ctx context.Context) (ledger.Report, error)
}

// Runner executes individual jobs.
type Runner struct {
	invoices OverdueSweeper
	ledger   Reconciler
	logger   *slog.Logger
	timeout  time.Duration
}

// NewRunner builds a job runner. Each job run is bounded by timeout.
func NewRunner(invoices OverdueSweeper, reconciler Reconciler, logger *slog.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{invoices: invoices, ledger: reconciler, logger: logger, timeout: timeout}
}

// SweepOverdueInvoices marks every past-due unpaid invoice overdue.
func (r *Runner) SweepOverdueInvoices(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	marked, err := r.invoices.SweepOverdue(ctx)
	if err != nil {
		r.logger.Error("overdue sweep failed", slog.Int("marked", marked), slog.Any("error", err))
		return fmt.Errorf("sweep overdue invoices: %w", err)
	}
	r.logger.Info("overdue sweep finished", slog.Int("marked", marked), slog.Duration("duration", time.Since(start)))
	return nil
}

// ReconcileLedger produces a reconciliation report. Differences are logged
// by the ledger service; nothing is corrected.
func (r *Runner) ReconcileLedger(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	report, err := r.ledger.Reconcile(ctx)
	if err != nil {
		r.logger.Error("reconciliation failed", slog.Any("error", err))
		return fmt.Errorf("reconcile ledger: %w", err)
	}
	r.logger.Info("reconciliation finished",
		slog.Bool("balanced", report.Balanced()),
		slog.Int("member_discrepancies", len(report.Members)),
	)
	return nil
}

// RunAll runs every job once, in order, and joins their errors.
func (r *Runner) RunAll(ctx context.Context) error {
	return errors.Join(r.SweepOverdueInvoices(ctx), r.ReconcileLedger(ctx))
}

// Schedules holds standard five-field cron expressions. An empty expression
// leaves the job unscheduled.
type Schedules struct {
	OverdueSweep string
	Reconcile    string
}

// Scheduler triggers Runner jobs on their schedules.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewScheduler registers the scheduled jobs. A run is skipped while the
// previous one is still going. Panics are recovered inside that guard so a
// panicking run still releases it.
func NewScheduler(runner *Runner, schedules Schedules, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, ctx: ctx, cancel: cancel, logger: logger}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"overdue_sweep", schedules.OverdueSweep, runner.SweepOverdueInvoices},
		{"reconcile", schedules.Reconcile, runner.ReconcileLedger},
	}
	for _, job := range jobs {
		if job.spec == "" {
			logger.Info("job disabled", slog.String("job", job.name))
			continue
		}
		run := job.run
		// Runner logs each failure with its context; the scheduler has
		// nothing further to do with the error.
		if _, err := c.AddFunc(job.spec, func() { _ = run(s.ctx) }); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
		logger.Info("job scheduled", slog.String("job", job.name), slog.String("schedule", job.spec))
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// Entries reports the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
