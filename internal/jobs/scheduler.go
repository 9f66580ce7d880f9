// Package jobs runs background maintenance on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/robfig/cron/v3"
)

const (
	logRetentionSchedule = "@daily"
	jobTimeout           = 5 * time.Minute
)

// Reconciler settles stale pending payments.
type Reconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (services.ReconcileReport, error)
}

// LogPurger deletes persisted logs older than cutoff.
type LogPurger func(ctx context.Context, cutoff time.Time) (int64, error)

type Options struct {
	ReconcileSchedule string
	ReconcileAfter    time.Duration
	LogRetentionDays  int
}

type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	purge      LogPurger
	opts       Options
	now        func() time.Time
}

// NewScheduler registers the jobs; it fails on an unparsable schedule.
func NewScheduler(opts Options, reconciler Reconciler, purge LogPurger) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		reconciler: reconciler,
		purge:      purge,
		opts:       opts,
		now:        time.Now,
	}

	if _, err := s.cron.AddFunc(opts.ReconcileSchedule, s.reconcile); err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", opts.ReconcileSchedule, err)
	}
	if opts.LogRetentionDays > 0 && purge != nil {
		if _, err := s.cron.AddFunc(logRetentionSchedule, s.purgeLogs); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("job scheduler started", "reconcile_schedule", s.opts.ReconcileSchedule)
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("job scheduler stopped")
	case <-ctx.Done():
		slog.Warn("job scheduler stop timed out")
	}
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := s.reconciler.ReconcilePending(ctx, s.opts.ReconcileAfter)
	if err != nil {
		slog.Error("payment reconciliation failed", "action", "reconcile_payments", "error", err.Error())
		return
	}
	if report.Checked > 0 {
		slog.Info("payment reconciliation finished",
			"checked", report.Checked,
			"completed", report.Completed,
			"cancelled", report.Cancelled,
			"errors", report.Errors,
		)
	}
}

func (s *Scheduler) purgeLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := s.now().AddDate(0, 0, -s.opts.LogRetentionDays)
	deleted, err := s.purge(ctx, cutoff)
	if err != nil {
		slog.Error("log cleanup failed", "action", "purge_logs", "error", err.Error())
		return
	}
	if deleted > 0 {
		slog.Info("log cleanup completed", "deleted", deleted)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
