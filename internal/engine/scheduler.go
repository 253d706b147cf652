package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
)

// Job names recorded in job_runs.
const (
	JobTokenRefresh = "token_refresh"
	JobSyncCycle    = "sync_cycle"
	JobRunCleanup   = "run_cleanup"
)

// JobNames lists every scheduled job.
var JobNames = []string{JobTokenRefresh, JobSyncCycle, JobRunCleanup}

// Job run statuses.
const (
	jobSucceeded = "succeeded"
	jobFailed    = "failed"
)

const staleJobRunAge = 2 * time.Hour

// Sweeper refreshes expiring tokens. *tokens.Refresher implements it.
type Sweeper interface {
	RunSweep(ctx context.Context) (tokens.SweepSummary, error)
}

// CycleRunner runs one sync cycle. *Driver implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleSummary, error)
}

// Cleaner prunes old worker data. *worker.Coordinator implements it.
type Cleaner interface {
	Cleanup(ctx context.Context, runRetention, logRetention time.Duration) (worker.CleanupSummary, error)
}

// ScheduleConfig holds the job intervals and limits.
type ScheduleConfig struct {
	RefreshInterval time.Duration
	SyncInterval    time.Duration
	CleanupInterval time.Duration
	JobTimeout      time.Duration
	RunRetention    time.Duration
	LogRetention    time.Duration
}

// DefaultScheduleConfig returns the default intervals.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		RefreshInterval: 10 * time.Minute,
		SyncInterval:    5 * time.Minute,
		CleanupInterval: time.Hour,
		JobTimeout:      30 * time.Minute,
		RunRetention:    worker.DefaultRunRetention,
		LogRetention:    worker.DefaultLogRetention,
	}
}

// Scheduler runs the token refresh sweep, the sync cycle and cleanup on
// fixed intervals. A job still running when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	store   store.Store
	sweeper Sweeper
	cycle   CycleRunner
	cleaner Cleaner
	cfg     ScheduleConfig
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	refreshEntryID cron.EntryID
	syncEntryID    cron.EntryID
	cleanupEntryID cron.EntryID
}

// NewScheduler creates a Scheduler and registers its jobs.
func NewScheduler(
	s store.Store,
	sweeper Sweeper,
	cycle CycleRunner,
	cleaner Cleaner,
	cfg ScheduleConfig,
	log *slog.Logger,
) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	cl := &cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sched := &Scheduler{
		cron:    c,
		store:   s,
		sweeper: sweeper,
		cycle:   cycle,
		cleaner: cleaner,
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	jobs := []struct {
		name     string
		interval time.Duration
		id       *cron.EntryID
	}{
		{JobTokenRefresh, cfg.RefreshInterval, &sched.refreshEntryID},
		{JobSyncCycle, cfg.SyncInterval, &sched.syncEntryID},
		{JobRunCleanup, cfg.CleanupInterval, &sched.cleanupEntryID},
	}
	for _, j := range jobs {
		if j.interval < time.Second {
			cancel()
			return nil, fmt.Errorf("scheduling %s: interval %s is below one second", j.name, j.interval)
		}
		id, err := c.AddFunc("@every "+j.interval.String(), sched.tick(j.name))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("scheduling %s: %w", j.name, err)
		}
		*j.id = id
	}

	return sched, nil
}

// Start recovers job runs left open by a previous process and begins
// running scheduled jobs.
func (s *Scheduler) Start() {
	s.RecoverStaleJobRuns(s.ctx)
	s.cron.Start()
	s.SyncNextRunTimestamps()
	s.log.Info("scheduler started",
		"refresh_interval", s.cfg.RefreshInterval,
		"sync_interval", s.cfg.SyncInterval,
		"cleanup_interval", s.cfg.CleanupInterval,
	)
}

// Stop cancels running jobs and returns a context that is done once they
// have returned.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	s.cancel()
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// SyncNextRunTimestamps publishes the next fire time of every job.
func (s *Scheduler) SyncNextRunTimestamps() {
	for job, id := range map[string]cron.EntryID{
		JobTokenRefresh: s.refreshEntryID,
		JobSyncCycle:    s.syncEntryID,
		JobRunCleanup:   s.cleanupEntryID,
	} {
		if next := s.cron.Entry(id).Next; !next.IsZero() {
			metrics.SchedulerNextRunTimestamp.WithLabelValues(job).Set(float64(next.Unix()))
		}
	}
}

// RecoverStaleJobRuns marks job runs left running by a crashed process as
// failed.
func (s *Scheduler) RecoverStaleJobRuns(ctx context.Context) {
	n, err := s.store.RecoverStaleJobRuns(ctx, staleJobRunAge)
	if err != nil {
		s.log.Error("recovering stale job runs failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Warn("recovered stale job runs", "count", n)
	}
}

// RunRefreshNow runs one refresh sweep immediately.
func (s *Scheduler) RunRefreshNow(ctx context.Context) (tokens.SweepSummary, error) {
	var sum tokens.SweepSummary
	err := s.runJob(ctx, JobTokenRefresh, s.cfg.JobTimeout, func(ctx context.Context) (int, error) {
		var err error
		sum, err = s.sweeper.RunSweep(ctx)
		return sum.Refreshed, err
	})
	return sum, err
}

// RunSyncNow runs one sync cycle immediately.
func (s *Scheduler) RunSyncNow(ctx context.Context) (CycleSummary, error) {
	var sum CycleSummary
	err := s.runJob(ctx, JobSyncCycle, s.cfg.JobTimeout, func(ctx context.Context) (int, error) {
		var err error
		sum, err = s.cycle.RunCycle(ctx)
		return sum.Succeeded, err
	})
	return sum, err
}

// RunCleanupNow runs cleanup immediately.
func (s *Scheduler) RunCleanupNow(ctx context.Context) (worker.CleanupSummary, error) {
	var sum worker.CleanupSummary
	err := s.runJob(ctx, JobRunCleanup, s.cfg.JobTimeout, func(ctx context.Context) (int, error) {
		var err error
		sum, err = s.cleaner.Cleanup(ctx, s.cfg.RunRetention, s.cfg.LogRetention)
		return sum.Total(), err
	})
	return sum, err
}

func (s *Scheduler) tick(job string) func() {
	return func() {
		var err error
		switch job {
		case JobTokenRefresh:
			_, err = s.RunRefreshNow(s.ctx)
		case JobSyncCycle:
			_, err = s.RunSyncNow(s.ctx)
		case JobRunCleanup:
			_, err = s.RunCleanupNow(s.ctx)
		}
		if err != nil {
			s.log.Error("scheduled job failed", "job", job, "error", err)
		}
		s.SyncNextRunTimestamps()
	}
}

// runJob executes fn under a timeout and records it in job_runs. A failure
// to record never prevents the job from running.
func (s *Scheduler) runJob(
	ctx context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) (int, error),
) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runID, err := s.store.InsertJobRun(ctx, name)
	if err != nil {
		s.log.Warn("recording job start failed", "job", name, "error", err)
	}

	start := time.Now()
	rows, jobErr := fn(ctx)

	status, errText := jobSucceeded, ""
	if jobErr != nil {
		status, errText = jobFailed, jobErr.Error()
		metrics.SchedulerJobFailuresTotal.WithLabelValues(name).Inc()
	}

	if runID != "" {
		if err := s.store.CompleteJobRun(
			context.WithoutCancel(ctx), runID, status, errText, rows,
		); err != nil {
			s.log.Warn("recording job completion failed", "job", name, "error", err)
		}
	}

	s.log.Debug("job finished", "job", name, "status", status, "duration", time.Since(start))
	return jobErr
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
