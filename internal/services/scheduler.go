package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/config"
	"github.com/Lllllllleong/recordarchiver/internal/models"
	"github.com/robfig/cron/v3"
)

// TriggerSchedule is the trigger source reported for scheduled runs.
const TriggerSchedule = "scheduler"

// Job is one unit of scheduled work.
type Job interface {
	Process(ctx context.Context, trigger models.RunTrigger) (*models.RunSummary, error)
}

// Scheduler starts runs of a Job on a cron schedule. A tick that fires while
// a run is still in progress is skipped.
type Scheduler struct {
	job        Job
	schedule   string
	runOnStart bool

	cron    *cron.Cron
	cronLog cronLogger
	chain   cron.Chain
	wrapped cron.Job
	starts  sync.WaitGroup
	stopped chan struct{}
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler for job.
func NewScheduler(job Job, cfg config.ScheduleConfig) *Scheduler {
	logger := slog.Default().With("component", "services.scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		job:        job,
		schedule:   cfg.Cron,
		runOnStart: cfg.RunOnStart,
		cron:       cron.New(cron.WithLogger(cl)),
		cronLog:    cl,
		chain:      cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		logger:     logger,
	}
}

// Start validates the schedule, registers the job and starts the cron loop.
// When run-on-start is enabled the first run begins immediately in the
// background. Runs receive ctx; cancelling it stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	sched, err := cron.ParseStandard(s.schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	// Each start gets a fresh cron instance holding the single guarded entry.
	s.cron = cron.New(cron.WithLogger(s.cronLog))
	s.wrapped = s.chain.Then(cron.FuncJob(func() { s.runJob(ctx) }))
	s.cron.Schedule(sched, s.wrapped)
	s.cron.Start()
	s.running = true
	s.stopped = make(chan struct{})

	s.logger.Info("Archive scheduler started.", "schedule", s.schedule, "runOnStart", s.runOnStart)

	if s.runOnStart {
		s.starts.Add(1)
		go func() {
			defer s.starts.Done()
			s.wrapped.Run()
		}()
	}

	go func(stopped <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}(s.stopped)
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled and every
// in-flight run has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Scheduler) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// Process logs its own outcome.
	if _, err := s.job.Process(ctx, models.RunTrigger{Source: TriggerSchedule}); err != nil {
		s.logger.Debug("Scheduled run returned an error.", "error", err)
	}
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.starts.Wait()
	close(s.stopped)
	s.running = false
	s.logger.Info("Archive scheduler stopped.")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run time, or nil before Start.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

// Info surfaces skipped ticks; cron's other informational messages are debug noise.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.logger.Info("Previous run still in progress, skipping tick.")
		return
	}
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
