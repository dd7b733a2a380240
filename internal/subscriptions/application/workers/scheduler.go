package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/robfig/cron/v3"
)

// Job is a scheduled unit of work. now is the tick time in the scheduler's location.
type Job func(ctx context.Context, now time.Time) error

// Scheduler runs jobs on cron expressions. A job that is still running
// when its next tick fires is skipped rather than queued.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	clock  func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler in the given location. A nil location means UTC.
func NewScheduler(loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		clock:  func() time.Time { return time.Now().In(loc) },
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a job under a cron spec, e.g. "@every 1m" or "*/5 * * * *".
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(name, job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Start begins running jobs. The jobs' context is cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow runs a job once, synchronously, outside the schedule.
func (s *Scheduler) RunNow(name string, job Job) {
	s.runJob(name, job)
}

func (s *Scheduler) runJob(name string, job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	// Each run gets its own correlation id.
	ctx = observability.WithOperation(observability.NewRequestContext(ctx, ""), name)

	start := time.Now()
	if err := job(ctx, s.clock()); err != nil {
		s.logger.ErrorContext(ctx, "scheduled job failed", "job", name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.DebugContext(ctx, "scheduled job finished", "job", name, "duration", time.Since(start))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
