package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"trend-digest/shared/logging"
	"trend-digest/shared/monitoring"
)

// ErrBusy is returned when another pipeline operation holds the run lock.
var ErrBusy = errors.New("another run is in progress")

// Report is the summary a pipeline operation returns.
type Report interface {
	GetSummary() string
	ErrorCount() int
}

// Job is a named operation fired on a cron schedule (seconds field first).
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) (Report, error)
}

// Agent defines the interface that all agents must implement
type Agent interface {
	Name() string
	Initialize(ctx context.Context) error
	Jobs() []Job
}

// Scheduler runs an agent's jobs on their schedules. All jobs, and any
// manual trigger, share one run lock so operations never overlap.
type Scheduler struct {
	agent   Agent
	monitor *monitoring.Monitor
	cron    *cron.Cron
	log     *zap.Logger

	runLock sync.Mutex
}

func New(agent Agent, monitor *monitoring.Monitor, log *zap.Logger) *Scheduler {
	log = logging.OrNop(log)
	cronLog := cronLogger{log.Sugar()}

	return &Scheduler{
		agent:   agent,
		monitor: monitor,
		log:     log,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// Start registers every job and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.agent.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	for _, job := range s.agent.Jobs() {
		if _, err := s.cron.AddFunc(job.Schedule, func() {
			if _, err := s.Trigger(ctx, job.Name); err != nil {
				if errors.Is(err, ErrBusy) {
					s.log.Info("skipping scheduled run", zap.String("job", job.Name), zap.Error(err))
					return
				}
				s.log.Error("scheduled run failed", zap.String("job", job.Name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
		}
		s.log.Info("job scheduled",
			zap.String("agent", s.agent.Name()),
			zap.String("job", job.Name),
			zap.String("schedule", job.Schedule),
		)
	}

	s.cron.Start()

	<-ctx.Done()
	s.log.Info("scheduler stopping, waiting for running jobs", zap.String("agent", s.agent.Name()))
	<-s.cron.Stop().Done()
	return ctx.Err()
}

// Trigger runs the named job now, outside its schedule.
func (s *Scheduler) Trigger(ctx context.Context, name string) (Report, error) {
	for _, job := range s.agent.Jobs() {
		if job.Name == name {
			return s.Exclusive(ctx, job.Name, job.Run)
		}
	}
	return nil, fmt.Errorf("unknown job %q", name)
}

// Exclusive runs fn under the run lock and records the outcome with the
// monitor. It returns ErrBusy without waiting when the lock is held.
func (s *Scheduler) Exclusive(ctx context.Context, operation string, fn func(ctx context.Context) (Report, error)) (Report, error) {
	if !s.runLock.TryLock() {
		return nil, ErrBusy
	}
	defer s.runLock.Unlock()

	s.log.Info("starting run", zap.String("agent", s.agent.Name()), zap.String("operation", operation))
	start := time.Now()

	report, err := fn(ctx)
	duration := time.Since(start)

	switch {
	case err != nil:
		s.monitor.RecordCriticalFailure(operation, err, duration)
		return nil, err
	case report.ErrorCount() > 0:
		s.monitor.RecordPartialFailure(operation, report.GetSummary(), report.ErrorCount(), duration)
	default:
		s.monitor.RecordSuccess(operation, report.GetSummary(), duration)
	}

	return report, nil
}

// RunOnce runs the named jobs once, or every job when names is empty, in
// declaration order. A failed job does not stop the ones after it.
func (s *Scheduler) RunOnce(ctx context.Context, names ...string) error {
	if err := s.agent.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	var errs []error
	for _, job := range s.agent.Jobs() {
		if len(names) > 0 && !slices.Contains(names, job.Name) {
			continue
		}
		if _, err := s.Exclusive(ctx, job.Name, job.Run); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
