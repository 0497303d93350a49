package worker

import (
	"context"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/pkg/errors"
)

// Scheduler runs a DetectionJob every configured interval. Runs never
// overlap: a tick that arrives while a run is active is rescheduled.
type Scheduler struct {
	job    *DetectionJob
	logger *logrus.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
}

func NewScheduler(job *DetectionJob, logger *logrus.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "scheduler requires a job")
	}
	if job.config.Interval <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "worker.interval must be positive")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{job: job, logger: logger}, nil
}

// Start schedules the job and runs it once immediately. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "Failed to create scheduler")
	}

	runCtx, cancel := context.WithCancel(ctx)
	_, err = sched.NewJob(
		gocron.DurationJob(s.job.config.Interval),
		gocron.NewTask(func() {
			if _, err := s.job.RunOnce(runCtx); err != nil {
				s.logger.WithError(err).Debug("Scheduled detection run failed")
			}
		}),
		gocron.WithName(JobType),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidConfig, "Failed to schedule detection job")
	}

	sched.Start()
	s.scheduler = sched
	s.cancel = cancel

	s.logger.WithFields(logrus.Fields{
		"interval": s.job.config.Interval.String(),
		"lookback": s.job.config.Lookback.String(),
	}).Info("Detection scheduler started")
	return nil
}

// Stop cancels the active run and waits for it to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return nil
	}

	s.cancel()
	err := s.scheduler.Shutdown()
	s.scheduler = nil

	s.logger.WithFields(logrus.Fields{
		"completed_runs": s.job.CompletedRuns(),
		"failed_runs":    s.job.FailedRuns(),
	}).Info("Detection scheduler stopped")
	return err
}
