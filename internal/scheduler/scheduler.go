package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Runner is the pipeline entry point the scheduler triggers
type Runner interface {
	Run(ctx context.Context) (domain.RunReport, error)
}

// Scheduler triggers pipeline runs on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	schedule string
	logger   *logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	lastRun time.Time
	lastErr error
}

// New creates a scheduler for a standard five-field cron expression or a
// descriptor such as @daily
func New(schedule string, runner Runner, log *logger.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("%w: cron schedule %q: %v", domain.ErrInvalidConfig, schedule, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Scheduler{
		cron:     cron.New(),
		runner:   runner,
		schedule: schedule,
		logger:   log.WithField("component", "scheduler"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cron.AddFunc(schedule, s.runJob); err != nil {
		return nil, fmt.Errorf("failed to schedule pipeline run: %w", err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.WithField("schedule", s.schedule).Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels a run in progress and waits for it to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// Next returns the next activation time, zero if the scheduler is not running
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// LastRun returns when the scheduler last triggered a run and its error
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Scheduler) runJob() {
	start := time.Now()
	s.logger.Info("Scheduled pipeline run started")

	report, err := s.runner.Run(s.ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()

	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		s.logger.Warn("Pipeline already running, skipping scheduled run")
	case err != nil:
		s.logger.WithError(err).WithField("run_id", report.RunID).Error("Scheduled pipeline run failed")
	default:
		s.logger.WithFields(map[string]interface{}{
			"run_id":   report.RunID,
			"duration": time.Since(start).String(),
		}).Info("Scheduled pipeline run completed")
	}
}
