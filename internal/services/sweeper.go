package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mroshb/ludus_arena/pkg/logger"
)

// Sweeper runs the periodic acceptance jobs: expiring matches past their
// deadline and cancelling half-created ones.
type Sweeper struct {
	acceptance *AcceptanceService
	scheduler  gocron.Scheduler

	sweepInterval     time.Duration
	reconcileInterval time.Duration
	reconcileGrace    time.Duration
}

func NewSweeper(acceptance *AcceptanceService, sweepInterval, reconcileInterval, reconcileGrace time.Duration, opts ...gocron.SchedulerOption) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		acceptance:        acceptance,
		scheduler:         scheduler,
		sweepInterval:     sweepInterval,
		reconcileInterval: reconcileInterval,
		reconcileGrace:    reconcileGrace,
	}, nil
}

// Start registers both jobs and starts the scheduler. Each job runs in
// singleton mode so a slow pass is never overlapped by the next one.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.sweepInterval),
		gocron.NewTask(s.sweepOnce),
		gocron.WithName("acceptance-timeout-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	_, err = s.scheduler.NewJob(
		gocron.DurationJob(s.reconcileInterval),
		gocron.NewTask(s.reconcileOnce),
		gocron.WithName("orphan-match-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	logger.Info("Sweeper started", "sweep_interval", s.sweepInterval.String(), "reconcile_interval", s.reconcileInterval.String())
	return nil
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.sweepInterval)
	defer cancel()

	n, err := s.acceptance.SweepExpired(ctx)
	if err != nil {
		logger.Error("Timeout sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("Expired matches cancelled", "count", n)
	}
}

func (s *Sweeper) reconcileOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.reconcileInterval)
	defer cancel()

	n, err := s.acceptance.Reconcile(ctx, s.reconcileGrace)
	if err != nil {
		logger.Error("Orphan reconciliation failed", "error", err)
		return
	}
	if n > 0 {
		logger.Warn("Orphaned matches cancelled", "count", n)
	}
}
