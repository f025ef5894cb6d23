package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/metrics"
)

const (
	defaultTick = 15 * time.Minute
	// lostLockLabel is the job label a tick is counted under when another
	// worker holds the lock.
	lostLockLabel = "cycle"
)

// ServiceParams configure the cron worker.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the worker tick. Jobs registered with a zero cadence run on
	// every tick.
	Interval time.Duration
	Now      func() time.Time
}

// Service ticks at a fixed interval and runs the jobs that are due. Only the
// worker holding the lock runs a tick.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	tick := params.Interval
	if tick <= 0 {
		tick = defaultTick
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		now:      now,
	}, nil
}

// Run ticks once immediately and then every interval until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.tickOnce(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

func (s *Service) tickOnce(ctx context.Context) {
	if err := s.runDue(ctx); err != nil {
		s.logg.Error(ctx, "cron tick had failures", err)
	}
}

// runDue takes the lock and runs every due job, returning the combined job
// failures. A tick that loses the lock runs nothing.
func (s *Service) runDue(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		s.metrics.Skipped(lostLockLabel)
		s.logg.Info(ctx, "cron lock held elsewhere; tick skipped")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	due := s.registry.Due(s.now())
	var failures error
	for _, job := range due {
		failures = multierr.Append(failures, s.runJob(ctx, job))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"due":    len(due),
		"failed": len(multierr.Errors(failures)),
	}), "cron tick complete")
	return failures
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)
	s.metrics.Record(name, elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(jobCtx, "cron job done")
	return nil
}
