// Package maintenance runs periodic retention sweeps inside the worker. Only
// one worker replica runs a cycle at a time; the others skip it.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/grocery-backend/pkg/redis"
)

const (
	defaultInterval = 24 * time.Hour
	defaultLockTTL  = 10 * time.Minute
	lockScope       = "maintenance"
	lockID          = "cycle"
)

// Job is one sweep. Run reports how many rows it removed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Locker   pkgredis.Locker
	Metrics  *metrics.MaintenanceMetrics
	Jobs     []Job
	Interval time.Duration
	LockTTL  time.Duration
}

type Service struct {
	logg     *logger.Logger
	locker   pkgredis.Locker
	metrics  *metrics.MaintenanceMetrics
	jobs     []Job
	interval time.Duration
	lockTTL  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	jobs := make([]Job, 0, len(params.Jobs))
	for _, job := range params.Jobs {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Service{
		logg:     params.Logger,
		locker:   params.Locker,
		metrics:  params.Metrics,
		jobs:     jobs,
		interval: interval,
		lockTTL:  lockTTL,
	}, nil
}

// Run executes one cycle immediately and then one per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "maintenance cycle failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "maintenance stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "maintenance cycle failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	release, err := s.locker.Acquire(ctx, lockScope, lockID, s.lockTTL)
	if errors.Is(err, pkgredis.ErrLockHeld) {
		s.logg.Info(ctx, "maintenance cycle held by another worker, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", relErr)
		}
	}()

	for _, job := range s.jobs {
		s.runJob(ctx, job)
	}
	return nil
}

// runJob never aborts the cycle; a failing job is logged and counted.
func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "maintenance.job"})
	start := time.Now()
	deleted, err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveJob(job.Name(), deleted, err, duration)

	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms":  duration.Milliseconds(),
		"rows_deleted": deleted,
	})
	if err != nil {
		s.logg.Error(jobCtx, "maintenance job failed", err)
		return
	}
	s.logg.Info(jobCtx, "maintenance job completed")
}
